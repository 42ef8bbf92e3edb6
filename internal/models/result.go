// internal/models/result.go
package models

// Result is the uniform outcome of every call to the external backend.
// Transport and server failures are folded into Error; callers inspect
// Success instead of receiving a Go error.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

func Fail[T any](message string) Result[T] {
	return Result[T]{Success: false, Error: message}
}
