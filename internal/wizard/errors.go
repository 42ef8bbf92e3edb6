// internal/wizard/errors.go
package wizard

import (
	"errors"
	"fmt"

	"github.com/docucontrol/tramites-portal/internal/i18n"
)

var (
	ErrInvalidTransition  = errors.New("transition not allowed from the current step")
	ErrSubmissionInFlight = errors.New("submission in progress")
	ErrUnknownDocument    = errors.New("document is not part of this procedure")
	ErrUnknownField       = errors.New("unknown field")
	ErrDiscarded          = errors.New("wizard was discarded")
)

// FieldError is an inline validation message, expressed as a translation key
// plus the arguments that follow the field label.
type FieldError struct {
	Code string        `json:"code"`
	Args []interface{} `json:"args,omitempty"`
}

// FieldErrors is keyed by wire field name.
type FieldErrors map[string]FieldError

func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

// Message renders the error for one field in lang.
func (e FieldError) Message(lang, field string) string {
	args := append([]interface{}{i18n.Field(lang, field)}, e.Args...)
	return i18n.T(lang, e.Code, args...)
}

// ValidationError is returned by Advance and Submit when the current data does
// not pass the checks of a step.
type ValidationError struct {
	Step   Step
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %s has %d invalid field(s)", e.Step, len(e.Fields))
}

// FileRejectedError reports a file that does not match its document slot.
type FileRejectedError struct {
	DocumentID string
	FileName   string
	Reason     string
	Formats    string
	MaxSize    string
}

const (
	RejectInvalidType = "invalid_type"
	RejectTooLarge    = "too_large"
)

func (e *FileRejectedError) Error() string {
	return fmt.Sprintf("file %q rejected for document %s: %s", e.FileName, e.DocumentID, e.Reason)
}

// Message renders the rejection, naming the allowed formats or size.
func (e *FileRejectedError) Message(lang string) string {
	if e.Reason == RejectTooLarge {
		return i18n.T(lang, i18n.KeyFileTooLarge, e.MaxSize)
	}
	return i18n.T(lang, i18n.KeyFileInvalidType, e.Formats)
}

// SubmissionError carries the backend message of a failed create-request call.
// The wizard stays in ReviewAndConfirm.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string {
	return "create request failed: " + e.Message
}

// ProcedureFetchError is fatal for a wizard being opened; the caller may retry
// the same fetch.
type ProcedureFetchError struct {
	ProcedureID string
	Message     string
}

func (e *ProcedureFetchError) Error() string {
	return fmt.Sprintf("fetch procedure %s: %s", e.ProcedureID, e.Message)
}
