// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type Category string

const (
	CategoryLicenses     Category = "licencias"
	CategoryPermits      Category = "permisos"
	CategoryServices     Category = "servicios"
	CategoryCertificates Category = "certificados"
	CategoryOther        Category = "otros"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryLicenses, CategoryPermits, CategoryServices, CategoryCertificates, CategoryOther:
		return true
	}
	return false
}

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pendiente"
	RequestStatusInReview  RequestStatus = "en_revision"
	RequestStatusObserved  RequestStatus = "observado"
	RequestStatusApproved  RequestStatus = "aprobado"
	RequestStatusRejected  RequestStatus = "rechazado"
	RequestStatusFinalized RequestStatus = "finalizado"
)

type ValidationState string

const (
	ValidationStatePending  ValidationState = "pendiente"
	ValidationStateValid    ValidationState = "valido"
	ValidationStateInvalid  ValidationState = "invalido"
	ValidationStateObserved ValidationState = "observado"
)

type UploadStatus string

const (
	UploadStatusSucceeded UploadStatus = "succeeded"
	UploadStatusFailed    UploadStatus = "failed"
)

type UserRole string

const (
	UserRoleCitizen    UserRole = "ciudadano"
	UserRoleOfficial   UserRole = "administrativo"
	UserRoleSupervisor UserRole = "supervisor"
	UserRoleAdmin      UserRole = "admin"
)
