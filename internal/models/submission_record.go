// internal/models/submission_record.go
package models

import (
	"time"

	"github.com/lib/pq"
)

// SubmissionRecord keeps a local trace of every request created through the
// portal so citizens can find failed uploads later.
type SubmissionRecord struct {
	BaseModel
	UserID            string         `json:"user_id" gorm:"size:64;not null;index"`
	ProcedureID       string         `json:"procedure_id" gorm:"size:64;not null"`
	ProcedureName     string         `json:"procedure_name" gorm:"size:200"`
	Category          Category       `json:"category" gorm:"type:varchar(20)"`
	RequestID         string         `json:"request_id" gorm:"size:64;not null;index"`
	TrackingCode      string         `json:"tracking_code" gorm:"size:64;not null;uniqueIndex"`
	EstimatedCost     int64          `json:"estimated_cost"`
	EstimatedDays     int            `json:"estimated_days"`
	UploadedDocuments pq.StringArray `json:"uploaded_documents" gorm:"type:text[]"`
	FailedDocuments   pq.StringArray `json:"failed_documents" gorm:"type:text[]"`
	Details           JSONB          `json:"details" gorm:"type:jsonb"`
	SubmittedAt       time.Time      `json:"submitted_at" gorm:"index"`
}
