// internal/models/request.go
package models

import (
	"io"
	"time"
)

// SubmissionPayload is the body of the create-request call.
type SubmissionPayload struct {
	ProcedureID string                 `json:"tramite_id"`
	Notes       string                 `json:"observaciones"`
	Details     map[string]interface{} `json:"datos_adicionales"`
	Applicant   ApplicantProfile       `json:"solicitante"`
}

type SubmissionResult struct {
	RequestID    string    `json:"request_id"`
	TrackingCode string    `json:"tracking_code"`
	CreatedAt    time.Time `json:"created_at"`
}

type StoredDocument struct {
	DocumentID string          `json:"document_id"`
	StoredName string          `json:"stored_name"`
	Checksum   string          `json:"checksum"`
	Status     ValidationState `json:"status"`
}

// FileHandle gives access to the bytes of a selected file. Handles are opened
// at most once per upload attempt.
type FileHandle interface {
	Open() (io.ReadCloser, error)
}

// Releaser is implemented by handles backed by staged storage that should be
// freed once the file is no longer needed.
type Releaser interface {
	Release() error
}

// AttachmentFile describes a file chosen by the user for a document slot.
type AttachmentFile struct {
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type"`
	Checksum    string     `json:"checksum,omitempty"`
	Handle      FileHandle `json:"-"`
}

type UploadOutcome struct {
	DocumentID   string          `json:"document_id"`
	DeclaredName string          `json:"declared_name"`
	FileName     string          `json:"file_name"`
	Status       UploadStatus    `json:"status"`
	Reason       string          `json:"reason,omitempty"`
	Stored       *StoredDocument `json:"stored,omitempty"`
}

func (o UploadOutcome) Succeeded() bool {
	return o.Status == UploadStatusSucceeded
}

type UploadSummary struct {
	Uploaded int `json:"uploaded"`
	Failed   int `json:"failed"`
}

func SummarizeUploads(outcomes []UploadOutcome) UploadSummary {
	var s UploadSummary
	for _, o := range outcomes {
		if o.Succeeded() {
			s.Uploaded++
		} else {
			s.Failed++
		}
	}
	return s
}

// RequestSummary is one row of the backend's "my requests" listing.
type RequestSummary struct {
	RequestID     string        `json:"request_id"`
	TrackingCode  string        `json:"tracking_code"`
	ProcedureID   string        `json:"procedure_id"`
	ProcedureName string        `json:"procedure_name,omitempty"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}
