// internal/wizard/submit.go
package wizard

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/docucontrol/tramites-portal/internal/i18n"
	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/utils"
)

// DefaultNotes is sent when the applicant leaves the notes empty.
const DefaultNotes = "Solicitud creada desde el asistente"

// SubmissionReport is the final outcome of a completed wizard.
type SubmissionReport struct {
	Result      models.SubmissionResult `json:"result"`
	ProcedureID string                  `json:"procedure_id"`
	Applicant   models.ApplicantProfile `json:"applicant"`
	Details     map[string]interface{}  `json:"details"`
	Outcomes    []models.UploadOutcome  `json:"outcomes"`
	Summary     models.UploadSummary    `json:"summary"`
	Estimate    Estimate                `json:"estimate"`
}

// Notice returns the translation key and arguments of the upload summary
// message. No key is returned when nothing was uploaded.
func (r *SubmissionReport) Notice() (string, []interface{}) {
	switch {
	case r.Summary.Uploaded+r.Summary.Failed == 0:
		return "", nil
	case r.Summary.Failed == 0:
		return i18n.KeyUploadAllSucceeded, []interface{}{r.Summary.Uploaded}
	case r.Summary.Uploaded == 0:
		return i18n.KeyUploadNone, nil
	default:
		return i18n.KeyUploadPartial, []interface{}{r.Summary.Uploaded, r.Summary.Failed}
	}
}

type pendingUpload struct {
	requirement models.DocumentRequirement
	file        models.AttachmentFile
}

// Submit creates the request and then uploads every pending attachment, one
// at a time and independently of each other. A failed create call leaves the
// wizard in ReviewAndConfirm and returns *SubmissionError without any upload
// being attempted. Once the request exists the wizard always completes,
// whatever the upload outcomes.
func (w *Wizard) Submit(ctx context.Context) (*SubmissionReport, error) {
	payload, uploads, estimate, err := w.beginSubmit()
	if err != nil {
		return nil, err
	}
	logger := w.logger

	created := w.requests.CreateRequest(ctx, payload)
	if !created.Success {
		logger.WithField("error", created.Error).Error("Create request failed")
		w.mu.Lock()
		w.submitting = false
		w.lastError = created.Error
		w.mu.Unlock()
		return nil, &SubmissionError{Message: created.Error}
	}

	result := created.Data
	logger = logger.WithFields(logrus.Fields{
		"request_id":    result.RequestID,
		"tracking_code": result.TrackingCode,
	})
	logger.WithField("attachments", len(uploads)).Info("Request created")

	w.mu.Lock()
	w.uploadsPending = len(uploads)
	w.mu.Unlock()

	outcomes := make([]models.UploadOutcome, 0, len(uploads))
	for _, u := range uploads {
		outcomes = append(outcomes, w.upload(ctx, logger, result.RequestID, u))
		w.mu.Lock()
		w.uploadsPending--
		w.mu.Unlock()
	}

	report := &SubmissionReport{
		Result:      result,
		ProcedureID: payload.ProcedureID,
		Applicant:   payload.Applicant,
		Details:     payload.Details,
		Outcomes:    outcomes,
		Summary:     models.SummarizeUploads(outcomes),
		Estimate:    estimate,
	}

	w.mu.Lock()
	w.step = StepCompleted
	w.submitting = false
	w.lastError = ""
	w.report = report
	w.attachments = make(map[string]models.AttachmentFile)
	w.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"uploaded": report.Summary.Uploaded,
		"failed":   report.Summary.Failed,
	}).Info("Wizard completed")
	return report, nil
}

// beginSubmit checks the step, re-validates the earlier steps and freezes the
// payload and the attachment list.
func (w *Wizard) beginSubmit() (models.SubmissionPayload, []pendingUpload, Estimate, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.discarded {
		return models.SubmissionPayload{}, nil, Estimate{}, ErrDiscarded
	}
	if w.submitting {
		return models.SubmissionPayload{}, nil, Estimate{}, ErrSubmissionInFlight
	}
	if w.step != StepReviewAndConfirm {
		return models.SubmissionPayload{}, nil, Estimate{}, ErrInvalidTransition
	}
	for _, step := range []Step{StepPersonalInfo, StepCategoryDetails} {
		if errs := w.validate(step); !errs.Empty() {
			w.errors = errs
			return models.SubmissionPayload{}, nil, Estimate{}, &ValidationError{Step: step, Fields: errs}
		}
	}

	notes := strings.TrimSpace(w.notes)
	if notes == "" {
		notes = DefaultNotes
	}
	payload := models.SubmissionPayload{
		ProcedureID: w.procedure.ID,
		Notes:       notes,
		Details:     w.details.Fields(),
		Applicant:   w.applicant.Trimmed(),
	}

	var uploads []pendingUpload
	for _, slot := range w.documentList() {
		if file, ok := w.attachments[slot.Requirement.ID]; ok {
			uploads = append(uploads, pendingUpload{requirement: slot.Requirement, file: file})
		}
	}

	w.submitting = true
	w.lastError = ""
	return payload, uploads, w.estimate(), nil
}

// upload makes a single attempt and never retries. The staged file is
// released whatever the outcome.
func (w *Wizard) upload(ctx context.Context, logger *logrus.Entry, requestID string, u pendingUpload) models.UploadOutcome {
	defer releaseFile(logger, u.requirement.ID, u.file)

	outcome := models.UploadOutcome{
		DocumentID:   u.requirement.ID,
		DeclaredName: u.requirement.Name,
		FileName:     u.file.Name,
	}

	res := w.documents.UploadDocument(ctx, requestID, u.file, u.requirement.Name)
	if !res.Success {
		outcome.Status = models.UploadStatusFailed
		outcome.Reason = res.Error
		logger.WithFields(logrus.Fields{
			"document_id": u.requirement.ID,
			"error":       res.Error,
		}).Warn("Document upload failed")
		return outcome
	}

	stored := res.Data
	if stored.Checksum != "" && u.file.Checksum != "" && !utils.ChecksumMatches(u.file.Checksum, stored.Checksum) {
		logger.WithFields(logrus.Fields{
			"document_id": u.requirement.ID,
			"staged":      u.file.Checksum,
			"stored":      stored.Checksum,
		}).Warn("Stored document checksum differs from the selected file")
	}
	outcome.Status = models.UploadStatusSucceeded
	outcome.Stored = &stored
	return outcome
}
