// internal/wizard/wizard.go
package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/docucontrol/tramites-portal/internal/estimator"
	"github.com/docucontrol/tramites-portal/internal/models"
)

// ProcedureCatalog resolves procedure definitions.
type ProcedureCatalog interface {
	GetProcedure(ctx context.Context, id string) models.Result[*models.ProcedureDefinition]
}

// RequestService creates the request record on the backend.
type RequestService interface {
	CreateRequest(ctx context.Context, payload models.SubmissionPayload) models.Result[models.SubmissionResult]
}

// DocumentService stores one file against an existing request.
type DocumentService interface {
	UploadDocument(ctx context.Context, requestID string, file models.AttachmentFile, declaredName string) models.Result[models.StoredDocument]
}

type Config struct {
	Requests  RequestService
	Documents DocumentService
	// Rules defaults to estimator.DefaultRules when nil.
	Rules  *estimator.Rules
	Logger *logrus.Entry
	Clock  func() time.Time
}

// Wizard collects the data of one request and submits it. All methods are
// safe for concurrent use; network calls run without holding the lock.
type Wizard struct {
	mu sync.Mutex

	procedure *models.ProcedureDefinition
	requests  RequestService
	documents DocumentService
	rules     estimator.Rules
	logger    *logrus.Entry
	now       func() time.Time

	step        Step
	applicant   models.ApplicantProfile
	details     models.CategoryData
	notes       string
	attachments map[string]models.AttachmentFile
	errors      FieldErrors
	submitting  bool
	discarded   bool
	// uploadsPending counts uploads not yet attempted once the request exists.
	uploadsPending int
	lastError      string
	report         *SubmissionReport
}

// Open fetches the procedure and starts a wizard on it. A failed fetch
// returns *ProcedureFetchError and no wizard.
func Open(ctx context.Context, catalog ProcedureCatalog, procedureID string, applicant models.ApplicantProfile, cfg Config) (*Wizard, error) {
	res := catalog.GetProcedure(ctx, procedureID)
	if !res.Success || res.Data == nil {
		msg := res.Error
		if msg == "" {
			msg = "procedure not found"
		}
		return nil, &ProcedureFetchError{ProcedureID: procedureID, Message: msg}
	}
	return New(res.Data, applicant, cfg), nil
}

// New starts a wizard on an already fetched procedure. The applicant is
// copied; later changes to the caller's value are not observed.
func New(procedure *models.ProcedureDefinition, applicant models.ApplicantProfile, cfg Config) *Wizard {
	rules := estimator.DefaultRules()
	if cfg.Rules != nil {
		rules = *cfg.Rules
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Wizard{
		procedure:   procedure,
		requests:    cfg.Requests,
		documents:   cfg.Documents,
		rules:       rules,
		logger:      logger.WithField("procedure_id", procedure.ID),
		now:         clock,
		step:        StepPersonalInfo,
		applicant:   applicant,
		details:     models.EmptyCategoryData(procedure.Category),
		attachments: make(map[string]models.AttachmentFile),
		errors:      FieldErrors{},
	}
}

func (w *Wizard) Procedure() *models.ProcedureDefinition {
	return w.procedure
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) Rules() estimator.Rules {
	return w.rules
}

// editable reports whether form data may change.
func (w *Wizard) editable() error {
	if w.discarded {
		return ErrDiscarded
	}
	if w.submitting {
		return ErrSubmissionInFlight
	}
	if w.step == StepCompleted {
		return ErrInvalidTransition
	}
	return nil
}

// UpdateApplicant applies field updates keyed by wire name. Inline errors of
// the touched fields are cleared.
func (w *Wizard) UpdateApplicant(updates map[string]string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.editable(); err != nil {
		return err
	}
	next := w.applicant
	for field, value := range updates {
		if !next.Set(field, value) {
			return unknownField(field)
		}
	}
	w.applicant = next
	for field := range updates {
		delete(w.errors, field)
	}
	return nil
}

// UpdateDetails merges category fields into the current data. A nil value
// removes the field. Attachments for documents that are no longer requested
// are dropped.
func (w *Wizard) UpdateDetails(updates map[string]interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.editable(); err != nil {
		return err
	}
	allowed := detailFields(w.procedure.Category)
	for field := range updates {
		if !allowed[field] {
			return unknownField(field)
		}
	}

	w.details = models.MergeCategoryData(w.details, updates)
	for field := range updates {
		delete(w.errors, field)
	}
	w.pruneAttachments()
	return nil
}

func (w *Wizard) SetNotes(notes string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.editable(); err != nil {
		return err
	}
	w.notes = notes
	return nil
}

// Advance moves to the next step when the current one validates. On failure
// the step is unchanged and *ValidationError lists the offending fields.
// ReviewAndConfirm is left only through Submit.
func (w *Wizard) Advance() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.discarded {
		return ErrDiscarded
	}
	if w.submitting {
		return ErrSubmissionInFlight
	}
	if w.step >= StepReviewAndConfirm {
		return ErrInvalidTransition
	}

	errs := w.validate(w.step)
	if !errs.Empty() {
		w.errors = errs
		return &ValidationError{Step: w.step, Fields: errs}
	}

	from := w.step
	w.step++
	w.errors = FieldErrors{}
	w.logger.WithFields(logrus.Fields{"from": from.String(), "step": w.step.String()}).Debug("Wizard advanced")
	return nil
}

// Retreat moves back one step without validating anything.
func (w *Wizard) Retreat() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.discarded {
		return ErrDiscarded
	}
	if w.submitting {
		return ErrSubmissionInFlight
	}
	if w.step == StepPersonalInfo || w.step == StepCompleted {
		return ErrInvalidTransition
	}

	from := w.step
	w.step--
	w.errors = FieldErrors{}
	w.logger.WithFields(logrus.Fields{"from": from.String(), "step": w.step.String()}).Debug("Wizard retreated")
	return nil
}

// Validate checks the fields of one step without changing state.
func (w *Wizard) Validate(step Step) FieldErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validate(step)
}

// Estimate computes cost, time and extra requirements for the current data.
func (w *Wizard) Estimate() Estimate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.estimate()
}

func (w *Wizard) estimate() Estimate {
	return BuildEstimate(w.rules, w.procedure, w.details, len(w.missingMandatory()) > 0, w.now())
}

// Snapshot is a copy of the wizard state for rendering.
type Snapshot struct {
	Step             Step                         `json:"step"`
	StepNumber       int                          `json:"step_number"`
	Procedure        *models.ProcedureDefinition  `json:"procedure"`
	Applicant        models.ApplicantProfile      `json:"applicant"`
	Category         models.Category              `json:"category"`
	Details          map[string]interface{}       `json:"details"`
	Notes            string                       `json:"notes"`
	Documents        []DocumentSlot               `json:"documents"`
	MissingMandatory []models.DocumentRequirement `json:"missing_mandatory"`
	Errors           FieldErrors                  `json:"errors"`
	Submitting       bool                         `json:"submitting"`
	UploadsPending   int                          `json:"uploads_pending"`
	LastError        string                       `json:"last_error,omitempty"`
	Estimate         Estimate                     `json:"estimate"`
	Report           *SubmissionReport            `json:"report,omitempty"`
}

func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	errs := make(FieldErrors, len(w.errors))
	for k, v := range w.errors {
		errs[k] = v
	}

	return Snapshot{
		Step:             w.step,
		StepNumber:       w.step.Number(),
		Procedure:        w.procedure,
		Applicant:        w.applicant,
		Category:         w.procedure.Category,
		Details:          w.details.Fields(),
		Notes:            w.notes,
		Documents:        w.documentSlots(),
		MissingMandatory: w.missingMandatory(),
		Errors:           errs,
		Submitting:       w.submitting,
		UploadsPending:   w.uploadsPending,
		LastError:        w.lastError,
		Estimate:         w.estimate(),
		Report:           w.report,
	}
}

// Report returns the submission report once the wizard is completed.
func (w *Wizard) Report() (*SubmissionReport, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.report, w.report != nil
}

// Discard releases every staged attachment. Later edits, transitions and
// attachments fail with ErrDiscarded, and a late attachment's handle is
// released. A wizard cannot be discarded while it is submitting.
func (w *Wizard) Discard() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitting {
		return ErrSubmissionInFlight
	}
	w.discarded = true
	for id, file := range w.attachments {
		w.release(id, file)
		delete(w.attachments, id)
	}
	return nil
}
