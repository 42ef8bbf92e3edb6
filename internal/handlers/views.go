// internal/handlers/views.go
package handlers

import (
	"sort"
	"time"

	"github.com/docucontrol/tramites-portal/internal/estimator"
	"github.com/docucontrol/tramites-portal/internal/i18n"
	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/services"
	"github.com/docucontrol/tramites-portal/internal/utils"
	"github.com/docucontrol/tramites-portal/internal/wizard"
)

// wizardView is the wizard snapshot with every message already translated.
type wizardView struct {
	ID               string                      `json:"id"`
	Step             wizard.Step                 `json:"step"`
	StepNumber       int                         `json:"step_number"`
	StepTitle        string                      `json:"step_title"`
	Procedure        *models.ProcedureDefinition `json:"procedure"`
	Applicant        models.ApplicantProfile     `json:"applicant"`
	Category         models.Category             `json:"category"`
	Details          map[string]interface{}      `json:"details"`
	Notes            string                      `json:"notes"`
	Documents        []documentView              `json:"documents"`
	MissingMandatory []missingDocumentView       `json:"missing_mandatory"`
	Errors           map[string]fieldErrorView   `json:"errors"`
	Submitting       bool                        `json:"submitting"`
	Progress         string                      `json:"progress,omitempty"`
	LastError        string                      `json:"last_error,omitempty"`
	Estimate         estimateView                `json:"estimate"`
	Report           *reportView                 `json:"report,omitempty"`
	CreatedAt        time.Time                   `json:"created_at"`
	Steps            []stepView                  `json:"steps"`
}

type stepView struct {
	Step   wizard.Step `json:"step"`
	Number int         `json:"number"`
	Title  string      `json:"title"`
}

type documentView struct {
	models.DocumentRequirement
	Additional   bool                   `json:"additional"`
	FormatsLabel string                 `json:"formats_label"`
	MaxSizeLabel string                 `json:"max_size_label"`
	Attachment   *models.AttachmentFile `json:"attachment,omitempty"`
}

type missingDocumentView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type fieldErrorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type lineItemView struct {
	Code   string  `json:"code"`
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

type factorView struct {
	estimator.Factor
	Label string `json:"label"`
}

type requirementView struct {
	estimator.Requirement
	Label string `json:"label"`
}

type estimateView struct {
	BaseCost                float64           `json:"base_cost"`
	SurchargeTotal          float64           `json:"surcharge_total"`
	TotalCost               int64             `json:"total_cost"`
	Free                    bool              `json:"free"`
	Breakdown               []lineItemView    `json:"breakdown"`
	BaseDays                int               `json:"base_days"`
	EstimatedDays           int               `json:"estimated_days"`
	EstimatedCompletionDate string            `json:"estimated_completion_date"`
	Factors                 []factorView      `json:"factors"`
	AdditionalRequirements  []requirementView `json:"additional_requirements"`
	AdditionalDocuments     []documentView    `json:"additional_documents"`
}

type reportView struct {
	RequestID    string                 `json:"request_id"`
	TrackingCode string                 `json:"tracking_code"`
	CreatedAt    time.Time              `json:"created_at"`
	Outcomes     []models.UploadOutcome `json:"outcomes"`
	Summary      models.UploadSummary   `json:"summary"`
	Message      string                 `json:"message"`
	Notice       string                 `json:"notice,omitempty"`
	RetryHint    string                 `json:"retry_hint,omitempty"`
}

var wizardSteps = []wizard.Step{
	wizard.StepPersonalInfo,
	wizard.StepCategoryDetails,
	wizard.StepDocumentSelection,
	wizard.StepReviewAndConfirm,
	wizard.StepCompleted,
}

func stepTitle(lang string, step wizard.Step) string {
	return i18n.T(lang, i18n.PrefixStep+step.String())
}

func newWizardView(lang string, session *services.WizardSession) wizardView {
	snap := session.Wizard.Snapshot()

	view := wizardView{
		ID:         session.ID,
		Step:       snap.Step,
		StepNumber: snap.StepNumber,
		StepTitle:  stepTitle(lang, snap.Step),
		Procedure:  snap.Procedure,
		Applicant:  snap.Applicant,
		Category:   snap.Category,
		Details:    snap.Details,
		Notes:      snap.Notes,
		Submitting: snap.Submitting,
		LastError:  snap.LastError,
		Estimate:   newEstimateView(lang, snap.Estimate),
		CreatedAt:  session.CreatedAt,
	}

	for _, step := range wizardSteps {
		view.Steps = append(view.Steps, stepView{Step: step, Number: step.Number(), Title: stepTitle(lang, step)})
	}

	view.Documents = make([]documentView, 0, len(snap.Documents))
	for _, slot := range snap.Documents {
		doc := newDocumentView(slot.Requirement, slot.Additional)
		doc.Attachment = slot.Attachment
		view.Documents = append(view.Documents, doc)
	}

	view.MissingMandatory = make([]missingDocumentView, 0, len(snap.MissingMandatory))
	for _, doc := range snap.MissingMandatory {
		view.MissingMandatory = append(view.MissingMandatory, missingDocumentView{
			ID:      doc.ID,
			Name:    doc.Name,
			Message: i18n.T(lang, i18n.KeyDocumentMissingMandatory, doc.Name),
		})
	}

	view.Errors = translateFieldErrors(lang, snap.Errors)

	switch {
	case snap.Submitting && snap.UploadsPending > 0:
		view.Progress = i18n.T(lang, i18n.KeyWizardUploading, snap.UploadsPending)
	case snap.Submitting:
		view.Progress = i18n.T(lang, i18n.KeyWizardCreating)
	}

	if snap.Report != nil {
		view.Report = newReportView(lang, snap.Report)
	}
	return view
}

func newDocumentView(doc models.DocumentRequirement, additional bool) documentView {
	return documentView{
		DocumentRequirement: doc,
		Additional:          additional,
		FormatsLabel:        doc.FormatsLabel(),
		MaxSizeLabel:        doc.MaxSizeLabel(),
	}
}

func translateFieldErrors(lang string, errs wizard.FieldErrors) map[string]fieldErrorView {
	out := make(map[string]fieldErrorView, len(errs))
	for field, e := range errs {
		out[field] = fieldErrorView{Code: e.Code, Message: e.Message(lang, field)}
	}
	return out
}

// validationDetails lists field errors in a stable order for error responses.
func validationDetails(lang string, errs wizard.FieldErrors) []utils.ValidationError {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	details := make([]utils.ValidationError, 0, len(fields))
	for _, field := range fields {
		details = append(details, utils.ValidationError{
			Field:   field,
			Tag:     errs[field].Code,
			Message: errs[field].Message(lang, field),
		})
	}
	return details
}

func newEstimateView(lang string, est wizard.Estimate) estimateView {
	view := estimateView{
		BaseCost:               est.Cost.BaseCost,
		SurchargeTotal:         est.Cost.SurchargeTotal,
		TotalCost:              est.Cost.TotalCost,
		Free:                   est.Cost.IsFree(),
		BaseDays:               est.Time.BaseDays,
		EstimatedDays:          est.Time.EstimatedDays,
		Breakdown:              make([]lineItemView, 0, len(est.Cost.Breakdown)),
		Factors:                make([]factorView, 0, len(est.Time.Factors)),
		AdditionalRequirements: make([]requirementView, 0, len(est.AdditionalRequirements)),
		AdditionalDocuments:    make([]documentView, 0, len(est.AdditionalDocuments)),
	}
	if !est.Time.EstimatedCompletionDate.IsZero() {
		view.EstimatedCompletionDate = est.Time.EstimatedCompletionDate.Format("2006-01-02")
	}

	for _, item := range est.Cost.Breakdown {
		view.Breakdown = append(view.Breakdown, lineItemView{
			Code:   item.Code,
			Label:  i18n.T(lang, i18n.PrefixCost+item.Code),
			Amount: item.Amount,
		})
	}

	// Replacing factors are labelled with the running total they produced.
	running := est.Time.BaseDays
	for _, f := range est.Time.Factors {
		running += f.Days
		days := f.Days
		if f.Effect == estimator.EffectReplace {
			days = running
		}
		view.Factors = append(view.Factors, factorView{
			Factor: f,
			Label:  i18n.T(lang, i18n.PrefixTime+f.Code, days),
		})
	}

	for _, r := range est.AdditionalRequirements {
		view.AdditionalRequirements = append(view.AdditionalRequirements, requirementView{
			Requirement: r,
			Label:       i18n.T(lang, i18n.PrefixRequirement+r.ID),
		})
	}
	for _, doc := range est.AdditionalDocuments {
		view.AdditionalDocuments = append(view.AdditionalDocuments, newDocumentView(doc, true))
	}
	return view
}

func newReportView(lang string, report *wizard.SubmissionReport) *reportView {
	view := &reportView{
		RequestID:    report.Result.RequestID,
		TrackingCode: report.Result.TrackingCode,
		CreatedAt:    report.Result.CreatedAt,
		Outcomes:     report.Outcomes,
		Summary:      report.Summary,
		Message:      i18n.T(lang, i18n.KeyWizardCompleted, report.Result.TrackingCode),
	}
	if view.Outcomes == nil {
		view.Outcomes = []models.UploadOutcome{}
	}
	if key, args := report.Notice(); key != "" {
		view.Notice = i18n.T(lang, key, args...)
	}
	if report.Summary.Failed > 0 {
		view.RetryHint = i18n.T(lang, i18n.KeyUploadRetryHint)
	}
	return view
}
