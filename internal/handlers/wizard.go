// internal/handlers/wizard.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/docucontrol/tramites-portal/internal/backend"
	"github.com/docucontrol/tramites-portal/internal/i18n"
	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/services"
	"github.com/docucontrol/tramites-portal/internal/utils"
	"github.com/docucontrol/tramites-portal/internal/wizard"
)

// Multipart overhead allowed on top of the staged file limit.
const uploadFormOverhead = 1 << 20

type WizardHandler struct {
	wizardService *services.WizardService
}

func NewWizardHandler(wizardService *services.WizardService) *WizardHandler {
	return &WizardHandler{
		wizardService: wizardService,
	}
}

type OpenWizardRequest struct {
	ProcedureID json.RawMessage   `json:"procedure_id" binding:"required"`
	Applicant   map[string]string `json:"applicant"`
}

type procedureTarget struct {
	ProcedureID string `json:"procedure_id" validate:"required_trimmed"`
}

type NotesRequest struct {
	Notes string `json:"observaciones"`
}

// backendContext carries the caller's bearer token to backend calls.
func backendContext(c *gin.Context) context.Context {
	return backend.WithToken(c.Request.Context(), utils.GetTokenFromContext(c))
}

// parseProcedureID accepts the id as a JSON string or number.
func parseProcedureID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// POST /wizards
func (h *WizardHandler) OpenWizard(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req OpenWizardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	target := procedureTarget{ProcedureID: parseProcedureID(req.ProcedureID)}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&target), lang); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}
	procedureID := target.ProcedureID

	// Pre-fill from the token, then apply whatever the client sent.
	var prefill models.ApplicantProfile
	if claims, ok := utils.GetClaimsFromContext(c); ok {
		prefill = claims.Profile()
	}
	for field, value := range req.Applicant {
		if !prefill.Set(field, value) {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, i18n.Field(lang, field)), nil)
			return
		}
	}

	session, err := h.wizardService.Open(backendContext(c), userID, procedureID, prefill)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.CreatedResponse(c, newWizardView(lang, session))
}

// GET /wizards/:id
func (h *WizardHandler) GetWizard(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, newWizardView(utils.GetLangFromContext(c), session))
}

// DELETE /wizards/:id
func (h *WizardHandler) AbandonWizard(c *gin.Context) {
	userID, _ := utils.GetUserIDFromContext(c)
	if err := h.wizardService.Abandon(userID, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	utils.SuccessResponse(c, gin.H{"message": i18n.T(utils.GetLangFromContext(c), i18n.KeySuccess)})
}

// PUT /wizards/:id/applicant
func (h *WizardHandler) UpdateApplicant(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var updates map[string]string
	if err := c.ShouldBindJSON(&updates); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if err := session.Wizard.UpdateApplicant(updates); err != nil {
		h.handleError(c, err)
		return
	}
	utils.SuccessResponse(c, newWizardView(utils.GetLangFromContext(c), session))
}

// PUT /wizards/:id/details
func (h *WizardHandler) UpdateDetails(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if err := session.Wizard.UpdateDetails(updates); err != nil {
		h.handleError(c, err)
		return
	}
	utils.SuccessResponse(c, newWizardView(utils.GetLangFromContext(c), session))
}

// PUT /wizards/:id/notes
func (h *WizardHandler) SetNotes(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}
	if err := session.Wizard.SetNotes(req.Notes); err != nil {
		h.handleError(c, err)
		return
	}
	utils.SuccessResponse(c, newWizardView(utils.GetLangFromContext(c), session))
}

// POST /wizards/:id/attachments/:document_id
func (h *WizardHandler) AttachFile(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, _ := utils.GetUserIDFromContext(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxStagedFileSize+uploadFormOverhead)
	fileHeader, err := c.FormFile("archivo")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			fileTooLargeResponse(c)
			return
		}
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileMissing), nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileMissing), nil)
		return
	}
	defer file.Close()

	attachment, err := h.wizardService.AttachFile(c.Request.Context(), userID, c.Param("id"), c.Param("document_id"), services.StageRequest{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	session, ok := h.session(c)
	if !ok {
		return
	}
	utils.CreatedResponse(c, gin.H{
		"attachment": attachment,
		"wizard":     newWizardView(lang, session),
	})
}

// DELETE /wizards/:id/attachments/:document_id
func (h *WizardHandler) ClearAttachment(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Wizard.ClearAttachment(c.Param("document_id")); err != nil {
		h.handleError(c, err)
		return
	}
	utils.SuccessResponse(c, newWizardView(utils.GetLangFromContext(c), session))
}

// GET /wizards/:id/validation?step=
func (h *WizardHandler) ValidateStep(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	lang := utils.GetLangFromContext(c)

	step := session.Wizard.Step()
	if s := c.Query("step"); s != "" {
		if err := step.UnmarshalText([]byte(s)); err != nil {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationOption, "step"), nil)
			return
		}
	}

	errs := session.Wizard.Validate(step)
	utils.SuccessResponse(c, gin.H{
		"step":   step,
		"valid":  errs.Empty(),
		"errors": translateFieldErrors(lang, errs),
	})
}

// POST /wizards/:id/advance
func (h *WizardHandler) Advance(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Wizard.Advance(); err != nil {
		h.handleError(c, err)
		return
	}
	utils.SuccessResponse(c, newWizardView(utils.GetLangFromContext(c), session))
}

// POST /wizards/:id/retreat
func (h *WizardHandler) Retreat(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	if err := session.Wizard.Retreat(); err != nil {
		h.handleError(c, err)
		return
	}
	utils.SuccessResponse(c, newWizardView(utils.GetLangFromContext(c), session))
}

// GET /wizards/:id/estimate
func (h *WizardHandler) GetEstimate(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, newEstimateView(utils.GetLangFromContext(c), session.Wizard.Estimate()))
}

// POST /wizards/:id/submit
func (h *WizardHandler) Submit(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	userID, _ := utils.GetUserIDFromContext(c)

	report, err := h.wizardService.Submit(backendContext(c), userID, c.Param("id"), lang)
	if err != nil {
		h.handleError(c, err)
		return
	}

	session, ok := h.session(c)
	if !ok {
		utils.SuccessResponse(c, gin.H{"report": newReportView(lang, report)})
		return
	}
	utils.SuccessResponse(c, newWizardView(lang, session))
}

// POST /wizards/:id/payment-intent
func (h *WizardHandler) CreatePaymentIntent(c *gin.Context) {
	userID, _ := utils.GetUserIDFromContext(c)

	intent, err := h.wizardService.CreatePayment(userID, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	utils.CreatedResponse(c, intent)
}

func (h *WizardHandler) session(c *gin.Context) (*services.WizardSession, bool) {
	userID, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return nil, false
	}
	session, err := h.wizardService.Get(userID, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return nil, false
	}
	return session, true
}

// handleError maps service and wizard errors to API responses.
func (h *WizardHandler) handleError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	var (
		validationErr *wizard.ValidationError
		rejectedErr   *wizard.FileRejectedError
		submitErr     *wizard.SubmissionError
		fetchErr      *wizard.ProcedureFetchError
	)

	switch {
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, wizard.ErrDiscarded):
		utils.NotFoundResponse(c, "wizard")
	case errors.As(err, &validationErr):
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			i18n.T(lang, i18n.KeyValidationIncompleteStep), validationDetails(lang, validationErr.Fields))
	case errors.As(err, &rejectedErr):
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, "FILE_REJECTED", rejectedErr.Message(lang), gin.H{
			"document_id": rejectedErr.DocumentID,
			"file_name":   rejectedErr.FileName,
			"reason":      rejectedErr.Reason,
		})
	case errors.As(err, &submitErr):
		utils.BadGatewayResponse(c, "SUBMISSION_FAILED", i18n.T(lang, i18n.KeyWizardSubmissionFailed, submitErr.Message))
	case errors.As(err, &fetchErr):
		utils.BadGatewayResponse(c, "PROCEDURE_UNAVAILABLE", i18n.T(lang, i18n.KeyWizardProcedureFailed, fetchErr.Message))
	case errors.Is(err, wizard.ErrSubmissionInFlight):
		utils.ConflictResponse(c, "SUBMISSION_IN_FLIGHT", i18n.T(lang, i18n.KeyWizardSubmissionInFlight))
	case errors.Is(err, wizard.ErrInvalidTransition):
		utils.ConflictResponse(c, "INVALID_TRANSITION", i18n.T(lang, i18n.KeyWizardInvalidTransition))
	case errors.Is(err, wizard.ErrUnknownDocument):
		utils.ErrorResponse(c, http.StatusNotFound, "UNKNOWN_DOCUMENT",
			i18n.T(lang, i18n.KeyFileUnknownDocument, c.Param("document_id")), nil)
	case errors.Is(err, wizard.ErrUnknownField):
		utils.BadRequestResponse(c, "", err.Error())
	case errors.Is(err, services.ErrFileTooLarge):
		fileTooLargeResponse(c)
	case errors.Is(err, services.ErrStagingFailed):
		utils.InternalErrorResponse(c, i18n.T(lang, i18n.KeyFileStagingFailed))
	case errors.Is(err, services.ErrPaymentsDisabled):
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "PAYMENTS_DISABLED", i18n.T(lang, i18n.KeyPaymentDisabled), nil)
	case errors.Is(err, services.ErrNothingToPay):
		utils.ConflictResponse(c, "NOTHING_TO_PAY", i18n.T(lang, i18n.KeyPaymentNothingToPay))
	case errors.Is(err, services.ErrNotCompleted):
		utils.ConflictResponse(c, "NOT_COMPLETED", i18n.T(lang, i18n.KeyPaymentNotCompleted))
	case errors.Is(err, services.ErrPaymentFailed):
		utils.BadGatewayResponse(c, "PAYMENT_FAILED", i18n.T(lang, i18n.KeyPaymentFailed, strings.TrimPrefix(err.Error(), services.ErrPaymentFailed.Error()+": ")))
	default:
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Wizard request failed")
		utils.InternalErrorResponse(c, "")
	}
}

func fileTooLargeResponse(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
		i18n.T(lang, i18n.KeyFileTooLarge, models.FormatFileSize(services.MaxStagedFileSize)), nil)
}
