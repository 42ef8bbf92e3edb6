// internal/handlers/handlers_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/docucontrol/tramites-portal/internal/backend"
	"github.com/docucontrol/tramites-portal/internal/estimator"
	"github.com/docucontrol/tramites-portal/internal/i18n"
	"github.com/docucontrol/tramites-portal/internal/middleware"
	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/services"
	"github.com/docucontrol/tramites-portal/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	i18n.Initialize()
	utils.SetJWTSecret("handlers-test-secret")
}

func certificateProcedure() *models.ProcedureDefinition {
	return &models.ProcedureDefinition{
		ID:               "3",
		Code:             "CER-001",
		Name:             "Certificado de residencia",
		Category:         models.CategoryCertificates,
		BaseCost:         10000,
		BaseDurationDays: 5,
		RequiredDocuments: []models.DocumentRequirement{
			{ID: "cedula", Name: "Cédula", AcceptedFormats: []string{"pdf"}, MaxSizeBytes: 1 << 20, Mandatory: true},
		},
	}
}

func licenseProcedure() *models.ProcedureDefinition {
	return &models.ProcedureDefinition{
		ID:               "7",
		Code:             "LIC-002",
		Name:             "Licencia de construcción",
		Category:         models.CategoryLicenses,
		BaseCost:         100000,
		BaseDurationDays: 10,
	}
}

type fakeBackend struct {
	procedures map[string]*models.ProcedureDefinition
	createFail string
	tokens     []string
	uploads    map[string]string
}

func (f *fakeBackend) GetProcedure(ctx context.Context, id string) models.Result[*models.ProcedureDefinition] {
	if token, ok := backend.TokenFromContext(ctx); ok {
		f.tokens = append(f.tokens, token)
	}
	if p, ok := f.procedures[id]; ok {
		return models.Ok(p)
	}
	return models.Fail[*models.ProcedureDefinition]("Trámite no encontrado")
}

func (f *fakeBackend) CreateRequest(_ context.Context, _ models.SubmissionPayload) models.Result[models.SubmissionResult] {
	if f.createFail != "" {
		return models.Fail[models.SubmissionResult](f.createFail)
	}
	return models.Ok(models.SubmissionResult{
		RequestID:    "42",
		TrackingCode: "CER-001-20260605100000-42",
		CreatedAt:    time.Date(2026, time.June, 5, 10, 0, 0, 0, time.UTC),
	})
}

func (f *fakeBackend) UploadDocument(_ context.Context, _ string, file models.AttachmentFile, declaredName string) models.Result[models.StoredDocument] {
	src, err := file.Handle.Open()
	if err != nil {
		return models.Fail[models.StoredDocument](err.Error())
	}
	defer src.Close()
	data, _ := io.ReadAll(src)
	f.uploads[declaredName] = string(data)
	return models.Ok(models.StoredDocument{DocumentID: "9", Status: models.ValidationStatePending})
}

func (f *fakeBackend) ListMyRequests(context.Context) models.Result[[]models.RequestSummary] {
	return models.Ok([]models.RequestSummary{
		{RequestID: "1", TrackingCode: "CER-001-1", ProcedureID: "3", CreatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{RequestID: "2", TrackingCode: "CER-001-2", ProcedureID: "3", CreatedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
	})
}

type WizardHandlerTestSuite struct {
	suite.Suite
	backend *fakeBackend
	service *services.WizardService
	router  *gin.Engine
	token   string
	other   string
}

func (s *WizardHandlerTestSuite) SetupTest() {
	s.backend = &fakeBackend{
		procedures: map[string]*models.ProcedureDefinition{
			"3": certificateProcedure(),
			"7": licenseProcedure(),
		},
		uploads: map[string]string{},
	}
	rules := estimator.DefaultRules()
	s.service = services.NewWizardService(services.WizardServiceConfig{
		Catalog:   s.backend,
		Requests:  s.backend,
		Documents: s.backend,
		Rules:     &rules,
		Clock:     func() time.Time { return time.Date(2026, time.June, 3, 9, 0, 0, 0, time.UTC) },
	})

	h := NewWizardHandler(s.service)
	r := gin.New()
	r.Use(middleware.I18nMiddleware("es"))
	w := r.Group("/v1/wizards", middleware.AuthRequired())
	w.POST("", h.OpenWizard)
	w.GET("/:id", h.GetWizard)
	w.DELETE("/:id", h.AbandonWizard)
	w.PUT("/:id/applicant", h.UpdateApplicant)
	w.PUT("/:id/details", h.UpdateDetails)
	w.PUT("/:id/notes", h.SetNotes)
	w.POST("/:id/attachments/:document_id", h.AttachFile)
	w.DELETE("/:id/attachments/:document_id", h.ClearAttachment)
	w.GET("/:id/validation", h.ValidateStep)
	w.POST("/:id/advance", h.Advance)
	w.POST("/:id/retreat", h.Retreat)
	w.GET("/:id/estimate", h.GetEstimate)
	w.POST("/:id/submit", h.Submit)
	w.POST("/:id/payment-intent", h.CreatePaymentIntent)
	s.router = r

	var err error
	s.token, err = utils.GenerateJWT("5", models.ApplicantProfile{
		FullName: "Ana María Pérez",
		IDNumber: "1020304050",
		Phone:    "3001234567",
		Email:    "ana@example.com",
		Address:  "Calle 10 # 5-20",
	}, "ciudadano", time.Hour)
	s.Require().NoError(err)
	s.other, err = utils.GenerateJWT("6", models.ApplicantProfile{FullName: "Luis Gómez"}, "ciudadano", time.Hour)
	s.Require().NoError(err)
}

func (s *WizardHandlerTestSuite) TearDownTest() {
	s.service.Close()
}

func (s *WizardHandlerTestSuite) request(method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.serve(req)
}

func (s *WizardHandlerTestSuite) upload(path, fileName, contentType string, content []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="archivo"; filename="%s"`, fileName))
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	s.Require().NoError(err)
	_, err = part.Write(content)
	s.Require().NoError(err)
	s.Require().NoError(form.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)
	return s.serve(req)
}

func (s *WizardHandlerTestSuite) serve(req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func (s *WizardHandlerTestSuite) open(procedureID interface{}) string {
	w, body := s.request(http.MethodPost, "/v1/wizards", s.token, gin.H{"procedure_id": procedureID})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	return data(body)["id"].(string)
}

func data(body map[string]interface{}) map[string]interface{} {
	d, _ := body["data"].(map[string]interface{})
	return d
}

func apiError(body map[string]interface{}) map[string]interface{} {
	e, _ := body["error"].(map[string]interface{})
	return e
}

func (s *WizardHandlerTestSuite) TestOpenPrefillsApplicantFromToken() {
	w, body := s.request(http.MethodPost, "/v1/wizards", s.token, gin.H{
		"procedure_id": 3,
		"applicant":    gin.H{"telefono": "3119876543"},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	view := data(body)
	s.Equal("personal_info", view["step"])
	s.Equal(float64(1), view["step_number"])
	s.Equal("Información personal", view["step_title"])
	applicant := view["applicant"].(map[string]interface{})
	s.Equal("Ana María Pérez", applicant["nombre_completo"])
	s.Equal("1020304050", applicant["documento"])
	s.Equal("3119876543", applicant["telefono"])
	s.Equal([]string{s.token}, s.backend.tokens)
}

func (s *WizardHandlerTestSuite) TestOpenErrors() {
	w, body := s.request(http.MethodPost, "/v1/wizards", s.token, gin.H{"procedure_id": "99"})
	s.Equal(http.StatusBadGateway, w.Code)
	s.Equal("PROCEDURE_UNAVAILABLE", apiError(body)["code"])
	s.Contains(apiError(body)["message"], "Trámite no encontrado")

	w, body = s.request(http.MethodPost, "/v1/wizards", s.token, gin.H{"procedure_id": ""})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("VALIDATION_ERROR", apiError(body)["code"])

	w, _ = s.request(http.MethodPost, "/v1/wizards", "", gin.H{"procedure_id": "3"})
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(0, s.service.Count())
}

func (s *WizardHandlerTestSuite) TestOtherUsersCannotSeeWizard() {
	id := s.open("3")

	w, body := s.request(http.MethodGet, "/v1/wizards/"+id, s.other, nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Asistente de solicitud no encontrado", apiError(body)["message"])

	w, _ = s.request(http.MethodDelete, "/v1/wizards/"+id, s.other, nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(1, s.service.Count())
}

func (s *WizardHandlerTestSuite) TestAdvanceReportsTranslatedFieldErrors() {
	id := s.open("3")
	s.request(http.MethodPut, "/v1/wizards/"+id+"/applicant", s.token, gin.H{"email": "no-es-un-email"})

	w, body := s.request(http.MethodPost, "/v1/wizards/"+id+"/advance", s.token, nil)
	s.Require().Equal(http.StatusUnprocessableEntity, w.Code)
	e := apiError(body)
	s.Equal("Por favor completa todos los campos requeridos", e["message"])
	details := e["details"].([]interface{})
	s.Require().Len(details, 1)
	s.Equal("email", details[0].(map[string]interface{})["field"])
	s.Equal("El email no tiene un formato válido", details[0].(map[string]interface{})["message"])

	_, body = s.request(http.MethodGet, "/v1/wizards/"+id+"?lang=en", s.token, nil)
	errs := data(body)["errors"].(map[string]interface{})
	s.Contains(errs, "email")
	s.Equal("personal_info", data(body)["step"])
}

func (s *WizardHandlerTestSuite) TestUnknownFieldIsRejected() {
	id := s.open("3")
	w, _ := s.request(http.MethodPut, "/v1/wizards/"+id+"/details", s.token, gin.H{"urgente": true})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *WizardHandlerTestSuite) TestCompleteFlow() {
	id := s.open("3")
	base := "/v1/wizards/" + id

	w, body := s.request(http.MethodPost, base+"/advance", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("category_details", data(body)["step"])

	w, body = s.request(http.MethodPut, base+"/details", s.token, gin.H{"cantidad": 2, "motivo": "estudio"})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	estimate := data(body)["estimate"].(map[string]interface{})
	s.Equal(float64(13000), estimate["total_cost"])

	s.request(http.MethodPut, base+"/notes", s.token, gin.H{"observaciones": "Para matrícula"})

	w, _ = s.request(http.MethodPost, base+"/advance", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	// A file of the wrong type is refused and nothing is attached.
	w, body = s.upload(base+"/attachments/cedula", "cedula.png", "image/png", []byte("\x89PNG\r\n\x1a\n"))
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("FILE_REJECTED", apiError(body)["code"])
	s.Equal("Tipo de archivo no permitido. Formatos aceptados: PDF", apiError(body)["message"])

	w, _ = s.upload(base+"/attachments/desconocido", "x.pdf", "application/pdf", []byte("%PDF-1.4"))
	s.Equal(http.StatusNotFound, w.Code)

	_, body = s.request(http.MethodGet, base, s.token, nil)
	missing := data(body)["missing_mandatory"].([]interface{})
	s.Require().Len(missing, 1)
	s.Equal("Documento obligatorio pendiente: Cédula", missing[0].(map[string]interface{})["message"])

	w, body = s.upload(base+"/attachments/cedula", "cedula.pdf", "application/pdf", []byte("%PDF-1.4 cedula"))
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	attachment := data(body)["attachment"].(map[string]interface{})
	s.Equal("cedula.pdf", attachment["name"])
	s.NotEmpty(attachment["checksum"])

	w, body = s.request(http.MethodPost, base+"/advance", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("review_and_confirm", data(body)["step"])

	w, _ = s.request(http.MethodPost, base+"/advance", s.token, nil)
	s.Equal(http.StatusConflict, w.Code)

	w, body = s.request(http.MethodPost, base+"/submit", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	view := data(body)
	s.Equal("completed", view["step"])
	report := view["report"].(map[string]interface{})
	s.Equal("CER-001-20260605100000-42", report["tracking_code"])
	s.Equal("Solicitud creada exitosamente. Número de expediente: CER-001-20260605100000-42", report["message"])
	s.Equal("Todos los documentos (1) fueron subidos exitosamente", report["notice"])
	s.Nil(report["retry_hint"])
	s.Equal("%PDF-1.4 cedula", s.backend.uploads["Cédula"])

	w, _ = s.request(http.MethodPut, base+"/notes", s.token, gin.H{"observaciones": "tarde"})
	s.Equal(http.StatusConflict, w.Code)

	w, body = s.request(http.MethodPost, base+"/payment-intent", s.token, nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal("PAYMENTS_DISABLED", apiError(body)["code"])
}

func (s *WizardHandlerTestSuite) TestSubmitFailureKeepsReviewStep() {
	s.backend.procedures["3"].RequiredDocuments = nil
	s.backend.createFail = "Datos del solicitante incompletos"
	id := s.open("3")
	base := "/v1/wizards/" + id

	s.request(http.MethodPost, base+"/advance", s.token, nil)
	s.request(http.MethodPut, base+"/details", s.token, gin.H{"cantidad": 1})
	s.request(http.MethodPost, base+"/advance", s.token, nil)
	s.request(http.MethodPost, base+"/advance", s.token, nil)

	w, body := s.request(http.MethodPost, base+"/submit", s.token, nil)
	s.Require().Equal(http.StatusBadGateway, w.Code)
	s.Equal("Error al procesar la solicitud: Datos del solicitante incompletos", apiError(body)["message"])

	_, body = s.request(http.MethodGet, base, s.token, nil)
	s.Equal("review_and_confirm", data(body)["step"])
	s.Equal("Datos del solicitante incompletos", data(body)["last_error"])
}

func (s *WizardHandlerTestSuite) TestRetreatAndValidation() {
	id := s.open("3")
	base := "/v1/wizards/" + id

	w, _ := s.request(http.MethodPost, base+"/retreat", s.token, nil)
	s.Equal(http.StatusConflict, w.Code)

	w, body := s.request(http.MethodGet, base+"/validation?step=category_details", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal(false, data(body)["valid"])
	errs := data(body)["errors"].(map[string]interface{})
	s.Equal("El campo cantidad de certificados debe ser un número entero mayor a 0",
		errs["cantidad"].(map[string]interface{})["message"])

	w, _ = s.request(http.MethodGet, base+"/validation?step=bogus", s.token, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *WizardHandlerTestSuite) TestEstimateLabels() {
	id := s.open("7")
	base := "/v1/wizards/" + id

	s.request(http.MethodPut, base+"/details", s.token, gin.H{"urgente": true, "area_construccion": 600})
	w, body := s.request(http.MethodGet, base+"/estimate", s.token, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	est := data(body)
	s.Equal(float64(350000), est["total_cost"])
	s.Equal(float64(3), est["estimated_days"])
	factors := est["factors"].([]interface{})
	s.Require().Len(factors, 1)
	s.Equal("Procesamiento urgente: reduce el tiempo a 3 días", factors[0].(map[string]interface{})["label"])
	breakdown := est["breakdown"].([]interface{})
	s.Require().Len(breakdown, 3)
	s.Equal("Recargo por procesamiento urgente", breakdown[1].(map[string]interface{})["label"])
}

func (s *WizardHandlerTestSuite) TestAbandonRemovesSession() {
	id := s.open("3")
	w, _ := s.request(http.MethodDelete, "/v1/wizards/"+id, s.token, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(0, s.service.Count())

	w, _ = s.request(http.MethodGet, "/v1/wizards/"+id, s.token, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func TestWizardHandlerSuite(t *testing.T) {
	suite.Run(t, new(WizardHandlerTestSuite))
}

func TestEstimateProcedure(t *testing.T) {
	fake := &fakeBackend{procedures: map[string]*models.ProcedureDefinition{"7": licenseProcedure()}}
	h := NewProcedureHandler(fake, estimator.DefaultRules())
	h.now = func() time.Time { return time.Date(2026, time.December, 1, 9, 0, 0, 0, time.UTC) }

	r := gin.New()
	r.Use(middleware.I18nMiddleware("es"))
	r.GET("/v1/procedures/:id", h.GetProcedure)
	r.GET("/v1/procedures/:id/estimate", h.EstimateProcedure)

	req := httptest.NewRequest(http.MethodGet, "/v1/procedures/7/estimate?area_construccion=1200&lang=en", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	est := data(body)
	assert.Equal(t, float64(300000), est["total_cost"])
	// 10 base days, +5 for the area and +2 for December.
	assert.Equal(t, float64(17), est["estimated_days"])
	docs := est["additional_documents"].([]interface{})
	require.Len(t, docs, 1)
	assert.Equal(t, "planos_arquitectonicos", docs[0].(map[string]interface{})["id"])

	req = httptest.NewRequest(http.MethodGet, "/v1/procedures/99/estimate", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/procedures/7", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListMyRequests(t *testing.T) {
	token, err := utils.GenerateJWT("5", models.ApplicantProfile{FullName: "Ana Pérez"}, "ciudadano", time.Hour)
	require.NoError(t, err)

	h := NewRequestHandler(services.NewAuditService(nil, &fakeBackend{}))
	r := gin.New()
	r.Use(middleware.I18nMiddleware("es"))
	r.GET("/v1/requests", middleware.AuthRequired(), h.ListMyRequests)

	req := httptest.NewRequest(http.MethodGet, "/v1/requests?limit=1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data []services.RequestHistoryItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "CER-001-2", body.Data[0].TrackingCode)
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))

	h = NewRequestHandler(services.NewAuditService(nil, nil))
	r = gin.New()
	r.Use(middleware.I18nMiddleware("es"))
	r.GET("/v1/requests", middleware.AuthRequired(), h.ListMyRequests)
	req = httptest.NewRequest(http.MethodGet, "/v1/requests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
