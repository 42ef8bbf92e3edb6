// internal/tests/portal_test.go
package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"github.com/docucontrol/tramites-portal/internal/config"
	"github.com/docucontrol/tramites-portal/internal/estimator"
	"github.com/docucontrol/tramites-portal/internal/i18n"
	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/router"
	"github.com/docucontrol/tramites-portal/internal/services"
	"github.com/docucontrol/tramites-portal/internal/utils"
)

// flaskBackend imitates the municipal REST backend.
type flaskBackend struct {
	mu        sync.Mutex
	authz     []string
	created   map[string]interface{}
	uploads   map[string]string
	procedure int
}

func (f *flaskBackend) handler() http.Handler {
	r := gin.New()

	r.GET("/api/tramites/:id", func(c *gin.Context) {
		f.mu.Lock()
		f.authz = append(f.authz, c.GetHeader("Authorization"))
		f.procedure++
		f.mu.Unlock()

		if c.Param("id") != "3" {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Trámite no encontrado"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
			"id":                   3,
			"codigo":               "CER-001",
			"nombre":               "Certificado de residencia",
			"categoria":            "certificados",
			"costo":                10000,
			"tiempo_estimado_dias": 5,
			"documentos_requeridos": []interface{}{
				"Cédula de ciudadanía",
				gin.H{"id": "foto", "nombre": "Fotografía", "formato": "PNG", "tamaño_max": "1MB", "obligatorio": false},
			},
		}})
	})

	r.POST("/api/solicitudes/", func(c *gin.Context) {
		var body map[string]interface{}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "JSON inválido"})
			return
		}
		f.mu.Lock()
		f.created = body
		f.mu.Unlock()

		c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"solicitud": gin.H{
			"id":                42,
			"numero_expediente": "CER-001-20260605100000-42",
			"tramite_id":        3,
			"estado_actual":     "pendiente",
			"fecha_solicitud":   "2026-06-05T10:00:00",
		}}})
	})

	r.POST("/api/documentos/subir/:request_id", func(c *gin.Context) {
		declared := c.PostForm("tipo_documento")
		fh, err := c.FormFile("archivo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No se encontró archivo"})
			return
		}
		file, _ := fh.Open()
		data, _ := io.ReadAll(file)
		file.Close()

		if declared == "Fotografía" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Formato no válido"})
			return
		}
		f.mu.Lock()
		f.uploads[declared] = string(data)
		f.mu.Unlock()
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"documento": gin.H{
			"id":                9,
			"nombre_archivo":    fh.Filename,
			"hash_archivo":      "abc",
			"estado_validacion": "pendiente",
		}}})
	})

	r.GET("/api/solicitudes/mis-solicitudes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": []gin.H{
			{"id": 41, "numero_expediente": "CER-001-41", "tramite_id": 3, "estado_actual": "aprobado", "fecha_solicitud": "2026-05-01T08:00:00", "tramite": gin.H{"nombre": "Certificado de residencia"}},
			{"id": 42, "numero_expediente": "CER-001-20260605100000-42", "tramite_id": 3, "estado_actual": "pendiente", "fecha_solicitud": "2026-06-05T10:00:00"},
		}})
	})

	return r
}

type PortalTestSuite struct {
	suite.Suite
	flask   *flaskBackend
	server  *httptest.Server
	router  *gin.Engine
	wizards *services.WizardService
	token   string
}

func (s *PortalTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	s.Require().NoError(i18n.Initialize())
}

func (s *PortalTestSuite) SetupTest() {
	s.flask = &flaskBackend{uploads: map[string]string{}}
	s.server = httptest.NewServer(s.flask.handler())

	cfg := &config.Config{
		Environment:    "test",
		MetricsEnabled: true,
		Backend: config.BackendConfig{
			BaseURL:       s.server.URL,
			Timeout:       5 * time.Second,
			UploadTimeout: 5 * time.Second,
			CacheSize:     16,
			CacheTTL:      time.Minute,
		},
		Wizard:   config.WizardConfig{SessionTTL: time.Hour},
		JWT:      config.JWTConfig{SecretKey: "portal-test-secret"},
		Email:    config.EmailConfig{FromName: "Portal de Trámites"},
		I18n:     config.I18nConfig{DefaultLocale: "es"},
		Frontend: config.FrontendConfig{BaseURL: "http://localhost:3000", AllowedOrigins: "http://localhost:3000"},
	}

	var err error
	s.router, s.wizards, err = router.Initialize(nil, cfg, estimator.DefaultRules())
	s.Require().NoError(err)

	s.token, err = utils.GenerateJWT("5", models.ApplicantProfile{
		FullName: "Ana Pérez",
		IDNumber: "1020304050",
		Phone:    "3001234567",
		Email:    "ana@example.com",
		Address:  "Calle 10 # 5-20",
	}, string(models.UserRoleCitizen), time.Hour)
	s.Require().NoError(err)
}

func (s *PortalTestSuite) TearDownTest() {
	s.wizards.Close()
	s.server.Close()
}

func (s *PortalTestSuite) call(method, path string, body interface{}) (int, map[string]interface{}) {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	return s.serve(req)
}

func (s *PortalTestSuite) attach(path, fileName, contentType, content string) (int, map[string]interface{}) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="archivo"; filename="%s"`, fileName))
	header.Set("Content-Type", contentType)
	part, _ := form.CreatePart(header)
	part.Write([]byte(content))
	form.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token)
	return s.serve(req)
}

func (s *PortalTestSuite) serve(req *http.Request) (int, map[string]interface{}) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var body map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func dataOf(body map[string]interface{}) map[string]interface{} {
	d, _ := body["data"].(map[string]interface{})
	return d
}

func (s *PortalTestSuite) TestSubmissionWithPartialUploads() {
	code, body := s.call(http.MethodPost, "/v1/wizards", gin.H{"procedure_id": "3"})
	s.Require().Equal(http.StatusCreated, code)
	view := dataOf(body)
	id := view["id"].(string)
	base := "/v1/wizards/" + id

	docs := view["documents"].([]interface{})
	s.Require().Len(docs, 2)
	first := docs[0].(map[string]interface{})
	s.Equal("base_doc_0", first["id"])
	s.Equal("PDF, JPG, PNG", first["formats_label"])
	s.Equal("5 MB", first["max_size_label"])

	code, _ = s.call(http.MethodPost, base+"/advance", nil)
	s.Require().Equal(http.StatusOK, code)
	code, _ = s.call(http.MethodPut, base+"/details", gin.H{"cantidad": 1, "motivo": "estudio"})
	s.Require().Equal(http.StatusOK, code)
	code, _ = s.call(http.MethodPost, base+"/advance", nil)
	s.Require().Equal(http.StatusOK, code)

	code, _ = s.attach(base+"/attachments/base_doc_0", "cedula.pdf", "application/pdf", "%PDF-1.4 cedula")
	s.Require().Equal(http.StatusCreated, code)
	code, _ = s.attach(base+"/attachments/foto", "foto.png", "image/png", "\x89PNG\r\n\x1a\nfoto")
	s.Require().Equal(http.StatusCreated, code)

	code, _ = s.call(http.MethodPost, base+"/advance", nil)
	s.Require().Equal(http.StatusOK, code)

	code, body = s.call(http.MethodPost, base+"/submit", nil)
	s.Require().Equal(http.StatusOK, code)
	report := dataOf(body)["report"].(map[string]interface{})
	s.Equal("42", report["request_id"])
	s.Equal("1 documentos subidos, 1 con errores", report["notice"])
	s.Equal("Puedes subir los documentos pendientes desde Mis solicitudes", report["retry_hint"])

	outcomes := report["outcomes"].([]interface{})
	s.Require().Len(outcomes, 2)
	s.Equal("failed", outcomes[1].(map[string]interface{})["status"])
	s.Equal("Formato no válido", outcomes[1].(map[string]interface{})["reason"])

	s.Equal("%PDF-1.4 cedula", s.flask.uploads["Cédula de ciudadanía"])
	s.Equal(float64(3), s.flask.created["tramite_id"])
	s.Equal("estudio", s.flask.created["datos_adicionales"].(map[string]interface{})["motivo"])
	applicant := s.flask.created["solicitante"].(map[string]interface{})
	s.Equal("Ana Pérez", applicant["nombre_completo"])
	s.Contains(s.flask.authz, "Bearer "+s.token)
}

func (s *PortalTestSuite) TestProcedureIsCached() {
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/procedures/3/estimate?cantidad=2", nil)
		code, body := s.serve(req)
		s.Require().Equal(http.StatusOK, code)
		s.Equal(float64(13000), dataOf(body)["total_cost"])
	}
	s.Equal(1, s.flask.procedure)

	req := httptest.NewRequest(http.MethodGet, "/v1/procedures/8", nil)
	code, _ := s.serve(req)
	s.Equal(http.StatusBadGateway, code)
}

func (s *PortalTestSuite) TestRequestHistoryFromBackend() {
	code, body := s.call(http.MethodGet, "/v1/requests?page=1&limit=10", nil)
	s.Require().Equal(http.StatusOK, code)
	items := body["data"].([]interface{})
	s.Require().Len(items, 2)
	s.Equal("CER-001-20260605100000-42", items[0].(map[string]interface{})["tracking_code"])
	s.Equal("Certificado de residencia", items[1].(map[string]interface{})["procedure_name"])
}

func (s *PortalTestSuite) TestWizardRequiresToken() {
	req := httptest.NewRequest(http.MethodPost, "/v1/wizards", bytes.NewReader([]byte(`{"procedure_id":"3"}`)))
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	code, body := s.serve(req)
	s.Equal(http.StatusUnauthorized, code)
	s.Equal("Authentication required", body["error"].(map[string]interface{})["message"])
}

func (s *PortalTestSuite) TestHealthAndMetrics() {
	code, body := s.serve(httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusOK, code)
	s.Equal("healthy", body["status"])

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "tramites_http_requests_total")
}

func TestPortalSuite(t *testing.T) {
	suite.Run(t, new(PortalTestSuite))
}
