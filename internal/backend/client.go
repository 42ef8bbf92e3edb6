// internal/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/docucontrol/tramites-portal/internal/models"
)

// Default user-facing messages, used when the backend gives none.
const (
	MsgGetProcedureFailed = "Error al obtener trámite"
	MsgCreateFailed       = "Error al crear solicitud"
	MsgUploadFailed       = "Error al subir documento"
	MsgListFailed         = "Error al obtener solicitudes"
)

// Client talks to the municipal REST backend. Every call returns a
// models.Result; transport and server errors never surface as Go errors.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	timeout       time.Duration
	uploadTimeout time.Duration
	logger        *logrus.Entry
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout bounds JSON calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithUploadTimeout bounds each document upload.
func WithUploadTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.uploadTimeout = timeout
	}
}

func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		timeout:       15 * time.Second,
		uploadTimeout: 30 * time.Second,
		logger:        logrus.WithField("component", "backend"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetProcedure fetches one procedure definition.
func (c *Client) GetProcedure(ctx context.Context, id string) models.Result[*models.ProcedureDefinition] {
	var wire procedureWire
	if msg, ok := c.call(ctx, http.MethodGet, "/api/tramites/"+url.PathEscape(id), nil, "", "", &wire, MsgGetProcedureFailed); !ok {
		return models.Fail[*models.ProcedureDefinition](msg)
	}
	return models.Ok(wire.toModel())
}

// CreateRequest creates the request record and returns its tracking code.
func (c *Client) CreateRequest(ctx context.Context, payload models.SubmissionPayload) models.Result[models.SubmissionResult] {
	body, err := json.Marshal(newCreateRequestWire(payload))
	if err != nil {
		return models.Fail[models.SubmissionResult](MsgCreateFailed)
	}

	var wire requestWire
	if msg, ok := c.call(ctx, http.MethodPost, "/api/solicitudes/", bytes.NewReader(body), "application/json", "solicitud", &wire, MsgCreateFailed); !ok {
		return models.Fail[models.SubmissionResult](msg)
	}
	if wire.ID == "" {
		return models.Fail[models.SubmissionResult](MsgCreateFailed)
	}

	return models.Ok(models.SubmissionResult{
		RequestID:    string(wire.ID),
		TrackingCode: wire.TrackingCode,
		CreatedAt:    parseTime(wire.CreatedAt),
	})
}

// UploadDocument sends one file as multipart form data: the file under
// "archivo" and the declared document name under "tipo_documento".
func (c *Client) UploadDocument(ctx context.Context, requestID string, file models.AttachmentFile, declaredName string) models.Result[models.StoredDocument] {
	if file.Handle == nil {
		return models.Fail[models.StoredDocument](MsgUploadFailed)
	}
	src, err := file.Handle.Open()
	if err != nil {
		c.logger.WithError(err).WithField("request_id", requestID).Warn("Failed to open staged file")
		return models.Fail[models.StoredDocument](MsgUploadFailed)
	}
	defer src.Close()

	// buffered so the request carries a Content-Length
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := writeUploadForm(form, src, file, declaredName); err != nil {
		c.logger.WithError(err).WithField("request_id", requestID).Warn("Failed to build upload form")
		return models.Fail[models.StoredDocument](MsgUploadFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	var wire documentStoredWire
	path := "/api/documentos/subir/" + url.PathEscape(requestID)
	if msg, ok := c.do(ctx, http.MethodPost, path, &body, form.FormDataContentType(), "documento", &wire, MsgUploadFailed); !ok {
		return models.Fail[models.StoredDocument](msg)
	}
	return models.Ok(wire.toModel())
}

func writeUploadForm(form *multipart.Writer, src io.Reader, file models.AttachmentFile, declaredName string) error {
	if err := form.WriteField("tipo_documento", declaredName); err != nil {
		return err
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="archivo"; filename="%s"`, escapeQuotes(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return form.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// ListMyRequests returns the caller's requests as known to the backend.
func (c *Client) ListMyRequests(ctx context.Context) models.Result[[]models.RequestSummary] {
	var wire []requestWire
	if msg, ok := c.call(ctx, http.MethodGet, "/api/solicitudes/mis-solicitudes", nil, "", "", &wire, MsgListFailed); !ok {
		return models.Fail[[]models.RequestSummary](msg)
	}

	out := make([]models.RequestSummary, 0, len(wire))
	for _, r := range wire {
		out = append(out, r.toSummary())
	}
	return models.Ok(out)
}

// call is do bounded by the JSON call timeout.
func (c *Client) call(ctx context.Context, method, path string, body io.Reader, contentType, nested string, out interface{}, fallback string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.do(ctx, method, path, body, contentType, nested, out, fallback)
}

// do performs the request and decodes the payload into out. On failure it
// returns the message to show to the user.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType, nested string, out interface{}, fallback string) (string, bool) {
	logger := c.logger.WithFields(logrus.Fields{"method": method, "path": path})

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		logger.WithError(err).Error("Failed to create backend request")
		return fallback, false
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token, ok := TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.WithError(err).Warn("Backend request failed")
		return fallback, false
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.WithError(err).Warn("Failed to read backend response")
		return fallback, false
	}

	logger = logger.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).Milliseconds(),
	})

	payload, msg, ok := unwrap(resp.StatusCode, respBody, nested, fallback)
	if !ok {
		logger.WithField("error", msg).Warn("Backend call unsuccessful")
		return msg, false
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			logger.WithError(err).Warn("Failed to decode backend response")
			return fallback, false
		}
	}
	logger.Debug("Backend call succeeded")
	return "", true
}

// unwrap accepts both the {success, data, error} envelope and bare JSON with
// the HTTP status as the outcome. When nested is set and the payload holds an
// object under that key, the object is returned instead.
func unwrap(status int, body []byte, nested, fallback string) (json.RawMessage, string, bool) {
	var obj map[string]json.RawMessage
	isObject := json.Unmarshal(body, &obj) == nil

	payload := json.RawMessage(body)
	if isObject {
		if rawSuccess, ok := obj["success"]; ok {
			var success bool
			if err := json.Unmarshal(rawSuccess, &success); err == nil {
				if !success || status >= http.StatusBadRequest {
					return nil, errorMessage(obj["error"], fallback), false
				}
				payload = obj["data"]
				obj = nil
				isObject = json.Unmarshal(payload, &obj) == nil
			}
		}
	}

	if status >= http.StatusBadRequest {
		if isObject {
			return nil, errorMessage(obj["error"], fallback), false
		}
		return nil, fallback, false
	}

	if nested != "" && isObject {
		if inner, ok := obj[nested]; ok && len(inner) > 0 && inner[0] == '{' {
			payload = inner
		}
	}
	return payload, "", true
}

// errorMessage reads an error given either as a string or as {code, message}.
func errorMessage(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return fallback
		}
		return s
	}
	var e struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Code != "" {
			return e.Code
		}
	}
	return fallback
}
