// internal/backend/wire.go
package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/docucontrol/tramites-portal/internal/models"
)

// Defaults applied to documents the backend lists by name only.
const (
	defaultDocumentFormats = "PDF, JPG, PNG"
	defaultDocumentSize    = "5MB"
)

// flexString accepts JSON strings and numbers. The backend uses integer ids.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

type procedureWire struct {
	ID          flexString     `json:"id"`
	Code        string         `json:"codigo"`
	Name        string         `json:"nombre"`
	Description string         `json:"descripcion"`
	Category    string         `json:"categoria"`
	Requisites  []string       `json:"requisitos"`
	Days        int            `json:"tiempo_estimado_dias"`
	Cost        float64        `json:"costo"`
	Documents   []documentWire `json:"documentos_requeridos"`
}

// documentWire is either a plain document name or a full description.
type documentWire struct {
	ID          flexString `json:"id"`
	Name        string     `json:"nombre"`
	Description string     `json:"descripcion"`
	Format      string     `json:"formato"`
	MaxSize     string     `json:"tamaño_max"`
	Mandatory   *bool      `json:"obligatorio"`
}

func (d *documentWire) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*d = documentWire{Name: name}
		return nil
	}
	type plain documentWire
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = documentWire(p)
	return nil
}

func (p procedureWire) toModel() *models.ProcedureDefinition {
	docs := make([]models.DocumentRequirement, 0, len(p.Documents))
	for i, d := range p.Documents {
		docs = append(docs, d.toModel(i))
	}
	requirements := p.Requisites
	if requirements == nil {
		requirements = []string{}
	}
	return &models.ProcedureDefinition{
		ID:                string(p.ID),
		Code:              p.Code,
		Name:              p.Name,
		Description:       p.Description,
		Category:          models.Category(strings.ToLower(strings.TrimSpace(p.Category))),
		BaseCost:          math.Max(0, p.Cost),
		BaseDurationDays:  p.Days,
		RequiredDocuments: docs,
		Requirements:      requirements,
	}
}

func (d documentWire) toModel(index int) models.DocumentRequirement {
	id := string(d.ID)
	if id == "" {
		id = fmt.Sprintf("base_doc_%d", index)
	}
	format, size := d.Format, d.MaxSize
	if format == "" {
		format = defaultDocumentFormats
	}
	if size == "" {
		size = defaultDocumentSize
	}
	mandatory := true
	if d.Mandatory != nil {
		mandatory = *d.Mandatory
	}
	return models.DocumentRequirement{
		ID:              id,
		Name:            d.Name,
		Description:     d.Description,
		AcceptedFormats: ParseFormats(format),
		MaxSizeBytes:    ParseSize(size),
		Mandatory:       mandatory,
	}
}

type applicantWire struct {
	FullName string `json:"nombre_completo"`
	IDNumber string `json:"documento"`
	Phone    string `json:"telefono"`
	Email    string `json:"email"`
	Address  string `json:"direccion"`
}

type createRequestWire struct {
	ProcedureID interface{}            `json:"tramite_id"`
	Notes       string                 `json:"observaciones"`
	Details     map[string]interface{} `json:"datos_adicionales"`
	Applicant   applicantWire          `json:"solicitante"`
}

func newCreateRequestWire(p models.SubmissionPayload) createRequestWire {
	// numeric ids go back as numbers
	var id interface{} = p.ProcedureID
	if n, err := strconv.ParseInt(p.ProcedureID, 10, 64); err == nil {
		id = n
	}
	details := p.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	return createRequestWire{
		ProcedureID: id,
		Notes:       p.Notes,
		Details:     details,
		Applicant: applicantWire{
			FullName: p.Applicant.FullName,
			IDNumber: p.Applicant.IDNumber,
			Phone:    p.Applicant.Phone,
			Email:    p.Applicant.Email,
			Address:  p.Applicant.Address,
		},
	}
}

type requestWire struct {
	ID           flexString `json:"id"`
	TrackingCode string     `json:"numero_expediente"`
	ProcedureID  flexString `json:"tramite_id"`
	Status       string     `json:"estado_actual"`
	CreatedAt    string     `json:"fecha_solicitud"`
	Procedure    *struct {
		Name string `json:"nombre"`
	} `json:"tramite"`
}

func (r requestWire) toSummary() models.RequestSummary {
	s := models.RequestSummary{
		RequestID:    string(r.ID),
		TrackingCode: r.TrackingCode,
		ProcedureID:  string(r.ProcedureID),
		Status:       models.RequestStatus(r.Status),
		CreatedAt:    parseTime(r.CreatedAt),
	}
	if r.Procedure != nil {
		s.ProcedureName = r.Procedure.Name
	}
	return s
}

type documentStoredWire struct {
	ID       flexString `json:"id"`
	FileName string     `json:"nombre_archivo"`
	Hash     string     `json:"hash_archivo"`
	Status   string     `json:"estado_validacion"`
}

func (d documentStoredWire) toModel() models.StoredDocument {
	status := models.ValidationState(d.Status)
	if status == "" {
		status = models.ValidationStatePending
	}
	return models.StoredDocument{
		DocumentID: string(d.ID),
		StoredName: d.FileName,
		Checksum:   d.Hash,
		Status:     status,
	}
}

// ParseFormats turns "PDF, JPG" into lower-case format names.
func ParseFormats(s string) []string {
	formats := []string{}
	for _, part := range strings.Split(s, ",") {
		f := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), ".")
		if f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}

// ParseSize turns "5MB", "500 KB" or "1.5GB" into bytes with 1024-based units.
// A bare number is read as megabytes. Unreadable values fall back to
// models.DefaultMaxDocumentSize.
func ParseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return models.DefaultMaxDocumentSize
	}

	multiplier := float64(1 << 20)
	for _, unit := range []struct {
		suffix string
		factor float64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.factor
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			break
		}
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || value <= 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return models.DefaultMaxDocumentSize
	}
	return int64(value * multiplier)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime reads the backend's ISO timestamps, which usually carry no zone
// and are in UTC.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
