// internal/models/procedure.go
package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultMaxDocumentSize applies when the backend does not state a limit.
const DefaultMaxDocumentSize int64 = 10 * 1024 * 1024

// ProcedureDefinition is read once when a wizard opens and never mutated.
type ProcedureDefinition struct {
	ID                string                `json:"id"`
	Code              string                `json:"code"`
	Name              string                `json:"name"`
	Description       string                `json:"description"`
	Category          Category              `json:"category"`
	BaseCost          float64               `json:"base_cost"`
	BaseDurationDays  int                   `json:"base_duration_days"`
	RequiredDocuments []DocumentRequirement `json:"required_documents"`
	Requirements      []string              `json:"requirements"`
}

func (p *ProcedureDefinition) IsFree() bool {
	return p.BaseCost == 0
}

// Document looks up a required document by its stable id.
func (p *ProcedureDefinition) Document(id string) (DocumentRequirement, bool) {
	for _, doc := range p.RequiredDocuments {
		if doc.ID == id {
			return doc, true
		}
	}
	return DocumentRequirement{}, false
}

type DocumentRequirement struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	AcceptedFormats []string `json:"accepted_formats"`
	MaxSizeBytes    int64    `json:"max_size_bytes"`
	Mandatory       bool     `json:"mandatory"`
}

var formatMIMETypes = map[string][]string{
	"pdf":  {"application/pdf"},
	"jpg":  {"image/jpeg", "image/jpg"},
	"jpeg": {"image/jpeg", "image/jpg"},
	"png":  {"image/png"},
	"doc":  {"application/msword"},
	"docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	"dwg":  {"application/dwg", "image/vnd.dwg", "application/acad"},
}

// AcceptsFile reports whether a file with the given name and MIME type matches
// one of the accepted formats, either by extension or by content type.
func (d DocumentRequirement) AcceptsFile(fileName, contentType string) bool {
	if len(d.AcceptedFormats) == 0 {
		return true
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))

	for _, format := range d.AcceptedFormats {
		format = strings.ToLower(format)
		if ext != "" && (ext == format || (isJPEG(ext) && isJPEG(format))) {
			return true
		}
		for _, mime := range formatMIMETypes[format] {
			if contentType == mime {
				return true
			}
		}
		// Formats may already be expressed as MIME types.
		if strings.Contains(format, "/") && contentType == format {
			return true
		}
	}
	return false
}

func (d DocumentRequirement) FormatsLabel() string {
	upper := make([]string, len(d.AcceptedFormats))
	for i, f := range d.AcceptedFormats {
		upper[i] = strings.ToUpper(f)
	}
	return strings.Join(upper, ", ")
}

func (d DocumentRequirement) MaxSizeLabel() string {
	return FormatFileSize(d.MaxSizeBytes)
}

func isJPEG(format string) bool {
	return format == "jpg" || format == "jpeg"
}

// FormatFileSize renders a byte count with 1024-based units.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", value), "0"), ".")
	return s + " " + units[i]
}
