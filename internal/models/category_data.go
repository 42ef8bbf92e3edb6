// internal/models/category_data.go
package models

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CategoryData holds the category-specific fields of a request. The concrete
// type is fixed by the procedure category: LicenseData, CertificateData,
// PermitData or OtherData.
type CategoryData interface {
	Category() Category
	// Fields returns the wire representation sent as datos_adicionales.
	Fields() map[string]interface{}
	isCategoryData()
}

// Wire keys of the category-specific fields.
const (
	FieldConstructionAddress = "direccion_obra"
	FieldConstructionArea    = "area_construccion"
	FieldUrgent              = "urgente"
	FieldQuantity            = "cantidad"
	FieldReason              = "motivo"
	FieldDurationMonths      = "duracion_meses"
	FieldActivityType        = "tipo_actividad"
	FieldRequiresInspection  = "requiere_inspeccion"
)

type CertificateReason string

const (
	ReasonWork    CertificateReason = "trabajo"
	ReasonStudy   CertificateReason = "estudio"
	ReasonBanking CertificateReason = "tramite_bancario"
	ReasonOther   CertificateReason = "otro"
)

func (r CertificateReason) Valid() bool {
	switch r {
	case ReasonWork, ReasonStudy, ReasonBanking, ReasonOther:
		return true
	}
	return false
}

type ActivityType string

const (
	ActivityCommercial   ActivityType = "comercial"
	ActivityEvents       ActivityType = "eventos"
	ActivityConstruction ActivityType = "construccion"
	ActivityOther        ActivityType = "otro"
)

func (a ActivityType) Valid() bool {
	switch a {
	case ActivityCommercial, ActivityEvents, ActivityConstruction, ActivityOther:
		return true
	}
	return false
}

type LicenseData struct {
	ConstructionAddress string  `json:"direccion_obra,omitempty"`
	ConstructionAreaM2  float64 `json:"area_construccion,omitempty"`
	Urgent              bool    `json:"urgente,omitempty"`
}

func (LicenseData) Category() Category { return CategoryLicenses }
func (LicenseData) isCategoryData()    {}

func (d LicenseData) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if d.ConstructionAddress != "" {
		fields[FieldConstructionAddress] = d.ConstructionAddress
	}
	if d.ConstructionAreaM2 != 0 {
		fields[FieldConstructionArea] = d.ConstructionAreaM2
	}
	if d.Urgent {
		fields[FieldUrgent] = true
	}
	return fields
}

type CertificateData struct {
	Quantity int               `json:"cantidad,omitempty"`
	Reason   CertificateReason `json:"motivo,omitempty"`
}

func (CertificateData) Category() Category { return CategoryCertificates }
func (CertificateData) isCategoryData()    {}

func (d CertificateData) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if d.Quantity != 0 {
		fields[FieldQuantity] = d.Quantity
	}
	if d.Reason != "" {
		fields[FieldReason] = string(d.Reason)
	}
	return fields
}

type PermitData struct {
	DurationMonths     int          `json:"duracion_meses,omitempty"`
	ActivityType       ActivityType `json:"tipo_actividad,omitempty"`
	RequiresInspection bool         `json:"requiere_inspeccion,omitempty"`
}

func (PermitData) Category() Category { return CategoryPermits }
func (PermitData) isCategoryData()    {}

func (d PermitData) Fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if d.DurationMonths != 0 {
		fields[FieldDurationMonths] = d.DurationMonths
	}
	if d.ActivityType != "" {
		fields[FieldActivityType] = string(d.ActivityType)
	}
	if d.RequiresInspection {
		fields[FieldRequiresInspection] = true
	}
	return fields
}

// OtherData covers every category without mandatory fields (services, other).
type OtherData struct {
	category Category
}

func (d OtherData) Category() Category {
	if d.category == "" {
		return CategoryOther
	}
	return d.category
}
func (OtherData) isCategoryData()                {}
func (OtherData) Fields() map[string]interface{} { return map[string]interface{}{} }

// EmptyCategoryData returns the zero value of the data type for a category.
func EmptyCategoryData(category Category) CategoryData {
	switch category {
	case CategoryLicenses:
		return LicenseData{}
	case CategoryCertificates:
		return CertificateData{}
	case CategoryPermits:
		return PermitData{}
	default:
		return OtherData{category: category}
	}
}

// DecodeCategoryData builds the data type for category from loosely typed form
// values. Numbers may arrive as JSON numbers or strings; values that cannot be
// parsed decode as zero and are caught by validation.
func DecodeCategoryData(category Category, values map[string]interface{}) CategoryData {
	switch category {
	case CategoryLicenses:
		return LicenseData{
			ConstructionAddress: strings.TrimSpace(asString(values[FieldConstructionAddress])),
			ConstructionAreaM2:  asFloat(values[FieldConstructionArea]),
			Urgent:              asBool(values[FieldUrgent]),
		}
	case CategoryCertificates:
		return CertificateData{
			Quantity: asInt(values[FieldQuantity]),
			Reason:   CertificateReason(asString(values[FieldReason])),
		}
	case CategoryPermits:
		return PermitData{
			DurationMonths:     asInt(values[FieldDurationMonths]),
			ActivityType:       ActivityType(asString(values[FieldActivityType])),
			RequiresInspection: asBool(values[FieldRequiresInspection]),
		}
	default:
		return OtherData{category: category}
	}
}

// MergeCategoryData overlays updates on top of current and decodes the result.
// A nil update value removes the field.
func MergeCategoryData(current CategoryData, updates map[string]interface{}) CategoryData {
	merged := current.Fields()
	for k, v := range updates {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return DecodeCategoryData(current.Category(), merged)
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	return ""
}

func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	return 0
}

// asInt rejects non-integral values by returning zero.
func asInt(v interface{}) int {
	f := asFloat(v)
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func asBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	}
	return false
}
