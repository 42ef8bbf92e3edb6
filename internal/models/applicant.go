// internal/models/applicant.go
package models

import "strings"

type ApplicantProfile struct {
	FullName string `json:"nombre_completo" validate:"required_trimmed"`
	IDNumber string `json:"documento" validate:"required_trimmed"`
	Phone    string `json:"telefono" validate:"required_trimmed"`
	Email    string `json:"email" validate:"required_trimmed,email_shape"`
	Address  string `json:"direccion" validate:"required_trimmed"`
}

// Applicant field names as exchanged with the front end and used as
// validation error keys.
const (
	FieldFullName = "nombre_completo"
	FieldIDNumber = "documento"
	FieldPhone    = "telefono"
	FieldEmail    = "email"
	FieldAddress  = "direccion"
)

// Set assigns a single field by its wire name. Unknown names are ignored and
// reported as false.
func (a *ApplicantProfile) Set(field, value string) bool {
	switch field {
	case FieldFullName:
		a.FullName = value
	case FieldIDNumber:
		a.IDNumber = value
	case FieldPhone:
		a.Phone = value
	case FieldEmail:
		a.Email = value
	case FieldAddress:
		a.Address = value
	default:
		return false
	}
	return true
}

func (a ApplicantProfile) Get(field string) string {
	switch field {
	case FieldFullName:
		return a.FullName
	case FieldIDNumber:
		return a.IDNumber
	case FieldPhone:
		return a.Phone
	case FieldEmail:
		return a.Email
	case FieldAddress:
		return a.Address
	}
	return ""
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (a ApplicantProfile) Trimmed() ApplicantProfile {
	return ApplicantProfile{
		FullName: strings.TrimSpace(a.FullName),
		IDNumber: strings.TrimSpace(a.IDNumber),
		Phone:    strings.TrimSpace(a.Phone),
		Email:    strings.TrimSpace(a.Email),
		Address:  strings.TrimSpace(a.Address),
	}
}

// ApplicantFields lists the applicant fields in form order.
var ApplicantFields = []string{FieldFullName, FieldIDNumber, FieldPhone, FieldEmail, FieldAddress}
