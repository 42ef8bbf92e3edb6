// internal/estimator/requirements.go
package estimator

import "github.com/docucontrol/tramites-portal/internal/models"

// Requirement is an extra condition triggered by the category data.
type Requirement struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Mandatory bool   `json:"mandatory"`
}

const (
	RequirementImpactStudy          = "estudio_impacto"
	RequirementUrgencyJustification = "justificacion_urgencia"
	RequirementCertificateList      = "listado_certificados"
	RequirementInspectionRequest    = "solicitud_inspeccion"

	DocumentArchitecturalPlans = "planos_arquitectonicos"
	DocumentCompanyLetter      = "carta_empresa"
)

// AdditionalRequirements lists the requirements added on top of the
// procedure's own ones for the given data.
func (r Rules) AdditionalRequirements(details models.CategoryData) []Requirement {
	out := []Requirement{}
	switch d := details.(type) {
	case models.LicenseData:
		if d.ConstructionAreaM2 > r.Cost.LargeConstructionAreaM2 {
			out = append(out, Requirement{ID: RequirementImpactStudy, Kind: "ambiental", Mandatory: true})
		}
		if d.Urgent {
			out = append(out, Requirement{ID: RequirementUrgencyJustification, Kind: "administrativa", Mandatory: true})
		}
	case models.CertificateData:
		if d.Quantity > 1 {
			out = append(out, Requirement{ID: RequirementCertificateList, Kind: "administrativa", Mandatory: true})
		}
	case models.PermitData:
		if d.RequiresInspection {
			out = append(out, Requirement{ID: RequirementInspectionRequest, Kind: "tecnica", Mandatory: true})
		}
	case models.OtherData, nil:
	}
	return out
}

// AdditionalDocuments lists document slots that become required for the
// given data. They are selectable in the wizard like the procedure's own
// required documents.
func (r Rules) AdditionalDocuments(details models.CategoryData) []models.DocumentRequirement {
	out := []models.DocumentRequirement{}
	switch d := details.(type) {
	case models.LicenseData:
		if d.ConstructionAreaM2 > r.Time.HugeConstructionAreaM2 {
			out = append(out, models.DocumentRequirement{
				ID:              DocumentArchitecturalPlans,
				Name:            "Planos arquitectónicos certificados",
				Description:     "Planos firmados por arquitecto matriculado",
				AcceptedFormats: []string{"pdf", "dwg"},
				MaxSizeBytes:    10 * 1024 * 1024,
				Mandatory:       true,
			})
		}
	case models.CertificateData:
		if d.Reason == models.ReasonWork {
			out = append(out, models.DocumentRequirement{
				ID:              DocumentCompanyLetter,
				Name:            "Carta de la empresa solicitante",
				Description:     "Carta oficial de la empresa explicando el motivo del certificado",
				AcceptedFormats: []string{"pdf"},
				MaxSizeBytes:    2 * 1024 * 1024,
				Mandatory:       true,
			})
		}
	case models.PermitData, models.OtherData, nil:
	}
	return out
}
