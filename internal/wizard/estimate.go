// internal/wizard/estimate.go
package wizard

import (
	"time"

	"github.com/docucontrol/tramites-portal/internal/estimator"
	"github.com/docucontrol/tramites-portal/internal/models"
)

// Estimate bundles the derived values shown next to the form.
type Estimate struct {
	Cost                   estimator.CostEstimate       `json:"cost"`
	Time                   estimator.TimeEstimate       `json:"time"`
	AdditionalRequirements []estimator.Requirement      `json:"additional_requirements"`
	AdditionalDocuments    []models.DocumentRequirement `json:"additional_documents"`
}

// BuildEstimate is a pure function of its inputs.
func BuildEstimate(rules estimator.Rules, procedure *models.ProcedureDefinition, details models.CategoryData, incompleteDocuments bool, today time.Time) Estimate {
	return Estimate{
		Cost: rules.EstimateCost(procedure, details),
		Time: rules.EstimateTime(procedure, details, estimator.TimeInput{
			IncompleteDocuments: incompleteDocuments,
			Today:               today,
		}),
		AdditionalRequirements: rules.AdditionalRequirements(details),
		AdditionalDocuments:    rules.AdditionalDocuments(details),
	}
}
