// internal/estimator/time.go
package estimator

import (
	"math"
	"slices"
	"time"

	"github.com/docucontrol/tramites-portal/internal/models"
)

// Factor codes, in the order they are evaluated.
const (
	FactorUrgent              = "urgent"
	FactorHugeConstruction    = "huge_construction"
	FactorIncompleteDocuments = "incomplete_documents"
	FactorBulkCertificates    = "bulk_certificates"
	FactorInspection          = "inspection"
	FactorSeasonalDemand      = "seasonal_demand"
)

type Effect string

const (
	// EffectReplace means the factor recomputed the running total.
	EffectReplace Effect = "replace"
	EffectAdd     Effect = "add"
)

type Factor struct {
	Code   string `json:"code"`
	Effect Effect `json:"effect"`
	Days   int    `json:"days"`
}

type TimeInput struct {
	// IncompleteDocuments is set while a mandatory document has no attachment.
	IncompleteDocuments bool
	Today               time.Time
}

type TimeEstimate struct {
	BaseDays                int       `json:"base_days"`
	EstimatedDays           int       `json:"estimated_days"`
	Factors                 []Factor  `json:"factors"`
	EstimatedCompletionDate time.Time `json:"estimated_completion_date"`
}

func (r Rules) EstimateTime(procedure *models.ProcedureDefinition, details models.CategoryData, in TimeInput) TimeEstimate {
	base := procedure.BaseDurationDays
	total := base
	factors := []Factor{}

	addDays := func(code string, days int) {
		total += days
		factors = append(factors, Factor{Code: code, Effect: EffectAdd, Days: days})
	}

	license, isLicense := details.(models.LicenseData)
	if isLicense && license.Urgent {
		reduced := max(1, int(math.Ceil(float64(total)*r.Time.UrgentFactor)))
		factors = append(factors, Factor{Code: FactorUrgent, Effect: EffectReplace, Days: reduced - total})
		total = reduced
	}
	if isLicense && license.ConstructionAreaM2 > r.Time.HugeConstructionAreaM2 {
		addDays(FactorHugeConstruction, r.Time.HugeConstructionDays)
	}
	if in.IncompleteDocuments {
		addDays(FactorIncompleteDocuments, r.Time.IncompleteDocumentsDays)
	}

	switch d := details.(type) {
	case models.CertificateData:
		if d.Quantity > r.Time.BulkCertificateQuantity {
			addDays(FactorBulkCertificates, r.Time.BulkCertificateDays)
		}
	case models.PermitData:
		if d.RequiresInspection {
			addDays(FactorInspection, r.Time.InspectionDays)
		}
	case models.LicenseData, models.OtherData, nil:
	}

	today := in.Today
	if today.IsZero() {
		today = time.Now()
	}
	if slices.Contains(r.Time.SeasonalMonths, today.Month()) {
		addDays(FactorSeasonalDemand, r.Time.SeasonalDays)
	}

	estimated := max(1, total)
	return TimeEstimate{
		BaseDays:                base,
		EstimatedDays:           estimated,
		Factors:                 factors,
		EstimatedCompletionDate: AddBusinessDays(today, estimated),
	}
}

// AddBusinessDays walks forward one calendar day at a time from start and
// counts only Monday to Friday. No holiday calendar is applied.
func AddBusinessDays(start time.Time, days int) time.Time {
	date := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for counted := 0; counted < days; {
		date = date.AddDate(0, 0, 1)
		if IsBusinessDay(date) {
			counted++
		}
	}
	return date
}

func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
