// internal/estimator/estimator_test.go
package estimator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docucontrol/tramites-portal/internal/models"
)

func procedure(category models.Category, cost float64, days int) *models.ProcedureDefinition {
	return &models.ProcedureDefinition{ID: "1", Name: "Test", Category: category, BaseCost: cost, BaseDurationDays: days}
}

// June has no seasonal surcharge; 2026-06-05 is a Friday.
var juneFriday = time.Date(2026, time.June, 5, 10, 30, 0, 0, time.UTC)

func TestEstimateCost_LicenseUrgentLargeConstruction(t *testing.T) {
	rules := DefaultRules()
	est := rules.EstimateCost(procedure(models.CategoryLicenses, 100000, 10), models.LicenseData{
		ConstructionAddress: "Calle 1",
		ConstructionAreaM2:  600,
		Urgent:              true,
	})

	assert.Equal(t, int64(100000*1.5+200000), est.TotalCost)
	assert.Equal(t, float64(250000), est.SurchargeTotal)
	require.Len(t, est.Breakdown, 3)
	assert.Equal(t, LineItem{Code: ItemBase, Amount: 100000}, est.Breakdown[0])
	assert.Equal(t, LineItem{Code: ItemUrgent, Amount: 50000}, est.Breakdown[1])
	assert.Equal(t, LineItem{Code: ItemLargeConstruction, Amount: 200000}, est.Breakdown[2])
}

func TestEstimateCost_FreeProcedure(t *testing.T) {
	est := DefaultRules().EstimateCost(procedure(models.CategoryServices, 0, 5), models.EmptyCategoryData(models.CategoryServices))

	assert.Equal(t, int64(0), est.TotalCost)
	assert.True(t, est.IsFree())
	assert.Equal(t, []LineItem{{Code: ItemBase, Amount: 0}}, est.Breakdown)
}

func TestEstimateCost_AreaAtThresholdHasNoSurcharge(t *testing.T) {
	est := DefaultRules().EstimateCost(procedure(models.CategoryLicenses, 50000, 10), models.LicenseData{ConstructionAreaM2: 500})

	assert.Equal(t, int64(50000), est.TotalCost)
	assert.Len(t, est.Breakdown, 1)
}

func TestEstimateCost_Certificates(t *testing.T) {
	rules := DefaultRules()

	single := rules.EstimateCost(procedure(models.CategoryCertificates, 10000, 3), models.CertificateData{Quantity: 1})
	assert.Equal(t, int64(10000), single.TotalCost)

	several := rules.EstimateCost(procedure(models.CategoryCertificates, 10000, 3), models.CertificateData{Quantity: 3})
	assert.Equal(t, int64(16000), several.TotalCost)
	assert.Equal(t, ItemAdditionalCertificates, several.Breakdown[1].Code)
}

func TestEstimateCost_RoundsToWholeUnits(t *testing.T) {
	est := DefaultRules().EstimateCost(procedure(models.CategoryCertificates, 33333, 3), models.CertificateData{Quantity: 2})

	assert.InDelta(t, 9999.9, est.SurchargeTotal, 0.0001)
	assert.Equal(t, int64(43333), est.TotalCost)
}

func TestEstimateCost_Permits(t *testing.T) {
	rules := DefaultRules()

	short := rules.EstimateCost(procedure(models.CategoryPermits, 40000, 5), models.PermitData{DurationMonths: 12})
	assert.Equal(t, int64(40000), short.TotalCost)

	long := rules.EstimateCost(procedure(models.CategoryPermits, 40000, 5), models.PermitData{DurationMonths: 18})
	assert.Equal(t, int64(50000), long.TotalCost)
	assert.Equal(t, ItemExtendedPermit, long.Breakdown[1].Code)
}

func TestEstimateTime_UrgentReplacesTotal(t *testing.T) {
	est := DefaultRules().EstimateTime(procedure(models.CategoryLicenses, 0, 10), models.LicenseData{Urgent: true}, TimeInput{Today: juneFriday})

	assert.Equal(t, 10, est.BaseDays)
	assert.Equal(t, 3, est.EstimatedDays)
	require.Len(t, est.Factors, 1)
	assert.Equal(t, Factor{Code: FactorUrgent, Effect: EffectReplace, Days: -7}, est.Factors[0])
}

func TestEstimateTime_UrgentNeverBelowOneDay(t *testing.T) {
	est := DefaultRules().EstimateTime(procedure(models.CategoryLicenses, 0, 1), models.LicenseData{Urgent: true}, TimeInput{Today: juneFriday})

	assert.Equal(t, 1, est.EstimatedDays)
}

func TestEstimateTime_AdditiveFactors(t *testing.T) {
	rules := DefaultRules()

	est := rules.EstimateTime(procedure(models.CategoryLicenses, 0, 20),
		models.LicenseData{Urgent: true, ConstructionAreaM2: 1200},
		TimeInput{Today: juneFriday, IncompleteDocuments: true})
	assert.Equal(t, 6+5+3, est.EstimatedDays)
	codes := []string{}
	for _, f := range est.Factors {
		codes = append(codes, f.Code)
	}
	assert.Equal(t, []string{FactorUrgent, FactorHugeConstruction, FactorIncompleteDocuments}, codes)

	certs := rules.EstimateTime(procedure(models.CategoryCertificates, 0, 3), models.CertificateData{Quantity: 6}, TimeInput{Today: juneFriday})
	assert.Equal(t, 5, certs.EstimatedDays)

	fewCerts := rules.EstimateTime(procedure(models.CategoryCertificates, 0, 3), models.CertificateData{Quantity: 5}, TimeInput{Today: juneFriday})
	assert.Equal(t, 3, fewCerts.EstimatedDays)

	permit := rules.EstimateTime(procedure(models.CategoryPermits, 0, 4), models.PermitData{DurationMonths: 3, RequiresInspection: true}, TimeInput{Today: juneFriday})
	assert.Equal(t, 11, permit.EstimatedDays)
}

func TestEstimateTime_SeasonalDemand(t *testing.T) {
	december := time.Date(2026, time.December, 4, 9, 0, 0, 0, time.UTC)

	est := DefaultRules().EstimateTime(procedure(models.CategoryOther, 0, 5), models.EmptyCategoryData(models.CategoryOther), TimeInput{Today: december})

	assert.Equal(t, 7, est.EstimatedDays)
	require.Len(t, est.Factors, 1)
	assert.Equal(t, FactorSeasonalDemand, est.Factors[0].Code)
}

func TestEstimateTime_CompletionDateSkipsWeekend(t *testing.T) {
	est := DefaultRules().EstimateTime(procedure(models.CategoryOther, 0, 1), models.EmptyCategoryData(models.CategoryOther), TimeInput{Today: juneFriday})

	assert.Equal(t, time.Date(2026, time.June, 8, 0, 0, 0, 0, time.UTC), est.EstimatedCompletionDate)
	assert.Equal(t, time.Monday, est.EstimatedCompletionDate.Weekday())
}

func TestAddBusinessDays(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		days  int
		want  time.Time
	}{
		{"friday plus one lands on monday", juneFriday, 1, time.Date(2026, time.June, 8, 0, 0, 0, 0, time.UTC)},
		{"friday plus five lands on next friday", juneFriday, 5, time.Date(2026, time.June, 12, 0, 0, 0, 0, time.UTC)},
		{"saturday plus one lands on monday", juneFriday.AddDate(0, 0, 1), 1, time.Date(2026, time.June, 8, 0, 0, 0, 0, time.UTC)},
		{"zero days keeps the date", juneFriday, 0, time.Date(2026, time.June, 5, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddBusinessDays(tt.start, tt.days)
			assert.Equal(t, tt.want, got)
			assert.NotEqual(t, time.Saturday, got.Weekday())
			assert.NotEqual(t, time.Sunday, got.Weekday())
		})
	}
}

func TestAdditionalRequirementsAndDocuments(t *testing.T) {
	rules := DefaultRules()

	reqs := rules.AdditionalRequirements(models.LicenseData{ConstructionAreaM2: 1200, Urgent: true})
	require.Len(t, reqs, 2)
	assert.Equal(t, RequirementImpactStudy, reqs[0].ID)
	assert.Equal(t, RequirementUrgencyJustification, reqs[1].ID)

	docs := rules.AdditionalDocuments(models.LicenseData{ConstructionAreaM2: 1200})
	require.Len(t, docs, 1)
	assert.Equal(t, DocumentArchitecturalPlans, docs[0].ID)
	assert.True(t, docs[0].Mandatory)

	assert.Empty(t, rules.AdditionalDocuments(models.LicenseData{ConstructionAreaM2: 800}))

	letter := rules.AdditionalDocuments(models.CertificateData{Quantity: 1, Reason: models.ReasonWork})
	require.Len(t, letter, 1)
	assert.Equal(t, DocumentCompanyLetter, letter[0].ID)

	inspection := rules.AdditionalRequirements(models.PermitData{RequiresInspection: true})
	require.Len(t, inspection, 1)
	assert.Equal(t, RequirementInspectionRequest, inspection[0].ID)
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	content := "cost:\n  large_construction_surcharge: 350000\ntime:\n  seasonal_months: [12]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	rules, err = LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, float64(350000), rules.Cost.LargeConstructionSurcharge)
	assert.Equal(t, 0.5, rules.Cost.UrgentRate)
	assert.Equal(t, []time.Month{time.December}, rules.Time.SeasonalMonths)

	require.NoError(t, os.WriteFile(path, []byte("time:\n  urgent_factor: 0\n"), 0o600))
	_, err = LoadRules(path)
	assert.Error(t, err)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
