// internal/estimator/rules.go
package estimator

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Rules holds every threshold and rate used by the cost and time estimators.
type Rules struct {
	Cost CostRules `yaml:"cost"`
	Time TimeRules `yaml:"time"`
}

type CostRules struct {
	UrgentRate                 float64 `yaml:"urgent_rate"`
	LargeConstructionAreaM2    float64 `yaml:"large_construction_area_m2"`
	LargeConstructionSurcharge float64 `yaml:"large_construction_surcharge"`
	AdditionalCertificateRate  float64 `yaml:"additional_certificate_rate"`
	LongPermitMonths           int     `yaml:"long_permit_months"`
	LongPermitRate             float64 `yaml:"long_permit_rate"`
}

type TimeRules struct {
	UrgentFactor            float64      `yaml:"urgent_factor"`
	HugeConstructionAreaM2  float64      `yaml:"huge_construction_area_m2"`
	HugeConstructionDays    int          `yaml:"huge_construction_days"`
	IncompleteDocumentsDays int          `yaml:"incomplete_documents_days"`
	BulkCertificateQuantity int          `yaml:"bulk_certificate_quantity"`
	BulkCertificateDays     int          `yaml:"bulk_certificate_days"`
	InspectionDays          int          `yaml:"inspection_days"`
	SeasonalMonths          []time.Month `yaml:"seasonal_months"`
	SeasonalDays            int          `yaml:"seasonal_days"`
}

func DefaultRules() Rules {
	return Rules{
		Cost: CostRules{
			UrgentRate:                 0.5,
			LargeConstructionAreaM2:    500,
			LargeConstructionSurcharge: 200000,
			AdditionalCertificateRate:  0.3,
			LongPermitMonths:           12,
			LongPermitRate:             0.25,
		},
		Time: TimeRules{
			UrgentFactor:            0.3,
			HugeConstructionAreaM2:  1000,
			HugeConstructionDays:    5,
			IncompleteDocumentsDays: 3,
			BulkCertificateQuantity: 5,
			BulkCertificateDays:     2,
			InspectionDays:          7,
			SeasonalMonths:          []time.Month{time.December, time.January},
			SeasonalDays:            2,
		},
	}
}

// LoadRules reads a YAML rules file on top of the defaults. Keys missing from
// the file keep their default value. An empty path returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("failed to read estimator rules %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("failed to parse estimator rules %s: %w", path, err)
	}

	return rules, rules.Validate()
}

func (r Rules) Validate() error {
	if r.Cost.UrgentRate < 0 || r.Cost.AdditionalCertificateRate < 0 || r.Cost.LongPermitRate < 0 {
		return fmt.Errorf("cost rates must not be negative")
	}
	if r.Cost.LargeConstructionSurcharge < 0 {
		return fmt.Errorf("large construction surcharge must not be negative")
	}
	if r.Time.UrgentFactor <= 0 || r.Time.UrgentFactor > 1 {
		return fmt.Errorf("urgent time factor must be in (0, 1], got %v", r.Time.UrgentFactor)
	}
	for _, m := range r.Time.SeasonalMonths {
		if m < time.January || m > time.December {
			return fmt.Errorf("invalid seasonal month %d", m)
		}
	}
	return nil
}
