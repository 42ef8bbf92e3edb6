// internal/estimator/cost.go
package estimator

import (
	"math"

	"github.com/docucontrol/tramites-portal/internal/models"
)

// Line item codes, in the order they are evaluated.
const (
	ItemBase                   = "base"
	ItemUrgent                 = "urgent"
	ItemLargeConstruction      = "large_construction"
	ItemAdditionalCertificates = "additional_certificates"
	ItemExtendedPermit         = "extended_permit"
)

type LineItem struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

type CostEstimate struct {
	BaseCost       float64    `json:"base_cost"`
	SurchargeTotal float64    `json:"surcharge_total"`
	TotalCost      int64      `json:"total_cost"`
	Breakdown      []LineItem `json:"breakdown"`
}

func (e CostEstimate) IsFree() bool {
	return e.TotalCost == 0
}

// EstimateCost applies the additive surcharge rules on top of the procedure's
// base cost. The first breakdown entry is always the base line.
func (r Rules) EstimateCost(procedure *models.ProcedureDefinition, details models.CategoryData) CostEstimate {
	base := procedure.BaseCost
	breakdown := []LineItem{{Code: ItemBase, Amount: base}}
	var surcharges float64

	add := func(code string, amount float64) {
		breakdown = append(breakdown, LineItem{Code: code, Amount: amount})
		surcharges += amount
	}

	switch d := details.(type) {
	case models.LicenseData:
		if d.Urgent {
			add(ItemUrgent, base*r.Cost.UrgentRate)
		}
		if d.ConstructionAreaM2 > r.Cost.LargeConstructionAreaM2 {
			add(ItemLargeConstruction, r.Cost.LargeConstructionSurcharge)
		}
	case models.CertificateData:
		if d.Quantity > 1 {
			add(ItemAdditionalCertificates, float64(d.Quantity-1)*base*r.Cost.AdditionalCertificateRate)
		}
	case models.PermitData:
		if d.DurationMonths > r.Cost.LongPermitMonths {
			add(ItemExtendedPermit, base*r.Cost.LongPermitRate)
		}
	case models.OtherData, nil:
	}

	return CostEstimate{
		BaseCost:       base,
		SurchargeTotal: surcharges,
		TotalCost:      int64(math.Round(base + surcharges)),
		Breakdown:      breakdown,
	}
}
