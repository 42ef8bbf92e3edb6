// internal/wizard/validation.go
package wizard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/docucontrol/tramites-portal/internal/i18n"
	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/utils"
)

// Permit durations are limited to two years.
const (
	MinPermitMonths = 1
	MaxPermitMonths = 24
)

var categoryFields = map[models.Category][]string{
	models.CategoryLicenses:     {models.FieldConstructionAddress, models.FieldConstructionArea, models.FieldUrgent},
	models.CategoryCertificates: {models.FieldQuantity, models.FieldReason},
	models.CategoryPermits:      {models.FieldDurationMonths, models.FieldActivityType, models.FieldRequiresInspection},
}

func detailFields(category models.Category) map[string]bool {
	allowed := map[string]bool{}
	for _, f := range categoryFields[category] {
		allowed[f] = true
	}
	return allowed
}

func unknownField(field string) error {
	return fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// validate only looks at the fields that belong to step.
func (w *Wizard) validate(step Step) FieldErrors {
	switch step {
	case StepPersonalInfo:
		return ValidateApplicant(w.applicant)
	case StepCategoryDetails:
		return ValidateDetails(w.details)
	default:
		// Document selection is never blocking; missing mandatory documents
		// are reported through MissingMandatory instead.
		return FieldErrors{}
	}
}

// ValidateApplicant requires every profile field and a plausible email.
func ValidateApplicant(applicant models.ApplicantProfile) FieldErrors {
	errs := FieldErrors{}
	err := utils.ValidateStruct(applicant)
	if err == nil {
		return errs
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		for _, field := range models.ApplicantFields {
			if strings.TrimSpace(applicant.Get(field)) == "" {
				errs[field] = FieldError{Code: i18n.KeyValidationRequired}
			}
		}
		return errs
	}
	for _, fe := range verrs {
		errs[fe.Field()] = FieldError{Code: utils.TagKey(fe.Tag())}
	}
	return errs
}

// ValidateDetails enforces the mandatory fields of the data's category.
func ValidateDetails(details models.CategoryData) FieldErrors {
	errs := FieldErrors{}

	switch d := details.(type) {
	case models.LicenseData:
		if strings.TrimSpace(d.ConstructionAddress) == "" {
			errs[models.FieldConstructionAddress] = FieldError{Code: i18n.KeyValidationRequired}
		}
		if d.ConstructionAreaM2 <= 0 {
			errs[models.FieldConstructionArea] = FieldError{Code: i18n.KeyValidationPositiveNumber}
		}
	case models.CertificateData:
		if d.Quantity <= 0 {
			errs[models.FieldQuantity] = FieldError{Code: i18n.KeyValidationPositiveInteger}
		}
		if d.Reason != "" && !d.Reason.Valid() {
			errs[models.FieldReason] = FieldError{Code: i18n.KeyValidationOption}
		}
	case models.PermitData:
		if d.DurationMonths < MinPermitMonths || d.DurationMonths > MaxPermitMonths {
			errs[models.FieldDurationMonths] = FieldError{
				Code: i18n.KeyValidationRange,
				Args: []interface{}{MinPermitMonths, MaxPermitMonths},
			}
		}
		if d.ActivityType != "" && !d.ActivityType.Valid() {
			errs[models.FieldActivityType] = FieldError{Code: i18n.KeyValidationOption}
		}
	case models.OtherData, nil:
	}

	return errs
}
