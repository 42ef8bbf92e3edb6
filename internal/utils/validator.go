// internal/utils/validator.go
package utils

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/docucontrol/tramites-portal/internal/i18n"
)

var validate *validator.Validate

var emailShape = regexp.MustCompile(`^\S+@\S+\.\S+$`)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	validate.RegisterValidation("required_trimmed", validateRequiredTrimmed)
	validate.RegisterValidation("email_shape", validateEmailShape)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// IsEmailShape performs the loose local@domain.tld check used by the forms.
func IsEmailShape(email string) bool {
	return emailShape.MatchString(strings.TrimSpace(email))
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

func validateRequiredTrimmed(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateEmailShape(fl validator.FieldLevel) bool {
	return IsEmailShape(fl.Field().String())
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error, lang string) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   e.Field(),
				Tag:     e.Tag(),
				Message: getValidationMessage(e, lang),
			})
		}
	}

	return validationErrors
}

// TagKey maps a validator tag to its translation key.
func TagKey(tag string) string {
	switch tag {
	case "required", "required_trimmed":
		return i18n.KeyValidationRequired
	case "email", "email_shape":
		return i18n.KeyValidationEmail
	case "gt", "gte":
		return i18n.KeyValidationPositiveNumber
	case "oneof":
		return i18n.KeyValidationOption
	default:
		return i18n.KeyValidationInvalid
	}
}

func getValidationMessage(e validator.FieldError, lang string) string {
	return i18n.T(lang, TagKey(e.Tag()), i18n.Field(lang, e.Field()))
}
