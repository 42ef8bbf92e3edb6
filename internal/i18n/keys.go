// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess        = "success"
	KeyInternalError  = "error.internal"
	KeyRateLimited    = "rate_limit.exceeded"
	KeyRequestsFailed = "requests.unavailable"

	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthTokenExpired = "auth.token_expired"

	// Validation
	KeyValidationRequired        = "validation.required"
	KeyValidationInvalid         = "validation.invalid"
	KeyValidationEmail           = "validation.invalid_email"
	KeyValidationPositiveNumber  = "validation.positive_number"
	KeyValidationPositiveInteger = "validation.positive_integer"
	KeyValidationRange           = "validation.range"
	KeyValidationOption          = "validation.option"
	KeyValidationIncompleteStep  = "validation.incomplete_step"

	// File selection
	KeyFileMissing         = "file.missing"
	KeyFileInvalidType     = "file.invalid_type"
	KeyFileTooLarge        = "file.too_large"
	KeyFileUnknownDocument = "file.unknown_document"
	KeyFileStagingFailed   = "file.staging_failed"

	// Wizard
	KeyProcedureNotFound        = "procedure.not_found"
	KeyWizardNotFound           = "wizard.not_found"
	KeyWizardProcedureFailed    = "wizard.procedure_unavailable"
	KeyWizardInvalidTransition  = "wizard.invalid_transition"
	KeyWizardSubmissionInFlight = "wizard.submission_in_flight"
	KeyWizardSubmissionFailed   = "wizard.submission_failed"
	KeyWizardCreating           = "wizard.creating"
	KeyWizardUploading          = "wizard.uploading"
	KeyWizardCompleted          = "wizard.completed"
	KeyDocumentMissingMandatory = "document.missing_mandatory"

	// Upload summary
	KeyUploadAllSucceeded = "upload.all_succeeded"
	KeyUploadPartial      = "upload.partial"
	KeyUploadNone         = "upload.none"
	KeyUploadRetryHint    = "upload.retry_hint"

	// Payments
	KeyPaymentDisabled     = "payment.disabled"
	KeyPaymentNothingToPay = "payment.nothing_to_pay"
	KeyPaymentNotCompleted = "payment.not_completed"
	KeyPaymentFailed       = "payment.failed"

	// Notifications
	KeyReceiptSubject = "receipt.subject"
)

// Prefixes for keys derived from codes.
const (
	PrefixStep        = "step."
	PrefixCost        = "cost."
	PrefixTime        = "time."
	PrefixRequirement = "requirement."
)
