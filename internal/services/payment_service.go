// internal/services/payment_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/docucontrol/tramites-portal/internal/config"
	"github.com/docucontrol/tramites-portal/internal/wizard"
)

var (
	ErrPaymentsDisabled = errors.New("payments are not configured")
	ErrNothingToPay     = errors.New("procedure has no cost")
	ErrPaymentFailed    = errors.New("failed to create payment intent")
)

type PaymentService struct {
	config       *config.Config
	logger       *logrus.Entry
	createIntent func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Currencies Stripe expects in whole units.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

func NewPaymentService(cfg *config.Config) *PaymentService {
	stripe.Key = cfg.Payment.StripeSecretKey

	return &PaymentService{
		config:       cfg,
		logger:       logrus.WithField("component", "payment"),
		createIntent: paymentintent.New,
	}
}

func (s *PaymentService) Enabled() bool {
	return s.config.Payment.StripeSecretKey != ""
}

// CreateFeeIntent opens a PaymentIntent for the estimated total of a
// submitted request. Repeated calls for the same request reuse the intent
// through the idempotency key.
func (s *PaymentService) CreateFeeIntent(userID string, report *wizard.SubmissionReport) (*PaymentIntentResponse, error) {
	if !s.Enabled() {
		return nil, ErrPaymentsDisabled
	}
	total := report.Estimate.Cost.TotalCost
	if total <= 0 {
		return nil, ErrNothingToPay
	}

	currency := s.config.Payment.Currency
	if currency == "" {
		currency = "cop"
	}
	amount := total
	if !zeroDecimalCurrencies[currency] {
		amount = total * 100
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(currency),
		Description: stripe.String(fmt.Sprintf("Trámite %s", report.Result.TrackingCode)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if report.Applicant.Email != "" {
		params.ReceiptEmail = stripe.String(report.Applicant.Email)
	}
	params.AddMetadata("request_id", report.Result.RequestID)
	params.AddMetadata("tracking_code", report.Result.TrackingCode)
	params.AddMetadata("procedure_id", report.ProcedureID)
	params.AddMetadata("user_id", userID)
	params.SetIdempotencyKey("tramite-fee-" + report.Result.RequestID)

	pi, err := s.createIntent(params)
	if err != nil {
		s.logger.WithError(err).WithField("request_id", report.Result.RequestID).Error("Failed to create payment intent")
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	return &PaymentIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    pi.ID,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}
