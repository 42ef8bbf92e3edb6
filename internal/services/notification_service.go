// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/docucontrol/tramites-portal/internal/config"
	"github.com/docucontrol/tramites-portal/internal/i18n"
	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/wizard"
)

type NotificationService struct {
	config   *config.Config
	logger   *logrus.Entry
	receipt  *template.Template
	sendMail func(to, subject, body string) error
}

type receiptData struct {
	ApplicantName string
	ProcedureName string
	TrackingCode  string
	SubmittedAt   string
	TotalCost     string
	EstimatedDays int
	CompletionOn  string
	Notice        string
	Uploaded      []string
	Failed        []string
	RetryHint     string
	RequestsURL   string
	PlatformName  string
}

const receiptTemplate = `
<!DOCTYPE html>
<html>
<body>
	<h2>{{.ProcedureName}}</h2>
	<p>{{.ApplicantName}},</p>
	<p>Número de expediente / Tracking code: <strong>{{.TrackingCode}}</strong></p>
	<p>{{.SubmittedAt}}</p>
	<ul>
		<li>{{.TotalCost}}</li>
		<li>{{.EstimatedDays}} ({{.CompletionOn}})</li>
	</ul>
	{{if .Notice}}<p>{{.Notice}}</p>{{end}}
	{{if .Uploaded}}<ul>{{range .Uploaded}}<li>&#10003; {{.}}</li>{{end}}</ul>{{end}}
	{{if .Failed}}<ul>{{range .Failed}}<li>&#10007; {{.}}</li>{{end}}</ul>
	<p>{{.RetryHint}}</p>{{end}}
	<a href="{{.RequestsURL}}">{{.RequestsURL}}</a>
	<p>{{.PlatformName}}</p>
</body>
</html>`

func NewNotificationService(cfg *config.Config) *NotificationService {
	s := &NotificationService{
		config:  cfg,
		logger:  logrus.WithField("component", "notification"),
		receipt: template.Must(template.New("receipt").Parse(receiptTemplate)),
	}
	s.sendMail = s.sendEmail
	return s
}

// SendSubmissionReceipt e-mails the applicant a summary of a completed
// wizard.
func (s *NotificationService) SendSubmissionReceipt(lang string, procedure *models.ProcedureDefinition, report *wizard.SubmissionReport) error {
	to := strings.TrimSpace(report.Applicant.Email)
	if to == "" {
		return fmt.Errorf("applicant has no e-mail address")
	}

	subject := i18n.T(lang, i18n.KeyReceiptSubject, report.Result.TrackingCode)
	body, err := s.RenderReceipt(lang, procedure, report)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendMail(to, subject, body)
}

func (s *NotificationService) RenderReceipt(lang string, procedure *models.ProcedureDefinition, report *wizard.SubmissionReport) (string, error) {
	data := receiptData{
		ApplicantName: report.Applicant.FullName,
		ProcedureName: procedure.Name,
		TrackingCode:  report.Result.TrackingCode,
		SubmittedAt:   report.Result.CreatedAt.Format("2006-01-02 15:04"),
		TotalCost:     formatCOP(report.Estimate.Cost.TotalCost),
		EstimatedDays: report.Estimate.Time.EstimatedDays,
		CompletionOn:  report.Estimate.Time.EstimatedCompletionDate.Format("2006-01-02"),
		RetryHint:     i18n.T(lang, i18n.KeyUploadRetryHint),
		RequestsURL:   strings.TrimRight(s.config.Frontend.BaseURL, "/") + "/mis-solicitudes",
		PlatformName:  s.config.Email.FromName,
	}
	if key, args := report.Notice(); key != "" {
		data.Notice = i18n.T(lang, key, args...)
	}
	for _, o := range report.Outcomes {
		if o.Succeeded() {
			data.Uploaded = append(data.Uploaded, o.DeclaredName)
		} else {
			data.Failed = append(data.Failed, o.DeclaredName)
		}
	}

	var buf bytes.Buffer
	if err := s.receipt.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatCOP renders whole pesos with dot thousands separators.
func formatCOP(amount int64) string {
	digits := fmt.Sprintf("%d", amount)
	var out []byte
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, digits[i])
	}
	return "$ " + string(out)
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		s.logger.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email not configured, skipping send")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	from := s.config.Email.FromEmail
	if s.config.Email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.Email.FromName, s.config.Email.FromEmail)
	}
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", from, to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}
