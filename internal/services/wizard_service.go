// internal/services/wizard_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/docucontrol/tramites-portal/internal/estimator"
	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/wizard"
)

var (
	ErrSessionNotFound = errors.New("wizard session not found")
	ErrNotCompleted    = errors.New("wizard has not been submitted")
	ErrStagingFailed   = errors.New("failed to stage file")
)

var (
	wizardsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tramites_wizards_opened_total",
		Help: "Wizard sessions opened.",
	})
	wizardsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tramites_wizards_completed_total",
		Help: "Wizards that created a request.",
	})
	wizardsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tramites_wizards_closed_total",
		Help: "Wizard sessions removed from memory, by reason.",
	}, []string{"reason"})
	wizardsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tramites_wizards_active",
		Help: "Wizard sessions currently held in memory.",
	})
	submissionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tramites_submission_failures_total",
		Help: "Submissions whose create-request call failed.",
	})
	documentUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tramites_document_uploads_total",
		Help: "Document uploads attempted after a request was created, by status.",
	}, []string{"status"})
)

// WizardSession is one open wizard owned by a single user.
type WizardSession struct {
	ID        string         `json:"id"`
	Owner     string         `json:"-"`
	Wizard    *wizard.Wizard `json:"-"`
	CreatedAt time.Time      `json:"created_at"`

	lastSeen time.Time
}

type WizardServiceConfig struct {
	Catalog       wizard.ProcedureCatalog
	Requests      wizard.RequestService
	Documents     wizard.DocumentService
	Staging       *StagingService
	Audit         *AuditService
	Notifications *NotificationService
	Payments      *PaymentService
	Rules         *estimator.Rules
	SessionTTL    time.Duration
	Clock         func() time.Time
}

// WizardService keeps the wizard sessions of the portal in memory.
type WizardService struct {
	mu       sync.Mutex
	sessions map[string]*WizardSession

	catalog       wizard.ProcedureCatalog
	requests      wizard.RequestService
	documents     wizard.DocumentService
	staging       *StagingService
	audit         *AuditService
	notifications *NotificationService
	payments      *PaymentService
	rules         *estimator.Rules
	ttl           time.Duration
	now           func() time.Time
	logger        *logrus.Entry

	stop     chan struct{}
	stopOnce sync.Once
	pending  sync.WaitGroup
}

func NewWizardService(cfg WizardServiceConfig) *WizardService {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	staging := cfg.Staging
	if staging == nil {
		staging = NewMemoryStagingService()
	}

	return &WizardService{
		sessions:      make(map[string]*WizardSession),
		catalog:       cfg.Catalog,
		requests:      cfg.Requests,
		documents:     cfg.Documents,
		staging:       staging,
		audit:         cfg.Audit,
		notifications: cfg.Notifications,
		payments:      cfg.Payments,
		rules:         cfg.Rules,
		ttl:           ttl,
		now:           clock,
		logger:        logrus.WithField("component", "wizard_service"),
		stop:          make(chan struct{}),
	}
}

// Open fetches the procedure and starts a session seeded with the
// applicant pre-fill. A failed fetch returns *wizard.ProcedureFetchError.
func (s *WizardService) Open(ctx context.Context, owner, procedureID string, prefill models.ApplicantProfile) (*WizardSession, error) {
	id := uuid.New().String()
	logger := s.logger.WithFields(logrus.Fields{"wizard_id": id, "user_id": owner})

	w, err := wizard.Open(ctx, s.catalog, procedureID, prefill, wizard.Config{
		Requests:  s.requests,
		Documents: s.documents,
		Rules:     s.rules,
		Logger:    logger,
		Clock:     s.now,
	})
	if err != nil {
		logger.WithError(err).WithField("procedure_id", procedureID).Warn("Failed to open wizard")
		return nil, err
	}

	now := s.now()
	session := &WizardSession{
		ID:        id,
		Owner:     owner,
		Wizard:    w,
		CreatedAt: now,
		lastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	wizardsOpened.Inc()
	wizardsActive.Inc()
	logger.WithField("procedure_id", procedureID).Info("Wizard opened")
	return session, nil
}

// Get returns the caller's session. Sessions of other users are reported
// as not found.
func (s *WizardService) Get(owner, id string) (*WizardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.Owner != owner {
		return nil, ErrSessionNotFound
	}
	session.lastSeen = s.now()
	return session, nil
}

// Abandon discards the wizard and releases its staged files.
func (s *WizardService) Abandon(owner, id string) error {
	session, err := s.Get(owner, id)
	if err != nil {
		return err
	}
	if err := session.Wizard.Discard(); err != nil {
		return err
	}
	s.remove(id, "abandoned")
	return nil
}

func (s *WizardService) remove(id, reason string) {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		wizardsClosed.WithLabelValues(reason).Inc()
		wizardsActive.Dec()
	}
}

// AttachFile stages the file and selects it for the document. Staging
// errors wrap ErrStagingFailed; wizard errors are returned as is.
func (s *WizardService) AttachFile(ctx context.Context, owner, id, documentID string, req StageRequest) (models.AttachmentFile, error) {
	session, err := s.Get(owner, id)
	if err != nil {
		return models.AttachmentFile{}, err
	}

	req.WizardID = id
	req.DocumentID = documentID
	file, err := s.staging.Stage(ctx, req)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"wizard_id":   id,
			"document_id": documentID,
		}).Error("Failed to stage file")
		return models.AttachmentFile{}, fmt.Errorf("%w: %w", ErrStagingFailed, err)
	}

	if err := session.Wizard.SelectAttachment(documentID, file); err != nil {
		return models.AttachmentFile{}, err
	}
	return file, nil
}

// Submit runs the wizard submission. Uploads are not cut short when the
// caller goes away: the context keeps its values but drops cancellation.
func (s *WizardService) Submit(ctx context.Context, owner, id, lang string) (*wizard.SubmissionReport, error) {
	session, err := s.Get(owner, id)
	if err != nil {
		return nil, err
	}

	report, err := session.Wizard.Submit(context.WithoutCancel(ctx))
	if err != nil {
		var submitErr *wizard.SubmissionError
		if errors.As(err, &submitErr) {
			submissionFailures.Inc()
		}
		return nil, err
	}

	for _, o := range report.Outcomes {
		documentUploads.WithLabelValues(string(o.Status)).Inc()
	}
	wizardsCompleted.Inc()

	s.afterCompletion(session, lang, report)
	return report, nil
}

// afterCompletion records the submission and sends the receipt. Neither
// affects the wizard result.
func (s *WizardService) afterCompletion(session *WizardSession, lang string, report *wizard.SubmissionReport) {
	procedure := session.Wizard.Procedure()

	if s.audit != nil {
		s.audit.RecordAsync(NewSubmissionRecord(session.Owner, procedure, report))
	}

	if s.notifications != nil {
		s.pending.Add(1)
		go func() {
			defer s.pending.Done()
			if err := s.notifications.SendSubmissionReceipt(lang, procedure, report); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"wizard_id":     session.ID,
					"tracking_code": report.Result.TrackingCode,
				}).Warn("Failed to send submission receipt")
			}
		}()
	}
}

// CreatePayment opens a fee payment for a completed wizard.
func (s *WizardService) CreatePayment(owner, id string) (*PaymentIntentResponse, error) {
	session, err := s.Get(owner, id)
	if err != nil {
		return nil, err
	}
	if s.payments == nil {
		return nil, ErrPaymentsDisabled
	}

	report, ok := session.Wizard.Report()
	if !ok {
		return nil, ErrNotCompleted
	}
	return s.payments.CreateFeeIntent(owner, report)
}

// ExpireIdle discards sessions not touched within the TTL. Sessions in the
// middle of a submission are kept until the next sweep.
func (s *WizardService) ExpireIdle() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var idle []*WizardSession
	for _, session := range s.sessions {
		if session.lastSeen.Before(cutoff) {
			idle = append(idle, session)
		}
	}
	s.mu.Unlock()

	expired := 0
	for _, session := range idle {
		if err := session.Wizard.Discard(); err != nil {
			continue
		}
		s.remove(session.ID, "expired")
		expired++
		s.logger.WithFields(logrus.Fields{"wizard_id": session.ID, "user_id": session.Owner}).Debug("Wizard session expired")
	}
	return expired
}

// StartJanitor expires idle sessions every interval until Close.
func (s *WizardService) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.ExpireIdle(); n > 0 {
					s.logger.WithField("expired", n).Info("Expired idle wizard sessions")
				}
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *WizardService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Wait blocks until background receipts and audit writes are done.
func (s *WizardService) Wait() {
	s.pending.Wait()
	if s.audit != nil {
		s.audit.Wait()
	}
}

// Close stops the janitor, waits for background work and discards every
// session that is not submitting.
func (s *WizardService) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.Wait()

	s.mu.Lock()
	sessions := make([]*WizardSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		if err := session.Wizard.Discard(); err == nil {
			s.remove(session.ID, "shutdown")
		}
	}
}
