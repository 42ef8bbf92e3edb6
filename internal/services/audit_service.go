// internal/services/audit_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/utils"
	"github.com/docucontrol/tramites-portal/internal/wizard"
)

// ErrHistoryUnavailable is returned when neither the audit table nor the
// backend listing can serve the request history.
var ErrHistoryUnavailable = errors.New("request history unavailable")

// RequestLister is the backend's "my requests" listing.
type RequestLister interface {
	ListMyRequests(ctx context.Context) models.Result[[]models.RequestSummary]
}

// AuditService records completed submissions and serves the caller's
// request history. Without a database it reads the backend listing instead.
type AuditService struct {
	db       *gorm.DB
	backend  RequestLister
	logger   *logrus.Entry
	pending  sync.WaitGroup
	sortable []string
}

// RequestHistoryItem is one row of the "my requests" view.
type RequestHistoryItem struct {
	RequestID         string               `json:"request_id"`
	TrackingCode      string               `json:"tracking_code"`
	ProcedureID       string               `json:"procedure_id"`
	ProcedureName     string               `json:"procedure_name,omitempty"`
	Status            models.RequestStatus `json:"status,omitempty"`
	EstimatedCost     *int64               `json:"estimated_cost,omitempty"`
	EstimatedDays     *int                 `json:"estimated_days,omitempty"`
	UploadedDocuments []string             `json:"uploaded_documents,omitempty"`
	FailedDocuments   []string             `json:"failed_documents,omitempty"`
	SubmittedAt       time.Time            `json:"submitted_at"`
}

func NewAuditService(db *gorm.DB, backend RequestLister) *AuditService {
	return &AuditService{
		db:       db,
		backend:  backend,
		logger:   logrus.WithField("component", "audit"),
		sortable: []string{"submitted_at", "procedure_name", "tracking_code"},
	}
}

// NewSubmissionRecord builds the audit row of a completed wizard.
func NewSubmissionRecord(userID string, procedure *models.ProcedureDefinition, report *wizard.SubmissionReport) *models.SubmissionRecord {
	uploaded := pq.StringArray{}
	failed := pq.StringArray{}
	for _, o := range report.Outcomes {
		if o.Succeeded() {
			uploaded = append(uploaded, o.DeclaredName)
		} else {
			failed = append(failed, o.DeclaredName)
		}
	}

	submittedAt := report.Result.CreatedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	return &models.SubmissionRecord{
		UserID:            userID,
		ProcedureID:       procedure.ID,
		ProcedureName:     procedure.Name,
		Category:          procedure.Category,
		RequestID:         report.Result.RequestID,
		TrackingCode:      report.Result.TrackingCode,
		EstimatedCost:     report.Estimate.Cost.TotalCost,
		EstimatedDays:     report.Estimate.Time.EstimatedDays,
		UploadedDocuments: uploaded,
		FailedDocuments:   failed,
		Details:           models.JSONB(report.Details),
		SubmittedAt:       submittedAt,
	}
}

// RecordAsync stores the record in the background. Failures are logged and
// never reach the wizard.
func (s *AuditService) RecordAsync(record *models.SubmissionRecord) {
	if s.db == nil {
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.Record(record); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"request_id":    record.RequestID,
				"tracking_code": record.TrackingCode,
			}).Error("Failed to store submission record")
		}
	}()
}

func (s *AuditService) Record(record *models.SubmissionRecord) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to create submission record: %w", err)
	}
	return nil
}

// Wait blocks until pending background writes are done.
func (s *AuditService) Wait() {
	s.pending.Wait()
}

// ListForUser returns one page of the caller's request history.
func (s *AuditService) ListForUser(ctx context.Context, userID string, params utils.PaginationParams) ([]RequestHistoryItem, int64, error) {
	if s.db != nil {
		return s.listFromDB(ctx, userID, params)
	}
	if s.backend != nil {
		return s.listFromBackend(ctx, params)
	}
	return nil, 0, ErrHistoryUnavailable
}

func (s *AuditService) listFromDB(ctx context.Context, userID string, params utils.PaginationParams) ([]RequestHistoryItem, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.SubmissionRecord{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submission records: %w", err)
	}

	var records []models.SubmissionRecord
	query = utils.ApplySort(query, params, s.sortable, "submitted_at")
	if err := utils.ApplyPagination(query, params).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list submission records: %w", err)
	}

	items := make([]RequestHistoryItem, 0, len(records))
	for i := range records {
		r := records[i]
		items = append(items, RequestHistoryItem{
			RequestID:         r.RequestID,
			TrackingCode:      r.TrackingCode,
			ProcedureID:       r.ProcedureID,
			ProcedureName:     r.ProcedureName,
			EstimatedCost:     &r.EstimatedCost,
			EstimatedDays:     &r.EstimatedDays,
			UploadedDocuments: r.UploadedDocuments,
			FailedDocuments:   r.FailedDocuments,
			SubmittedAt:       r.SubmittedAt,
		})
	}
	return items, total, nil
}

func (s *AuditService) listFromBackend(ctx context.Context, params utils.PaginationParams) ([]RequestHistoryItem, int64, error) {
	res := s.backend.ListMyRequests(ctx)
	if !res.Success {
		return nil, 0, fmt.Errorf("%w: %s", ErrHistoryUnavailable, res.Error)
	}

	summaries := res.Data
	sort.SliceStable(summaries, func(i, j int) bool {
		if params.Order == "asc" {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	start, end := utils.PageBounds(len(summaries), params)
	items := make([]RequestHistoryItem, 0, end-start)
	for _, r := range summaries[start:end] {
		items = append(items, RequestHistoryItem{
			RequestID:     r.RequestID,
			TrackingCode:  r.TrackingCode,
			ProcedureID:   r.ProcedureID,
			ProcedureName: r.ProcedureName,
			Status:        r.Status,
			SubmittedAt:   r.CreatedAt,
		})
	}
	return items, int64(len(summaries)), nil
}
