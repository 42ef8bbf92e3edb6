// internal/services/staging_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/docucontrol/tramites-portal/internal/config"
	"github.com/docucontrol/tramites-portal/internal/models"
	"github.com/docucontrol/tramites-portal/internal/utils"
)

// MaxStagedFileSize caps a single staged file regardless of the document's
// own limit, which is checked by the wizard afterwards.
const MaxStagedFileSize int64 = 50 * 1024 * 1024

var ErrFileTooLarge = errors.New("file exceeds staging limit")

var stagedFiles = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "tramites_staged_files",
	Help: "Selected files currently held in staging storage.",
})

// objectStore holds staged bytes until they are uploaded or released.
type objectStore interface {
	put(ctx context.Context, key, contentType string, data []byte) error
	get(ctx context.Context, key string) (io.ReadCloser, error)
	delete(ctx context.Context, key string) error
}

// StagingService keeps the files chosen in the document step until the
// wizard uploads them to the backend.
type StagingService struct {
	store  objectStore
	prefix string
	logger *logrus.Entry
}

// StageRequest describes one incoming file.
type StageRequest struct {
	WizardID    string
	DocumentID  string
	FileName    string
	ContentType string
	Body        io.Reader
}

func NewStagingService(cfg *config.Config) (*StagingService, error) {
	logger := logrus.WithField("component", "staging")

	if cfg.AWS.AccessKeyID == "" {
		logger.Info("AWS credentials not configured, staging files in memory")
		return NewMemoryStagingService(), nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StagingService{
		store:  &s3Store{client: s3.New(sess), bucket: cfg.AWS.S3Bucket},
		prefix: cfg.AWS.StagingPrefix,
		logger: logger,
	}, nil
}

// NewS3StagingService stages into the given bucket through an existing
// client.
func NewS3StagingService(client s3iface.S3API, bucket, prefix string) *StagingService {
	return &StagingService{
		store:  &s3Store{client: client, bucket: bucket},
		prefix: prefix,
		logger: logrus.WithField("component", "staging"),
	}
}

func NewMemoryStagingService() *StagingService {
	return &StagingService{
		store:  newMemoryStore(),
		prefix: "staging",
		logger: logrus.WithField("component", "staging"),
	}
}

// Stage stores the file and returns it as an attachment whose handle reads
// the staged copy. The sha256 checksum is computed while reading.
func (s *StagingService) Stage(ctx context.Context, req StageRequest) (models.AttachmentFile, error) {
	hashing := utils.NewHashingReader(io.LimitReader(req.Body, MaxStagedFileSize+1))
	data, err := io.ReadAll(hashing)
	if err != nil {
		return models.AttachmentFile{}, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > MaxStagedFileSize {
		return models.AttachmentFile{}, fmt.Errorf("%w of %s", ErrFileTooLarge, models.FormatFileSize(MaxStagedFileSize))
	}

	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	key := s.key(req.WizardID, req.DocumentID, req.FileName)
	if err := s.store.put(ctx, key, contentType, data); err != nil {
		return models.AttachmentFile{}, fmt.Errorf("failed to stage file: %w", err)
	}
	stagedFiles.Inc()

	s.logger.WithFields(logrus.Fields{
		"wizard_id":   req.WizardID,
		"document_id": req.DocumentID,
		"key":         key,
		"size":        len(data),
	}).Debug("File staged")

	return models.AttachmentFile{
		Name:        filepath.Base(req.FileName),
		Size:        int64(len(data)),
		ContentType: contentType,
		Checksum:    hashing.Sum(),
		Handle:      &stagedFile{service: s, key: key},
	}, nil
}

func (s *StagingService) key(wizardID, documentID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	name := fmt.Sprintf("%s_%s%s", time.Now().Format("20060102"), uuid.New().String()[:8], ext)
	parts := []string{wizardID, documentID, name}
	if s.prefix != "" {
		parts = append([]string{s.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

// stagedFile is the wizard's handle on a staged object.
type stagedFile struct {
	service *StagingService

	mu       sync.Mutex
	key      string
	released bool
}

func (f *stagedFile) Open() (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.released {
		return nil, fmt.Errorf("staged file %s already released", f.key)
	}
	return f.service.store.get(context.Background(), f.key)
}

// Release deletes the staged object. Releasing twice is a no-op.
func (f *stagedFile) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.released {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := f.service.store.delete(ctx, f.key); err != nil {
		return fmt.Errorf("failed to release staged file: %w", err)
	}
	f.released = true
	stagedFiles.Dec()
	return nil
}

type s3Store struct {
	client s3iface.S3API
	bucket string
}

func (s *s3Store) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentType:          aws.String(contentType),
		ContentLength:        aws.Int64(int64(len(data))),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (s *s3Store) get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read from S3: %w", err)
	}
	return out.Body, nil
}

func (s *s3Store) delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

type memoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (m *memoryStore) put(_ context.Context, key, _ string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryStore) get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("staged object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
