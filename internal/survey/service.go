// Package survey stores and retrieves survey answer documents and their
// attachments.
//
// Saves are read-before-write upserts: the previous document is read only to
// carry its submitted_at forward. Concurrent saves to the same key are not
// coordinated and the last write wins in full.
package survey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/baksh-audit/survey-backend/internal/models"
	"github.com/baksh-audit/survey-backend/internal/storage"
)

var (
	ErrInvalidSubjectKind = errors.New("invalid subject kind")
	ErrMissingIdentifier  = errors.New("missing identifier")
	ErrStorageRead        = errors.New("storage read failed")
	ErrStorageWrite       = errors.New("storage write failed")
)

const jsonContentType = "application/json"

// SaveRequest is the input to Service.Save.
type SaveRequest struct {
	Key       Key
	Responses map[string]any
	Files     []models.FileUpload
}

// SaveResult summarizes a successful save.
type SaveResult struct {
	Kind          models.SubjectKind
	CompanyID     string
	EmployeeID    string
	UploadedFiles int
	SavedAt       string
	StoragePath   string
}

// Service implements the document upsert/read protocol on a storage.Store.
type Service struct {
	store       storage.Store
	attachments *Attachments
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a new Service.
func NewService(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.attachments = NewAttachments(store, s.logger)
	return s
}

// Save validates req, upserts its document and stores any attachments.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	key, err := req.Key.Resolve()
	if err != nil {
		return nil, err
	}
	log := s.logger.With(
		zap.String("type", key.Kind.String()),
		zap.String("company_id", key.CompanyID),
		zap.String("employee_id", key.EmployeeID),
		zap.String("path", key.Path))

	timestamp := s.now().UTC().Format(models.TimestampLayout)

	responses := req.Responses
	if responses == nil {
		responses = map[string]any{}
	}
	doc := &models.SurveyDocument{
		Type:        key.Kind,
		CompanyID:   key.CompanyID,
		EmployeeID:  key.EmployeeID,
		Responses:   responses,
		SubmittedAt: timestamp,
		UpdatedAt:   timestamp,
	}
	if prev := s.previousSubmission(ctx, key.Path, log); prev != "" {
		doc.SubmittedAt = prev
	}

	log.Info("saving survey response")
	if err := s.write(ctx, key.Path, doc); err != nil {
		return nil, err
	}

	var uploaded []models.AttachmentRecord
	if len(req.Files) > 0 {
		if key.Kind == models.SubjectEmployee {
			uploaded = s.attachments.Save(ctx, key, req.Files, timestamp)
		} else {
			log.Info("ignoring attachments on company response", zap.Int("files", len(req.Files)))
		}
	}

	if len(uploaded) > 0 {
		doc.Files = uploaded
		if err := s.write(ctx, key.Path, doc); err != nil {
			return nil, err
		}
	}

	log.Info("saved survey response", zap.Int("uploaded_files", len(uploaded)))
	return &SaveResult{
		Kind:          key.Kind,
		CompanyID:     key.CompanyID,
		EmployeeID:    key.EmployeeID,
		UploadedFiles: len(uploaded),
		SavedAt:       timestamp,
		StoragePath:   key.Path,
	}, nil
}

// Lookup is the result of Service.Get.
type Lookup struct {
	Key      ResolvedKey
	Found    bool
	Document *models.SurveyDocument // nil unless Found
}

// Get reads the document for k. A document that was never saved yields a
// Lookup with Found == false and a nil error.
func (s *Service) Get(ctx context.Context, k Key) (*Lookup, error) {
	key, err := k.Resolve()
	if err != nil {
		return nil, err
	}

	res := storage.Fetch(ctx, s.store, key.Path)
	switch res.Outcome {
	case storage.Absent:
		s.logger.Info("no survey response stored", zap.String("path", key.Path))
		return &Lookup{Key: key}, nil
	case storage.Failed:
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageRead, key.Path, res.Err)
	}

	doc := &models.SurveyDocument{}
	if err := json.Unmarshal(res.Object.Body, doc); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrStorageRead, key.Path, err)
	}
	if doc.Responses == nil {
		doc.Responses = map[string]any{}
	}
	return &Lookup{Key: key, Found: true, Document: doc}, nil
}

// previousSubmission returns the submitted_at of the stored document at
// path. Any failure is treated as a first submission.
func (s *Service) previousSubmission(ctx context.Context, path string, log *zap.Logger) string {
	res := storage.Fetch(ctx, s.store, path)
	switch res.Outcome {
	case storage.Absent:
		return ""
	case storage.Failed:
		log.Warn("could not read existing response, treating as first submission", zap.Error(res.Err))
		return ""
	}

	var prev struct {
		SubmittedAt string `json:"submitted_at"`
	}
	if err := json.Unmarshal(res.Object.Body, &prev); err != nil {
		log.Warn("existing response is not valid JSON, treating as first submission", zap.Error(err))
		return ""
	}
	return prev.SubmittedAt
}

func (s *Service) write(ctx context.Context, path string, doc *models.SurveyDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrStorageWrite, path, err)
	}
	if err := s.store.Put(ctx, path, data, jsonContentType); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStorageWrite, path, err)
	}
	return nil
}
