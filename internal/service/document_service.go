package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flightline-dev/flightline-api/internal/models"
	"github.com/flightline-dev/flightline-api/pkg/config"
	appErrors "github.com/flightline-dev/flightline-api/pkg/errors"
	"github.com/flightline-dev/flightline-api/pkg/storage"
)

type documentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	Create(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
}

type blobStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Path(filename string) string
	Delete(filename string) error
}

// UploadDocumentInput carries one uploaded student file with its metadata.
type UploadDocumentInput struct {
	StudentID  string
	Kind       models.DocumentKind
	FileName   string
	MIMEType   string
	SizeBytes  int64
	UploadedBy string
	ExpiresAt  *time.Time
	Body       io.Reader
}

// DocumentService stores student documents on disk and serves them back
// through signed download URLs.
type DocumentService struct {
	docs   documentRepo
	store  blobStore
	signer *storage.SignedURLSigner

	maxSizeBytes int64
	allowedMIMEs map[string]struct{}

	logger *zap.Logger
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(docs documentRepo, store blobStore, cfg config.DocumentsConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mime := range cfg.AllowedMIMEs {
		allowed[mime] = struct{}{}
	}
	return &DocumentService{
		docs:         docs,
		store:        store,
		signer:       storage.NewSignedURLSigner(cfg.SignedURLSecret, cfg.SignedURLTTL),
		maxSizeBytes: cfg.MaxFileSizeBytes,
		allowedMIMEs: allowed,
		logger:       logger,
	}
}

// Upload validates and stores a student document. The storage key is
// internal; clients only ever see signed URLs.
func (s *DocumentService) Upload(ctx context.Context, input UploadDocumentInput) (*models.Document, error) {
	if input.StudentID == "" || input.FileName == "" || input.Body == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student, file name and body are required")
	}
	if s.maxSizeBytes > 0 && input.SizeBytes > s.maxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.maxSizeBytes))
	}
	if len(s.allowedMIMEs) > 0 {
		if _, ok := s.allowedMIMEs[input.MIMEType]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type")
		}
	}
	kind := input.Kind
	if kind == "" {
		kind = models.DocumentOther
	}

	key := fmt.Sprintf("%s/%s%s", input.StudentID, uuid.NewString(), filepath.Ext(input.FileName))
	if _, err := s.store.SaveStream(key, input.Body); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.Document{
		StudentID:  input.StudentID,
		Kind:       kind,
		FileName:   input.FileName,
		MIMEType:   input.MIMEType,
		SizeBytes:  input.SizeBytes,
		StorageKey: key,
		UploadedBy: input.UploadedBy,
		ExpiresAt:  input.ExpiresAt,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if removeErr := s.store.Delete(key); removeErr != nil {
			s.logger.Warn("orphaned document blob", zap.String("storage_key", key), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save document")
	}
	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("student_id", doc.StudentID),
		zap.String("kind", string(doc.Kind)),
		zap.Int64("size_bytes", doc.SizeBytes))
	return doc, nil
}

// Get returns document metadata.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// List returns documents matching the filter.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error) {
	docs, total, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, paginationFor(filter.Page, filter.PageSize, total), nil
}

// DownloadToken issues a time-limited signed token for a document.
func (s *DocumentService) DownloadToken(ctx context.Context, id string) (string, time.Time, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.StorageKey)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return token, expiresAt, nil
}

// ResolveToken validates a signed token and returns the document plus the
// on-disk path to stream.
func (s *DocumentService) ResolveToken(ctx context.Context, token string) (*models.Document, string, error) {
	docID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	doc, err := s.Get(ctx, docID)
	if err != nil {
		return nil, "", err
	}
	if doc.StorageKey != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	return doc, s.store.Path(doc.StorageKey), nil
}

// Delete removes a document row and its stored bytes.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.store.Delete(doc.StorageKey); err != nil {
		s.logger.Warn("orphaned document blob", zap.String("storage_key", doc.StorageKey), zap.Error(err))
	}
	return nil
}
