package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/crewhire/onboarding-backend/internal/database"
	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/crewhire/onboarding-backend/pkg/storage"
	"github.com/crewhire/onboarding-backend/pkg/validator"
	"github.com/google/uuid"
)

// DefaultMaxUploadBytes caps a single document
const DefaultMaxUploadBytes = 5 << 20

// ErrDocumentNotFound is returned for a document slot with no upload
var ErrDocumentNotFound = errors.New("document not found")

var allowedContentTypes = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"application/pdf": "pdf",
}

// Upload is one staged file
type Upload struct {
	Name        string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// DocumentService stores candidate documents in object storage
type DocumentService struct {
	apps     *database.ApplicationRepository
	docs     *database.DocumentRepository
	store    storage.Store
	scope    *ScopeResolver
	maxBytes int64
}

// NewDocumentService creates a new document service
func NewDocumentService(apps *database.ApplicationRepository, docs *database.DocumentRepository, store storage.Store, scope *ScopeResolver, maxBytes int64) *DocumentService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &DocumentService{
		apps:     apps,
		docs:     docs,
		store:    store,
		scope:    scope,
		maxBytes: maxBytes,
	}
}

// MaxBytes is the largest accepted document
func (s *DocumentService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload stores files for the candidate's draft. Uploading a name again replaces it.
func (s *DocumentService) Upload(ctx context.Context, applicationID uuid.UUID, phone string, uploads []Upload) ([]models.Document, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil || app.Phone != phone {
		return nil, ErrApplicationNotFound
	}
	if !app.IsEditable() {
		return nil, ErrNotEditable
	}

	errs := validator.FieldErrors{}
	for _, u := range uploads {
		if _, _, err := s.checkUpload(u); err != nil {
			errs[u.Name] = err.Error()
		}
	}
	if len(uploads) == 0 {
		errs["files"] = "Attach at least one document"
	}
	if !errs.Valid() {
		return nil, errs
	}

	stored := make([]models.Document, 0, len(uploads))
	for _, u := range uploads {
		contentType, ext, _ := s.checkUpload(u)
		key := storage.DocumentKey(applicationID.String(), u.Name, ext)

		if err := s.store.Put(ctx, key, contentType, u.Body, u.Size); err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", u.Name, err)
		}

		doc := models.Document{
			ApplicationID: applicationID,
			Name:          u.Name,
			ObjectKey:     key,
			ContentType:   contentType,
			Size:          u.Size,
		}
		if err := s.docs.Upsert(ctx, &doc); err != nil {
			return nil, err
		}
		stored = append(stored, doc)
	}
	return stored, nil
}

// List returns the documents of an application visible to the actor
func (s *DocumentService) List(ctx context.Context, actor Actor, applicationID uuid.UUID) ([]models.Document, error) {
	if err := s.checkVisible(ctx, actor, applicationID); err != nil {
		return nil, err
	}
	return s.docs.ListByApplication(ctx, applicationID)
}

// Open streams one document to staff. The caller closes the reader.
func (s *DocumentService) Open(ctx context.Context, actor Actor, applicationID uuid.UUID, name string) (*models.Document, io.ReadCloser, error) {
	if err := s.checkVisible(ctx, actor, applicationID); err != nil {
		return nil, nil, err
	}

	doc, err := s.docs.Get(ctx, applicationID, name)
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, ErrDocumentNotFound
	}

	body, err := s.store.Get(ctx, doc.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, err
	}
	return doc, body, nil
}

func (s *DocumentService) checkVisible(ctx context.Context, actor Actor, applicationID uuid.UUID) error {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return err
	}
	if app == nil {
		return ErrApplicationNotFound
	}
	scope, err := s.scope.OutletScope(ctx, actor)
	if err != nil {
		return err
	}
	if !CanSee(scope, app.OutletCode) {
		return ErrApplicationNotFound
	}
	return nil
}

// checkUpload validates the upload and returns its media type without
// parameters plus the extension to store it under
func (s *DocumentService) checkUpload(u Upload) (contentType, ext string, err error) {
	if !models.IsKnownDocument(u.Name) {
		return "", "", fmt.Errorf("unknown document %q", u.Name)
	}
	if u.Size <= 0 {
		return "", "", fmt.Errorf("file is empty")
	}
	if u.Size > s.maxBytes {
		return "", "", fmt.Errorf("file is larger than %d MB", s.maxBytes>>20)
	}

	contentType = strings.ToLower(strings.TrimSpace(strings.SplitN(u.ContentType, ";", 2)[0]))
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return "", "", fmt.Errorf("only JPEG, PNG and PDF files are accepted")
	}
	return contentType, ext, nil
}
