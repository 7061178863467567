package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/crewhire/onboarding-backend/internal/models"
	"github.com/google/uuid"
)

// DocumentRepository handles uploaded document metadata
type DocumentRepository struct {
	db DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Upsert records the document. A second upload with the same name replaces the first.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO application_documents (id, application_id, name, object_key, content_type, size, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (application_id, name) DO UPDATE SET
			object_key = EXCLUDED.object_key,
			content_type = EXCLUDED.content_type,
			size = EXCLUDED.size,
			uploaded_at = NOW()
		RETURNING id, uploaded_at
	`
	err := r.db.QueryRowxContext(ctx, query, uuid.New(), doc.ApplicationID, doc.Name, doc.ObjectKey, doc.ContentType, doc.Size).
		Scan(&doc.ID, &doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// ListByApplication returns the documents of an application
func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]models.Document, error) {
	docs := []models.Document{}
	query := `
		SELECT id, application_id, name, object_key, content_type, size, uploaded_at
		FROM application_documents WHERE application_id = $1 ORDER BY name
	`
	if err := r.db.SelectContext(ctx, &docs, query, applicationID); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Get returns one named document, or nil
func (r *DocumentRepository) Get(ctx context.Context, applicationID uuid.UUID, name string) (*models.Document, error) {
	var doc models.Document
	query := `
		SELECT id, application_id, name, object_key, content_type, size, uploaded_at
		FROM application_documents WHERE application_id = $1 AND name = $2
	`
	if err := r.db.GetContext(ctx, &doc, query, applicationID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}
