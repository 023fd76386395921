package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/feynmind/internal/models"
)

// PostgresDocumentRepository stores uploaded files in the documents table.
type PostgresDocumentRepository struct {
	DB *sql.DB
}

// NewPostgresDocumentRepository creates a PostgresDocumentRepository.
func NewPostgresDocumentRepository(db *sql.DB) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{DB: db}
}

// SaveDocument inserts d. File names are generated, so a collision is
// reported as models.ErrConflict rather than overwritten.
func (r *PostgresDocumentRepository) SaveDocument(ctx context.Context, d models.StoredDocument) error {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO documents (file_name, owner_email, original_name, content_type, content, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (file_name) DO NOTHING
	`, d.FileName, d.Owner, d.OriginalName, d.ContentType, d.Content, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("SaveDocument: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrConflict
	}
	return nil
}

// GetDocument returns the document fileName if it belongs to owner.
// Documents of other users are reported as models.ErrNotFound.
func (r *PostgresDocumentRepository) GetDocument(ctx context.Context, owner, fileName string) (*models.StoredDocument, error) {
	var d models.StoredDocument
	err := r.DB.QueryRowContext(ctx, `
		SELECT file_name, owner_email, original_name, content_type, content, uploaded_at
		  FROM documents
		 WHERE file_name = $1 AND owner_email = $2
	`, fileName, owner).Scan(&d.FileName, &d.Owner, &d.OriginalName, &d.ContentType, &d.Content, &d.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetDocument: %w", err)
	}
	return &d, nil
}
