package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/whistleblower-api/internal/models"
)

const evidenceColumns = `id, report_id, file_type, file_name, storage_path, size_bytes, uploaded_at`

// EvidenceRepository persists evidence metadata.
type EvidenceRepository struct {
	db *sqlx.DB
}

// NewEvidenceRepository constructs the repository.
func NewEvidenceRepository(db *sqlx.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// Create inserts an evidence row.
func (r *EvidenceRepository) Create(ctx context.Context, evidence *models.Evidence) error {
	if evidence.ID == "" {
		evidence.ID = uuid.NewString()
	}
	if evidence.UploadedAt.IsZero() {
		evidence.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO evidence (` + evidenceColumns + `)
VALUES (:id, :report_id, :file_type, :file_name, :storage_path, :size_bytes, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, evidence); err != nil {
		return fmt.Errorf("create evidence: %w", err)
	}
	return nil
}

// GetByID returns one evidence row.
func (r *EvidenceRepository) GetByID(ctx context.Context, id string) (*models.Evidence, error) {
	const query = `SELECT ` + evidenceColumns + ` FROM evidence WHERE id = $1`
	var evidence models.Evidence
	if err := r.db.GetContext(ctx, &evidence, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get evidence: %w", err)
	}
	return &evidence, nil
}

// ListByReport returns the evidence attached to a report in upload order.
func (r *EvidenceRepository) ListByReport(ctx context.Context, reportID string) ([]models.Evidence, error) {
	const query = `SELECT ` + evidenceColumns + ` FROM evidence WHERE report_id = $1 ORDER BY uploaded_at ASC, id ASC`
	items := make([]models.Evidence, 0)
	if err := r.db.SelectContext(ctx, &items, query, reportID); err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return items, nil
}
