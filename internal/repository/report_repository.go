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

const reportColumns = `id, anonymous_token, title, description, category, location, status, channel_ref, created_at, updated_at`

// ReportRepository persists whistleblower reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new report row with generated defaults.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Status == "" {
		report.Status = models.ReportStatusPending
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	report.UpdatedAt = report.CreatedAt

	const query = `INSERT INTO reports (` + reportColumns + `)
VALUES (:id, :anonymous_token, :title, :description, :category, :location, :status, :channel_ref, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// GetByID returns a report by identifier. sql.ErrNoRows is returned unwrapped
// when nothing matches.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	const query = `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	return &report, nil
}

// GetByToken returns the report owning an anonymous token.
func (r *ReportRepository) GetByToken(ctx context.Context, token string) (*models.Report, error) {
	const query = `SELECT ` + reportColumns + ` FROM reports WHERE anonymous_token = $1`
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get report by token: %w", err)
	}
	return &report, nil
}

// List returns every report in submission order.
func (r *ReportRepository) List(ctx context.Context) ([]models.Report, error) {
	const query = `SELECT ` + reportColumns + ` FROM reports ORDER BY created_at ASC, id ASC`
	reports := make([]models.Report, 0)
	if err := r.db.SelectContext(ctx, &reports, query); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// UpdateStatus moves a report to a new status only when it still holds the
// expected previous status. It reports whether a row was updated.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, from, to models.ReportStatus, at time.Time) (bool, error) {
	const query = `UPDATE reports SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, from, to, at)
	if err != nil {
		return false, fmt.Errorf("update report status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update report status rows: %w", err)
	}
	return affected == 1, nil
}

// CountByStatus returns the report histogram per status.
func (r *ReportRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM reports GROUP BY status`
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count reports by status: %w", err)
	}
	return rows, nil
}
