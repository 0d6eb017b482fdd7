package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/whistleblower-api/internal/models"
)

var reportRowColumns = []string{"id", "anonymous_token", "title", "description", "category", "location", "status", "channel_ref", "created_at", "updated_at"}

func TestReportRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("INSERT INTO reports").WillReturnResult(sqlmock.NewResult(1, 1))

	report := &models.Report{AnonymousToken: "tok", Title: "t", Description: "d", Category: models.CategoryFraud}
	require.NoError(t, repo.Create(context.Background(), report))
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, models.ReportStatusPending, report.Status)
	assert.Equal(t, report.CreatedAt, report.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(reportRowColumns).
		AddRow("r1", "tok", "Title", "Desc", "Fraud", nil, "pending", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE anonymous_token = $1")).WithArgs("tok").WillReturnRows(rows)

	report, err := repo.GetByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "r1", report.ID)
	assert.Nil(t, report.Location)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE id = $1")).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListOrdered(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	loc := models.WhatsAppLocationMarker
	rows := sqlmock.NewRows(reportRowColumns).
		AddRow("r1", "t1", "A", "a", "Fraud", nil, "pending", nil, now, now).
		AddRow("r2", "t2", "B", "b", "Other", loc, "closed", "sealed", now.Add(time.Second), now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM reports ORDER BY created_at ASC, id ASC")).WillReturnRows(rows)

	reports, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "r1", reports[0].ID)
	assert.True(t, reports[1].FromExternalChannel())
	require.NotNil(t, reports[1].ChannelRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateStatusCompareAndSet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)
	at := time.Now().UTC()

	query := regexp.QuoteMeta("UPDATE reports SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")
	mock.ExpectExec(query).
		WithArgs("r1", models.ReportStatusPending, models.ReportStatusUnderReview, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs("r1", models.ReportStatusPending, models.ReportStatusRejected, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.UpdateStatus(context.Background(), "r1", models.ReportStatusPending, models.ReportStatusUnderReview, at)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.UpdateStatus(context.Background(), "r1", models.ReportStatusPending, models.ReportStatusRejected, at)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateStatusError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("UPDATE reports SET status").WillReturnError(errors.New("db down"))

	_, err := repo.UpdateStatus(context.Background(), "r1", models.ReportStatusPending, models.ReportStatusClosed, time.Now())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryCountByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).AddRow("pending", 3).AddRow("closed", 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS count FROM reports GROUP BY status")).WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.StatusCount{{Status: "pending", Count: 3}, {Status: "closed", Count: 1}}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
