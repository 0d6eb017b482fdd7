package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/whistleblower-api/internal/models"
)

func TestEvidenceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	mock.ExpectExec("INSERT INTO evidence").WillReturnResult(sqlmock.NewResult(1, 1))

	ev := &models.Evidence{ReportID: "r1", FileType: "image/png", StoragePath: "r1/e1", SizeBytes: 10}
	require.NoError(t, repo.Create(context.Background(), ev))
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.UploadedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryListByReport(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "report_id", "file_type", "file_name", "storage_path", "size_bytes", "uploaded_at"}).
		AddRow("e1", "r1", "application/pdf", "memo.pdf", "r1/e1", 2048, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM evidence WHERE report_id = $1 ORDER BY uploaded_at ASC, id ASC")).
		WithArgs("r1").WillReturnRows(rows)

	items, err := repo.ListByReport(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "memo.pdf", items[0].FileName)
	assert.Equal(t, int64(2048), items[0].SizeBytes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEvidenceRepositoryListEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEvidenceRepository(db)

	mock.ExpectQuery("FROM evidence WHERE report_id").WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "report_id", "file_type", "file_name", "storage_path", "size_bytes", "uploaded_at"}))

	items, err := repo.ListByReport(context.Background(), "r1")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
