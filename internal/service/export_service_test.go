package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/whistleblower-api/internal/dto"
	"github.com/noah-isme/whistleblower-api/internal/models"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
)

type reportListerStub struct {
	reports []models.Report
}

func (r reportListerStub) ListAll(ctx context.Context, actor *models.JWTClaims) ([]models.Report, error) {
	if !isAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "administrator session required")
	}
	return r.reports, nil
}

func newExportServiceForTest() *ExportService {
	location := "Plant B"
	lister := reportListerStub{reports: []models.Report{
		{
			ID:             "r-1",
			AnonymousToken: "secret-token",
			Title:          "=HYPERLINK(\"http://evil\")",
			Description:    "Forged safety inspections",
			Category:       models.CategoryWorkplaceSafety,
			Location:       &location,
			Status:         models.ReportStatusPending,
			CreatedAt:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		},
	}}
	svc := NewExportService(lister, zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC) }
	return svc
}

func TestExportServiceCSV(t *testing.T) {
	svc := newExportServiceForTest()

	file, err := svc.Export(context.Background(), "", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "reports_20240302_103000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	body := string(file.Data)
	assert.Contains(t, body, "ID,Created,Updated,Status,Category,Title,Location,Description")
	assert.Contains(t, body, "Forged safety inspections")
	assert.Contains(t, body, "'=HYPERLINK")
	assert.NotContains(t, body, "secret-token")
}

func TestExportServicePDF(t *testing.T) {
	svc := newExportServiceForTest()

	file, err := svc.Export(context.Background(), dto.ExportFormatPDF, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportServiceErrors(t *testing.T) {
	svc := newExportServiceForTest()

	_, err := svc.Export(context.Background(), "xlsx", adminClaims())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Export(context.Background(), dto.ExportFormatCSV, nil)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
