package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/whistleblower-api/internal/dto"
	"github.com/noah-isme/whistleblower-api/internal/models"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
	"github.com/noah-isme/whistleblower-api/pkg/export"
)

type reportLister interface {
	ListAll(ctx context.Context, actor *models.JWTClaims) ([]models.Report, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
}

var reportExportHeaders = []string{"ID", "Created", "Updated", "Status", "Category", "Title", "Location", "Description"}

// ExportService renders the administrator report list into downloadable files.
type ExportService struct {
	reports reportLister
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(reports reportLister, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		reports: reports,
		csv:     csv,
		pdf:     pdf,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Export renders every report in the requested format. Anonymous tokens and
// channel references are never written to the file.
func (s *ExportService) Export(ctx context.Context, format dto.ExportFormat, actor *models.JWTClaims) (*dto.ExportFile, error) {
	format = dto.ExportFormat(strings.ToLower(strings.TrimSpace(string(format))))
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	reports, err := s.reports.ListAll(ctx, actor)
	if err != nil {
		return nil, err
	}
	dataset := buildReportDataset(reports)

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case dto.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Whistleblower Reports")
		contentType = s.pdf.ContentType()
	default:
		payload, err = s.csv.Render(dataset)
		contentType = s.csv.ContentType()
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("reports exported",
		zap.String("format", string(format)),
		zap.Int("rows", len(reports)),
		zap.String("actor_id", actor.UserID),
	)
	return &dto.ExportFile{
		Filename:    s.buildFilename(format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

func (s *ExportService) buildFilename(format dto.ExportFormat) string {
	return fmt.Sprintf("reports_%s.%s", s.now().Format("20060102_150405"), format)
}

func buildReportDataset(reports []models.Report) export.Dataset {
	rows := make([]map[string]string, 0, len(reports))
	for _, r := range reports {
		updated := ""
		if !r.UpdatedAt.IsZero() {
			updated = r.UpdatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, map[string]string{
			"ID":          r.ID,
			"Created":     r.CreatedAt.UTC().Format(time.RFC3339),
			"Updated":     updated,
			"Status":      string(r.Status),
			"Category":    string(r.Category),
			"Title":       r.Title,
			"Location":    deref(r.Location),
			"Description": r.Description,
		})
	}
	return export.Dataset{Headers: reportExportHeaders, Rows: rows}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
