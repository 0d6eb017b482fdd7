package dto

import "github.com/noah-isme/whistleblower-api/internal/models"

// CreateReportRequest captures POST /reports payload.
type CreateReportRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description" validate:"required,max=20000"`
	Category    string  `json:"category" validate:"required"`
	Location    *string `json:"location,omitempty" validate:"omitempty,max=255"`
}

// UpdateReportStatusRequest captures PATCH /reports/:id/status payload.
type UpdateReportStatusRequest struct {
	Status    string `json:"status" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ExportFormat names a supported export encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportDetail is the admin view of a report with the statuses it may move to.
type ReportDetail struct {
	models.Report
	Transitions []models.ReportStatus `json:"allowedTransitions"`
}
