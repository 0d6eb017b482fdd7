package dto

import (
	"io"

	"github.com/noah-isme/whistleblower-api/internal/models"
)

// EvidenceUpload is one file handed to evidence intake. Size is the declared
// size and may be -1 when unknown.
type EvidenceUpload struct {
	Filename string
	FileType string
	Size     int64
	Content  io.Reader
}

// EvidenceResult reports the outcome of one file in a multi-file upload.
type EvidenceResult struct {
	Filename string           `json:"filename"`
	Evidence *models.Evidence `json:"evidence,omitempty"`
	Error    *ErrorDetail     `json:"error,omitempty"`
}

// ErrorDetail is the serialisable part of an application error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EvidenceBatchResponse summarises a multi-file upload.
type EvidenceBatchResponse struct {
	ReportID  string           `json:"reportId"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []EvidenceResult `json:"results"`
}

// EvidenceDownload carries an opened evidence blob.
type EvidenceDownload struct {
	Evidence *models.Evidence
	Content  io.ReadCloser
}
