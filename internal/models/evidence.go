package models

import "time"

// Evidence is file metadata attached to a report. The blob itself lives in
// the evidence blob store under StoragePath.
type Evidence struct {
	ID          string    `db:"id" json:"id"`
	ReportID    string    `db:"report_id" json:"reportId"`
	FileType    string    `db:"file_type" json:"fileType"`
	FileName    string    `db:"file_name" json:"fileName"`
	StoragePath string    `db:"storage_path" json:"-"`
	SizeBytes   int64     `db:"size_bytes" json:"sizeBytes"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploadedAt"`
}

// EvidenceWithURL decorates evidence with a signed download link.
type EvidenceWithURL struct {
	Evidence
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
