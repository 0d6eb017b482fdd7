package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/whistleblower-api/internal/dto"
	"github.com/noah-isme/whistleblower-api/internal/models"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
	"github.com/noah-isme/whistleblower-api/pkg/storage"
)

const (
	defaultMaxEvidenceSize = 5 * 1024 * 1024
	maxEvidenceNameLength  = 255

	evidenceResultStored   = "stored"
	evidenceResultRejected = "rejected"
	evidenceResultFailed   = "failed"
)

var defaultEvidenceTypes = []string{"image/jpeg", "image/png", "application/pdf", "text/plain"}

type evidenceStore interface {
	Create(ctx context.Context, evidence *models.Evidence) error
	GetByID(ctx context.Context, id string) (*models.Evidence, error)
	ListByReport(ctx context.Context, reportID string) ([]models.Evidence, error)
}

type reportChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type downloadSigner interface {
	Generate(evidenceID, key string) (string, time.Time, error)
	Parse(token string) (evidenceID, key string, err error)
}

// EvidenceConfig tunes evidence validation and download links.
type EvidenceConfig struct {
	MaxFileSize  int64
	AllowedTypes []string
	APIPrefix    string
}

// EvidenceService validates, stores and serves files attached to reports.
type EvidenceService struct {
	repo    evidenceStore
	reports reportChecker
	blobs   storage.BlobStore
	signer  downloadSigner
	hub     eventBroadcaster
	metrics *MetricsService
	logger  *zap.Logger
	cfg     EvidenceConfig
	allowed map[string]struct{}
	now     func() time.Time
}

// NewEvidenceService constructs an EvidenceService.
func NewEvidenceService(repo evidenceStore, reports reportChecker, blobs storage.BlobStore, signer downloadSigner, hub eventBroadcaster, metrics *MetricsService, logger *zap.Logger, cfg EvidenceConfig) *EvidenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxEvidenceSize
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = defaultEvidenceTypes
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return &EvidenceService{
		repo:    repo,
		reports: reports,
		blobs:   blobs,
		signer:  signer,
		hub:     hub,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		allowed: allowed,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Attach validates one upload and stores it against reportID.
func (s *EvidenceService) Attach(ctx context.Context, reportID string, upload dto.EvidenceUpload) (*models.Evidence, error) {
	if err := s.ensureReport(ctx, reportID); err != nil {
		return nil, err
	}
	evidence, err := s.attach(ctx, reportID, upload)
	s.recordResult(err)
	return evidence, err
}

// AttachMany stores each upload independently. A failed file does not affect
// its siblings or the report.
func (s *EvidenceService) AttachMany(ctx context.Context, reportID string, uploads []dto.EvidenceUpload) (*dto.EvidenceBatchResponse, error) {
	if len(uploads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one file is required")
	}
	if err := s.ensureReport(ctx, reportID); err != nil {
		return nil, err
	}

	resp := &dto.EvidenceBatchResponse{ReportID: reportID, Results: make([]dto.EvidenceResult, 0, len(uploads))}
	for _, upload := range uploads {
		result := dto.EvidenceResult{Filename: sanitizeEvidenceName(upload.Filename)}
		evidence, err := s.attach(ctx, reportID, upload)
		s.recordResult(err)
		if err != nil {
			appErr := appErrors.FromError(err)
			result.Error = &dto.ErrorDetail{Code: appErr.Code, Message: appErr.Message}
			resp.Failed++
		} else {
			result.Evidence = evidence
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

func (s *EvidenceService) attach(ctx context.Context, reportID string, upload dto.EvidenceUpload) (*models.Evidence, error) {
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file content is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, s.tooLarge()
	}

	declared, err := normalizeMediaType(upload.FileType)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedType, "file type could not be parsed")
	}
	if declared != "" && !s.isAllowed(declared) {
		return nil, s.unsupported(declared)
	}

	data, err := io.ReadAll(io.LimitReader(upload.Content, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return nil, s.tooLarge()
	}
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}

	fileType := declared
	if fileType == "" {
		fileType, _ = normalizeMediaType(http.DetectContentType(data))
		if !s.isAllowed(fileType) {
			return nil, s.unsupported(fileType)
		}
	}

	evidence := &models.Evidence{
		ID:         uuid.NewString(),
		ReportID:   reportID,
		FileType:   fileType,
		FileName:   sanitizeEvidenceName(upload.Filename),
		SizeBytes:  int64(len(data)),
		UploadedAt: s.now(),
	}
	evidence.StoragePath = reportID + "/" + evidence.ID

	if err := s.blobs.Put(ctx, evidence.StoragePath, bytes.NewReader(data), evidence.SizeBytes, fileType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store evidence")
	}
	if err := s.repo.Create(ctx, evidence); err != nil {
		if delErr := s.blobs.Delete(ctx, evidence.StoragePath); delErr != nil {
			s.logger.Warn("failed to remove orphaned evidence blob", zap.String("evidence_id", evidence.ID), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save evidence")
	}

	if s.hub != nil {
		s.hub.Broadcast(models.NewEvidenceEvent{ReportID: reportID, FileType: fileType})
	}
	s.logger.Info("evidence stored",
		zap.String("report_id", reportID),
		zap.String("evidence_id", evidence.ID),
		zap.String("file_type", fileType),
		zap.Int64("size_bytes", evidence.SizeBytes),
	)
	return evidence, nil
}

// ListForReport returns the evidence attached to a report with short-lived
// download links.
func (s *EvidenceService) ListForReport(ctx context.Context, reportID string, actor *models.JWTClaims) ([]models.EvidenceWithURL, error) {
	if !isAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "administrator session required")
	}
	if err := s.ensureReport(ctx, reportID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list evidence")
	}

	out := make([]models.EvidenceWithURL, 0, len(items))
	for _, item := range items {
		token, expiresAt, err := s.signer.Generate(item.ID, item.StoragePath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
		}
		out = append(out, models.EvidenceWithURL{
			Evidence:    item,
			DownloadURL: s.downloadURL(item.ID, token),
			ExpiresAt:   expiresAt,
		})
	}
	return out, nil
}

// Download validates a signed token and opens the referenced blob. The caller
// closes Content.
func (s *EvidenceService) Download(ctx context.Context, id, token string) (*dto.EvidenceDownload, error) {
	evidenceID, key, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrSignedTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	if evidenceID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}

	evidence, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evidence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	if evidence.StoragePath != key {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}

	content, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "evidence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open evidence")
	}
	return &dto.EvidenceDownload{Evidence: evidence, Content: content}, nil
}

func (s *EvidenceService) ensureReport(ctx context.Context, reportID string) error {
	if strings.TrimSpace(reportID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "reportId is required")
	}
	exists, err := s.reports.Exists(ctx, reportID)
	if err != nil {
		return err
	}
	if !exists {
		return appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	return nil
}

func (s *EvidenceService) isAllowed(mediaType string) bool {
	_, ok := s.allowed[mediaType]
	return ok
}

func (s *EvidenceService) tooLarge() error {
	return appErrors.Clone(appErrors.ErrTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileSize))
}

func (s *EvidenceService) unsupported(mediaType string) error {
	if mediaType == "" {
		return appErrors.Clone(appErrors.ErrUnsupportedType, "file type could not be determined")
	}
	return appErrors.Clone(appErrors.ErrUnsupportedType, fmt.Sprintf("file type %s is not accepted", mediaType))
}

func (s *EvidenceService) recordResult(err error) {
	switch {
	case err == nil:
		s.metrics.EvidenceUpload(evidenceResultStored)
	case appErrors.FromError(err).Status >= http.StatusInternalServerError:
		s.metrics.EvidenceUpload(evidenceResultFailed)
	default:
		s.metrics.EvidenceUpload(evidenceResultRejected)
	}
}

func (s *EvidenceService) downloadURL(id, token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/evidence/%s/download?token=%s", prefix, id, url.QueryEscape(token))
}

func normalizeMediaType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "application/octet-stream") {
		return "", nil
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", err
	}
	return strings.ToLower(mediaType), nil
}

func sanitizeEvidenceName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "evidence"
	}
	if runes := []rune(name); len(runes) > maxEvidenceNameLength {
		name = string(runes[:maxEvidenceNameLength])
	}
	return name
}
