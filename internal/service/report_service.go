package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/whistleblower-api/internal/dto"
	"github.com/noah-isme/whistleblower-api/internal/models"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
)

const (
	tokenBytes        = 32
	maxTokenLength    = 128
	tokenInsertTries  = 3
	statsCacheKey     = "reports:stats"
	channelWeb        = "web"
	channelWhatsApp   = "whatsapp"
	reportAuditSource = "report_service"
)

type reportStore interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	GetByToken(ctx context.Context, token string) (*models.Report, error)
	List(ctx context.Context) ([]models.Report, error)
	UpdateStatus(ctx context.Context, id string, from, to models.ReportStatus, at time.Time) (bool, error)
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type eventBroadcaster interface {
	Broadcast(event models.Event)
}

type senderSealer interface {
	Seal(plaintext string) (string, error)
}

// StatusNotifier hands status updates for channel-originated reports to the
// outbound messaging path. It must not block.
type StatusNotifier interface {
	NotifyStatusChange(channelRef, reportID string, status models.ReportStatus)
}

// ReportService owns the report lifecycle: submission, token lookup and
// status transitions.
type ReportService struct {
	repo      reportStore
	audit     auditRecorder
	hub       eventBroadcaster
	sealer    senderSealer
	notifier  StatusNotifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	statsTTL  time.Duration
	now       func() time.Time
	newToken  func() (string, error)
}

// NewReportService constructs a ReportService.
func NewReportService(repo reportStore, audit auditRecorder, hub eventBroadcaster, sealer senderSealer, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, statsTTL time.Duration) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReportService{
		repo:      repo,
		audit:     audit,
		hub:       hub,
		sealer:    sealer,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		statsTTL:  statsTTL,
		now:       func() time.Time { return time.Now().UTC() },
		newToken:  generateAnonymousToken,
	}
}

// SetStatusNotifier wires the outbound dispatcher once it has been built.
func (s *ReportService) SetStatusNotifier(n StatusNotifier) {
	s.notifier = n
}

// Submit validates and stores a web form submission.
func (s *ReportService) Submit(ctx context.Context, req dto.CreateReportRequest) (*models.Report, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.TrimSpace(req.Category)
	if req.Location != nil {
		trimmed := strings.TrimSpace(*req.Location)
		if trimmed == "" || trimmed == models.WhatsAppLocationMarker {
			req.Location = nil
		} else {
			req.Location = &trimmed
		}
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationMessage(err))
	}
	category := models.ReportCategory(req.Category)
	if !category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", req.Category))
	}

	report := &models.Report{
		Title:       req.Title,
		Description: req.Description,
		Category:    category,
		Location:    req.Location,
	}
	if err := s.create(ctx, report, channelWeb); err != nil {
		return nil, err
	}
	return report, nil
}

// SubmitFromChannel stores a report originating on the external messaging
// channel. text must already be redacted. senderRef is sealed before storage.
func (s *ReportService) SubmitFromChannel(ctx context.Context, title, text, senderRef string) (*models.Report, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message text is required")
	}
	marker := models.WhatsAppLocationMarker
	report := &models.Report{
		Title:       title,
		Description: text,
		Category:    models.CategoryOther,
		Location:    &marker,
	}
	if senderRef != "" && s.sealer != nil {
		sealed, err := s.sealer.Seal(senderRef)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to protect sender reference")
		}
		report.ChannelRef = &sealed
	}
	if err := s.create(ctx, report, channelWhatsApp); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *ReportService) create(ctx context.Context, report *models.Report, channel string) error {
	report.ID = uuid.NewString()
	report.Status = models.ReportStatusPending
	report.CreatedAt = s.now()

	var err error
	for attempt := 0; attempt < tokenInsertTries; attempt++ {
		report.AnonymousToken, err = s.newToken()
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate tracking token")
		}
		if err = s.repo.Create(ctx, report); err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	s.broadcast(models.NewReportEvent{ID: report.ID, Category: report.Category, Status: report.Status})
	s.invalidateStats(ctx)
	s.metrics.ReportSubmitted(channel)
	s.logger.Info("report submitted",
		zap.String("report_id", report.ID),
		zap.String("category", string(report.Category)),
		zap.String("channel", channel),
	)
	return nil
}

// LookupByToken returns the report owning token. Only an exact match
// resolves; any other input is NotFound.
func (s *ReportService) LookupByToken(ctx context.Context, token string) (*models.Report, error) {
	if token == "" || len(token) > maxTokenLength {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	report, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if subtle.ConstantTimeCompare([]byte(report.AnonymousToken), []byte(token)) != 1 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	return report, nil
}

// ListAll returns every report in submission order.
func (s *ReportService) ListAll(ctx context.Context, actor *models.JWTClaims) ([]models.Report, error) {
	if !isAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "administrator session required")
	}
	reports, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, nil
}

// Get returns a single report with the statuses it may move to.
func (s *ReportService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.ReportDetail, error) {
	if !isAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "administrator session required")
	}
	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.ReportDetail{Report: *report, Transitions: models.AllowedTransitions(report.Status)}, nil
}

// Exists reports whether a report with id is stored.
func (s *ReportService) Exists(ctx context.Context, id string) (bool, error) {
	if _, err := s.load(ctx, id); err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ChangeStatus applies an administrator status transition.
func (s *ReportService) ChangeStatus(ctx context.Context, id string, req dto.UpdateReportStatusRequest, actor *models.JWTClaims) (*models.Report, error) {
	if !isAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "administrator session required")
	}
	next := models.ReportStatus(strings.TrimSpace(req.Status))
	if !next.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}

	report, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := report.Status
	if !models.CanTransition(previous, next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move report from %s to %s", previous, next))
	}

	at := s.now()
	updated, err := s.repo.UpdateStatus(ctx, report.ID, previous, next, at)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update report status")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrConflict, "report status was changed concurrently; reload and retry")
	}
	report.Status = next
	report.UpdatedAt = at

	s.broadcast(models.StatusChangeEvent{ID: report.ID, Status: next})
	s.invalidateStats(ctx)
	s.metrics.StatusTransition(previous, next)
	s.emitAudit(ctx, actor, report.ID, previous, next, req)

	if report.FromExternalChannel() && report.ChannelRef != nil && s.notifier != nil {
		s.notifier.NotifyStatusChange(*report.ChannelRef, report.ID, next)
	}

	s.logger.Info("report status changed",
		zap.String("report_id", report.ID),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
		zap.String("actor_id", actor.UserID),
	)
	return report, nil
}

// Stats returns report counts per status for the admin dashboard.
func (s *ReportService) Stats(ctx context.Context, actor *models.JWTClaims) (*models.ReportStats, error) {
	if !isAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "administrator session required")
	}
	return readThrough(ctx, s.cache, statsCacheKey, s.statsTTL, s.countByStatus)
}

func (s *ReportService) countByStatus(ctx context.Context) (*models.ReportStats, error) {
	rows, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count reports")
	}
	stats := &models.ReportStats{ByStatus: make(map[models.ReportStatus]int, len(models.ReportStatuses))}
	for _, status := range models.ReportStatuses {
		stats.ByStatus[status] = 0
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] += row.Count
		stats.Total += row.Count
	}
	return stats, nil
}

func (s *ReportService) load(ctx context.Context, id string) (*models.Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

func (s *ReportService) broadcast(event models.Event) {
	if s.hub != nil {
		s.hub.Broadcast(event)
	}
}

func (s *ReportService) invalidateStats(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, statsCacheKey)
}

func (s *ReportService) emitAudit(ctx context.Context, actor *models.JWTClaims, reportID string, from, to models.ReportStatus, req dto.UpdateReportStatusRequest) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal(map[string]models.ReportStatus{"status": from})
	newValues, _ := json.Marshal(map[string]models.ReportStatus{"status": to})
	entry := &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionStatusChange,
		Resource:   models.AuditResourceReport,
		ResourceID: &reportID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  req.IP,
		UserAgent:  req.UserAgent,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("source", reportAuditSource), zap.Error(err))
	}
}

func generateAnonymousToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid payload"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
