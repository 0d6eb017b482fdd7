package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/whistleblower-api/internal/models"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
	"github.com/noah-isme/whistleblower-api/pkg/whatsapp"
)

const (
	subscribeMode           = "subscribe"
	signaturePrefix         = "sha256="
	outboundKindConfirm     = "confirmation"
	outboundKindStatus      = "status_update"
	defaultChannelTimeout   = 10 * time.Second
	confirmationMessageTmpl = "Thank you for your report. Your tracking token is: %s\n\nYou can use this token to track the status of your report on our website."
	statusMessageTmpl       = "Update on your report: The status has been changed to %s."
)

// Redaction is pattern based and will miss PII that does not look like a
// phone number, an email address or an honorific followed by a name.
var redactions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[EMAIL_REDACTED]"},
	{regexp.MustCompile(`\+?\d{10,}`), "[PHONE_REDACTED]"},
	{regexp.MustCompile(`\+?\(?\d{2,4}\)?[\s.-]\d{3,4}[\s.-]\d{3,5}\b`), "[PHONE_REDACTED]"},
	{regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr)\.\s*\w+|\b(?:Mr|Mrs|Ms|Dr)\s+\p{Lu}\w*`), "[NAME_REDACTED]"},
}

type channelReportCreator interface {
	SubmitFromChannel(ctx context.Context, title, text, senderRef string) (*models.Report, error)
}

// WhatsAppConfig holds the inbound verification secrets and outbound timeout.
type WhatsAppConfig struct {
	VerifyToken string
	AppSecret   string
	SendTimeout time.Duration
}

// WhatsAppService adapts the messaging channel to the report lifecycle.
type WhatsAppService struct {
	reports channelReportCreator
	sender  whatsapp.Sender
	metrics *MetricsService
	logger  *zap.Logger
	cfg     WhatsAppConfig
}

// NewWhatsAppService constructs a WhatsAppService.
func NewWhatsAppService(reports channelReportCreator, sender whatsapp.Sender, metrics *MetricsService, logger *zap.Logger, cfg WhatsAppConfig) *WhatsAppService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultChannelTimeout
	}
	return &WhatsAppService{reports: reports, sender: sender, metrics: metrics, logger: logger, cfg: cfg}
}

// Anonymize redacts phone numbers, email addresses and honorific-prefixed
// names from text. It is best-effort: names without a title pass through.
func Anonymize(text string) string {
	for _, r := range redactions {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}

// HandleIncoming turns an inbound message into a report and replies with the
// tracking token. A failed reply is logged; the report is still returned.
func (s *WhatsAppService) HandleIncoming(ctx context.Context, senderRef, rawText string) (*models.Report, error) {
	senderRef = strings.TrimSpace(senderRef)
	if senderRef == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sender is required")
	}
	if strings.TrimSpace(rawText) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message text is required")
	}

	redacted := Anonymize(rawText)
	report, err := s.reports.SubmitFromChannel(ctx, models.WhatsAppReportTitle, redacted, senderRef)
	if err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	err = s.sender.SendText(sendCtx, senderRef, fmt.Sprintf(confirmationMessageTmpl, report.AnonymousToken))
	s.metrics.OutboundMessage(outboundKindConfirm, err)
	if err != nil {
		s.logger.Error("failed to send report confirmation",
			zap.String("code", appErrors.ErrExternalChannel.Code),
			zap.String("report_id", report.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("channel report received",
		zap.String("report_id", report.ID),
		zap.Int("raw_length", len(rawText)),
		zap.Int("stored_length", len(redacted)),
	)
	return report, nil
}

// SendStatusUpdate tells the original sender that their report moved to status.
func (s *WhatsAppService) SendStatusUpdate(ctx context.Context, senderRef, reportID string, status models.ReportStatus) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	err := s.sender.SendText(sendCtx, senderRef, fmt.Sprintf(statusMessageTmpl, status))
	s.metrics.OutboundMessage(outboundKindStatus, err)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrExternalChannel.Code, appErrors.ErrExternalChannel.Status,
			fmt.Sprintf("failed to deliver status update for report %s", reportID))
	}
	return nil
}

// VerifySubscription answers the webhook verification handshake.
func (s *WhatsAppService) VerifySubscription(mode, token, challenge string) (string, error) {
	if s.cfg.VerifyToken == "" || mode != subscribeMode {
		return "", appErrors.Clone(appErrors.ErrForbidden, "webhook verification failed")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.VerifyToken)) != 1 {
		return "", appErrors.Clone(appErrors.ErrForbidden, "webhook verification failed")
	}
	return challenge, nil
}

// SignatureRequired reports whether inbound webhooks must be signed.
func (s *WhatsAppService) SignatureRequired() bool {
	return s.cfg.AppSecret != ""
}

// VerifySignature checks an X-Hub-Signature-256 header against body. It
// accepts everything when no app secret is configured.
func (s *WhatsAppService) VerifySignature(body []byte, header string) error {
	if !s.SignatureRequired() {
		return nil
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return appErrors.Clone(appErrors.ErrForbidden, "missing webhook signature")
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "invalid webhook signature")
	}
	mac := hmac.New(sha256.New, []byte(s.cfg.AppSecret))
	mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return appErrors.Clone(appErrors.ErrForbidden, "invalid webhook signature")
	}
	return nil
}
