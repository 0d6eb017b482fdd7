package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/whistleblower-api/pkg/config"
)

// Sender delivers a plain text message to an external recipient.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// Client sends text messages through the WhatsApp Cloud (Graph) API.
type Client struct {
	baseURL       string
	phoneNumberID string
	token         string
	httpClient    *http.Client
}

type textMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// NewClient builds a Graph API client.
func NewClient(cfg config.WhatsAppConfig) *Client {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.APIBaseURL, "/"),
		phoneNumberID: cfg.PhoneNumberID,
		token:         cfg.APIToken,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// NewSender returns a Graph API client when credentials are configured and a
// LogSender otherwise.
func NewSender(cfg config.WhatsAppConfig, logger *zap.Logger) Sender {
	if cfg.APIToken == "" || cfg.PhoneNumberID == "" {
		return NewLogSender(logger)
	}
	return NewClient(cfg)
}

// SendText posts a text message to the recipient.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	reqBody, err := json.Marshal(textMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// apiErrorBody is the Graph API error envelope. Only the numeric codes are
// read; the message text can echo recipient details.
type apiErrorBody struct {
	Error struct {
		Code    int `json:"code"`
		Subcode int `json:"error_subcode"`
	} `json:"error"`
}

func statusError(resp *http.Response) error {
	var body apiErrorBody
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil || body.Error.Code == 0 {
		return fmt.Errorf("whatsapp api returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("whatsapp api returned status %d (code %d, subcode %d)", resp.StatusCode, body.Error.Code, body.Error.Subcode)
}

// LogSender is a placeholder used when no API credentials are configured.
// It logs only the message length so neither recipient nor content leaks.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a placeholder sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// SendText logs the delivery attempt.
func (s *LogSender) SendText(ctx context.Context, _ string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("whatsapp placeholder delivery", zap.Int("message_length", len(body)))
	return nil
}
