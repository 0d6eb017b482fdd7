package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/whistleblower-api/internal/models"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
)

type whatsappServiceMock struct {
	from    string
	message string
}

func (m *whatsappServiceMock) HandleIncoming(ctx context.Context, senderRef, rawText string) (*models.Report, error) {
	if rawText == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message text is required")
	}
	m.from, m.message = senderRef, rawText
	return &models.Report{ID: "r-1", AnonymousToken: "tok"}, nil
}

func (m *whatsappServiceMock) VerifySubscription(mode, token, challenge string) (string, error) {
	if mode != "subscribe" || token != "verify" {
		return "", appErrors.Clone(appErrors.ErrForbidden, "webhook verification failed")
	}
	return challenge, nil
}

func TestWhatsAppHandlerWebhook(t *testing.T) {
	svc := &whatsappServiceMock{}
	h := NewWhatsAppHandler(svc)

	c, w := newGinContext(http.MethodPost, "/api/whatsapp/webhook", []byte(`{"from":"+1555","message":"fraud"}`))
	h.Webhook(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+1555", svc.from)

	c, w = newGinContext(http.MethodPost, "/api/whatsapp/webhook", []byte(`{"message":"fraud"}`))
	h.Webhook(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodPost, "/api/whatsapp/webhook", []byte(`{"from":"+1555","message":""}`))
	h.Webhook(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWhatsAppHandlerVerify(t *testing.T) {
	h := NewWhatsAppHandler(&whatsappServiceMock{})

	c, w := newGinContext(http.MethodGet, "/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=verify&hub.challenge=42", nil)
	h.Verify(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	c, w = newGinContext(http.MethodGet, "/api/whatsapp/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", nil)
	h.Verify(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
