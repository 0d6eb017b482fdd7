package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/whistleblower-api/internal/dto"
	"github.com/noah-isme/whistleblower-api/internal/models"
	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
	"github.com/noah-isme/whistleblower-api/pkg/response"
)

type whatsappService interface {
	HandleIncoming(ctx context.Context, senderRef, rawText string) (*models.Report, error)
	VerifySubscription(mode, token, challenge string) (string, error)
}

// WhatsAppHandler receives messaging channel webhooks.
type WhatsAppHandler struct {
	service whatsappService
}

// NewWhatsAppHandler constructs handler.
func NewWhatsAppHandler(svc whatsappService) *WhatsAppHandler {
	return &WhatsAppHandler{service: svc}
}

// Webhook godoc
// @Summary Receive an inbound message
// @Tags WhatsApp
// @Accept json
// @Produce json
// @Param payload body dto.WhatsAppWebhookRequest true "Inbound message"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /whatsapp/webhook [post]
func (h *WhatsAppHandler) Webhook(c *gin.Context) {
	var req dto.WhatsAppWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid webhook payload"))
		return
	}
	report, err := h.service.HandleIncoming(c.Request.Context(), req.From, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Verify godoc
// @Summary Webhook subscription handshake
// @Tags WhatsApp
// @Produce plain
// @Param hub.mode query string true "subscribe"
// @Param hub.verify_token query string true "Verify token"
// @Param hub.challenge query string true "Challenge"
// @Success 200 {string} string
// @Failure 403 {object} response.Envelope
// @Router /whatsapp/webhook [get]
func (h *WhatsAppHandler) Verify(c *gin.Context) {
	var query dto.WhatsAppVerifyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "webhook verification failed"))
		return
	}
	challenge, err := h.service.VerifySubscription(query.Mode, query.Token, query.Challenge)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.String(http.StatusOK, challenge)
}
