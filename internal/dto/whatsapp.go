package dto

// WhatsAppWebhookRequest is the inbound message payload.
type WhatsAppWebhookRequest struct {
	From    string `json:"from" binding:"required"`
	Message string `json:"message"`
}

// WhatsAppVerifyQuery carries the webhook subscription handshake.
type WhatsAppVerifyQuery struct {
	Mode      string `form:"hub.mode"`
	Token     string `form:"hub.verify_token"`
	Challenge string `form:"hub.challenge"`
}
