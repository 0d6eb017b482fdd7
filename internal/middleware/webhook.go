package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/whistleblower-api/pkg/errors"
	"github.com/noah-isme/whistleblower-api/pkg/response"
)

const (
	webhookSignatureHeader = "X-Hub-Signature-256"
	maxWebhookBodyBytes    = 1 << 20
)

// SignatureVerifier validates a signed webhook body.
type SignatureVerifier interface {
	SignatureRequired() bool
	VerifySignature(body []byte, header string) error
}

// WebhookSignature rejects unsigned or mis-signed webhook deliveries when the
// verifier requires signatures. The body is restored for the handler.
func WebhookSignature(verifier SignatureVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil || !verifier.SignatureRequired() {
			c.Next()
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "request body too large"))
			c.Abort()
			return
		}
		if err := verifier.VerifySignature(body, c.GetHeader(webhookSignatureHeader)); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
