package license

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"matching-backend/internal/shared/server/respond"
	"matching-backend/internal/shared/telemetry"
)

// webhookEvent is the subset of the licensing webhook payload we act on.
type webhookEvent struct {
	Type    string `json:"type"`
	Objects struct {
		Install struct {
			ID json.Number `json:"id"`
		} `json:"install"`
	} `json:"objects"`
}

// invalidatingEvents are the event types that evict the license cache.
var invalidatingEvents = map[string]bool{
	"license.expired":        true,
	"license.deactivated":    true,
	"license.cancelled":      true,
	"subscription.cancelled": true,
}

// WebhookHandler handles licensing backend webhooks. Requests are
// authenticated by an HMAC-SHA256 signature of the raw body.
type WebhookHandler struct {
	secret   string
	resolver *Resolver
}

func NewWebhookHandler(secret string, resolver *Resolver) *WebhookHandler {
	return &WebhookHandler{secret: secret, resolver: resolver}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "unable to read request body", nil)
		return
	}

	if h.secret != "" {
		signature := c.GetHeader("X-Signature")
		if !verifyWebhookSignature(h.secret, body, signature) {
			respond.Error(c, http.StatusUnauthorized, "invalid_signature", "webhook signature verification failed", nil)
			return
		}
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid webhook payload", nil)
		return
	}

	if invalidatingEvents[event.Type] {
		installID := event.Objects.Install.ID.String()
		if installID != "" && h.resolver != nil {
			h.resolver.Invalidate(installID)
			telemetry.Info("license.webhook.invalidated", map[string]any{
				"event":      event.Type,
				"install_id": installID,
			})
		}
	}

	respond.OK(c, gin.H{"received": true})
}

func verifyWebhookSignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
