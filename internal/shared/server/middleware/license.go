package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"matching-backend/internal/license"
	"matching-backend/internal/shared/server/respond"
	"matching-backend/internal/shared/telemetry"
)

const (
	installIDKey = "installId"
	licenseKey   = "license"
)

// LicenseCheck authenticates plugin requests. The install identifies itself
// with X-Install-Id and signs the request timestamp with its install secret.
// When resolver is nil (licensing backend not configured) a bare X-Install-Id
// is accepted and granted the matching feature, which keeps local development
// workable without licensing credentials.
func LicenseCheck(resolver *license.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		installID := strings.TrimSpace(c.GetHeader("X-Install-Id"))
		if installID == "" {
			respond.Error(c, http.StatusUnauthorized, "missing_install_id", "X-Install-Id header is required", nil)
			c.Abort()
			return
		}

		if resolver == nil {
			c.Set(installIDKey, installID)
			c.Set(licenseKey, license.License{InstallID: installID, PlanName: "ai_addon"})
			c.Next()
			return
		}

		entry, err := resolver.Resolve(c.Request.Context(), installID)
		if err != nil {
			telemetry.Warn("license.resolve_failed", map[string]any{
				"request_id": RequestIDFromContext(c),
				"install_id": installID,
				"error":      err.Error(),
			})
			respond.Error(c, http.StatusUnauthorized, "invalid_license", "license verification failed", nil)
			c.Abort()
			return
		}

		timestamp := c.GetHeader("X-Timestamp")
		signature := c.GetHeader("X-Signature")
		if !license.VerifySignature(entry.SecretKey, timestamp, signature, time.Now().UTC()) {
			respond.Error(c, http.StatusUnauthorized, "invalid_signature", "request signature verification failed", nil)
			c.Abort()
			return
		}

		if !license.HasAIFeature(entry.PlanName) {
			respond.Error(c, http.StatusForbidden, "feature_not_available", "your plan does not include CV matching", nil)
			c.Abort()
			return
		}

		c.Set(installIDKey, installID)
		c.Set(licenseKey, entry.License)
		c.Next()
	}
}

// InstallIDFromContext fetches the install ID stored by LicenseCheck.
func InstallIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(installIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// LicenseFromContext fetches the resolved license stored by LicenseCheck.
func LicenseFromContext(c *gin.Context) (license.License, bool) {
	if c == nil {
		return license.License{}, false
	}
	val, ok := c.Get(licenseKey)
	if !ok {
		return license.License{}, false
	}
	lic, ok := val.(license.License)
	return lic, ok
}
