package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matching-backend/internal/analyses"
	"matching-backend/internal/license"
	"matching-backend/internal/services/health"
	"matching-backend/internal/shared/config"
	"matching-backend/internal/shared/metrics"
	"matching-backend/internal/shared/server/middleware"
	"matching-backend/internal/shared/server/respond"
	"matching-backend/internal/usage"
)

// RouterDeps carries the constructed handlers and services the router wires up.
type RouterDeps struct {
	Config          config.Config
	Health          *health.Service
	AnalysisHandler *analyses.Handler
	UsageHandler    *usage.Handler
	WebhookHandler  *license.WebhookHandler
	LicenseResolver *license.Resolver
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, deps.Health.Status())
	})
	r.GET("/metrics", metrics.Handler())

	// Webhooks authenticate via their own HMAC signature, not install headers.
	if deps.WebhookHandler != nil {
		r.POST("/v1/webhooks/license", deps.WebhookHandler.Handle)
	}

	api := r.Group("/v1")
	api.Use(
		middleware.LicenseCheck(deps.LicenseResolver),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT": {Rate: 5, Burst: 10},
				"POLLING": {Rate: 10, Burst: 20},
			},
			GroupFor: pollingGroup,
		}),
	)
	registerLicenseRoutes(api)
	deps.AnalysisHandler.Register(api)
	deps.UsageHandler.Register(api)

	return r
}

// pollingGroup gives status polls a wider budget than submissions.
func pollingGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet && c.FullPath() == "/v1/analysis/:id" {
		return "POLLING"
	}
	return ""
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
