package usage

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matching-backend/internal/shared/server/middleware"
	"matching-backend/internal/shared/server/respond"
)

// Handler exposes the usage endpoint.
type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

// Register attaches usage routes to the router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/usage", h.get)
}

func (h *Handler) get(c *gin.Context) {
	installID := middleware.InstallIDFromContext(c)
	if installID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing install identity", nil)
		return
	}
	plan := ""
	if lic, ok := middleware.LicenseFromContext(c); ok {
		plan = lic.PlanName
	}

	u, err := h.Service.Get(c.Request.Context(), installID, plan)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal", "unable to load usage", nil)
		return
	}

	respond.OK(c, gin.H{
		"month":     u.Month,
		"plan":      u.Plan,
		"limit":     u.Limit,
		"used":      u.Used,
		"remaining": u.Remaining(),
	})
}
