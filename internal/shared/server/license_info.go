package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matching-backend/internal/shared/server/middleware"
	"matching-backend/internal/shared/server/respond"
)

// registerLicenseRoutes attaches the /license endpoint, which lets the plugin
// confirm what the backend resolved for its install.
func registerLicenseRoutes(rg *gin.RouterGroup) {
	rg.GET("/license", licenseInfoHandler)
}

func licenseInfoHandler(c *gin.Context) {
	lic, ok := middleware.LicenseFromContext(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid license", nil)
		return
	}

	response := gin.H{
		"installId": lic.InstallID,
		"planName":  lic.PlanName,
	}
	if lic.SiteURL != "" {
		response["siteUrl"] = lic.SiteURL
	}

	respond.JSON(c, http.StatusOK, response)
}
