package cms

import (
	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/leadlens/internal/dashboard"
)

const (
	AdminProfilesRoutePath   = "/api/admin/profiles"
	AdminFetchStatsRoutePath = "/api/admin/fetch-stats"
)

// Register mounts the CMS routes. The visitor-record proxy sits behind the
// per-client rate limit; the admin group sits behind the bearer token.
func Register(router *gin.Engine, handlers *Handlers, adminBearerToken string, recordLimiter *ClientRateLimiter) {
	router.GET(dashboard.ConfigurationEndpointPath, handlers.HandleDashboardConfig)

	recordGroup := router.Group(dashboard.RecordEndpointPath)
	if recordLimiter != nil {
		recordGroup.Use(recordLimiter.Middleware())
	}
	recordGroup.POST("", handlers.HandleVisitorRecord)

	adminGroup := router.Group("/api/admin", AdminAuthMiddleware(adminBearerToken))
	adminGroup.PUT("/profiles", handlers.HandleUpsertProfile)
	adminGroup.GET("/profiles", handlers.HandleListProfiles)
	adminGroup.DELETE("/profiles/:visitor_id", handlers.HandleDeleteProfile)
	adminGroup.GET("/fetch-stats", handlers.HandleFetchStats)
}
