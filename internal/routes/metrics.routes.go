package routes

import (
	"net/http"

	"hostwatch/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterMonitorRoutes registers summary, sample, threshold and host routes
func RegisterMonitorRoutes(r *gin.Engine, mc *controllers.MonitorController, tc *controllers.ThresholdController, hc *controllers.HostController, requireSession gin.HandlerFunc) {
	r.GET("/summary", requireSession, mc.GetSummary)
	r.GET("/health", hc.GetHealth)

	api := r.Group("/api")
	{
		api.GET("/metrics", mc.GetMetrics)
		api.GET("/host", hc.GetHost)
		api.GET("/thresholds", tc.GetThresholds)
		api.POST("/thresholds", requireSession, tc.UpdateThresholds)
	}
}

// RegisterTelemetryRoutes exposes Prometheus metrics
func RegisterTelemetryRoutes(r *gin.Engine, handler http.Handler) {
	r.GET("/metrics", gin.WrapH(handler))
}

// RegisterLogRoutes registers the log analyzer upload endpoint
func RegisterLogRoutes(r *gin.Engine) {
	r.POST("/analyze-logs", controllers.AnalyzeLogs)
}
