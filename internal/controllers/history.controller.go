package controllers

import (
	"math"
	"net/http"
	"time"

	"hostwatch/internal/services"

	"github.com/gin-gonic/gin"
)

const (
	summaryAverageWindow = 10
	summaryRecentAlerts  = 10
	metricsRecentSamples = 50
	metricsRecentAlerts  = 20
)

// MonitorController serves the collected samples and stored alerts
type MonitorController struct {
	history   *services.MetricHistory
	evaluator *services.ThresholdEvaluator
	store     services.AlertStore
	now       func() time.Time
}

// NewMonitorController creates the handlers
func NewMonitorController(history *services.MetricHistory, evaluator *services.ThresholdEvaluator, store services.AlertStore) *MonitorController {
	return &MonitorController{history: history, evaluator: evaluator, store: store, now: time.Now}
}

// GetSummary returns alert totals, recent alerts, recent averages and thresholds
func (mc *MonitorController) GetSummary(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := mc.store.TotalCount(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	breakdown, err := mc.store.BreakdownByKind(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	recent, err := mc.store.Recent(ctx, summaryRecentAlerts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	avg := mc.history.Average(summaryAverageWindow)

	c.JSON(http.StatusOK, gin.H{
		"total_alerts":    total,
		"alert_breakdown": breakdown,
		"recent_alerts":   recent,
		"average_metrics": gin.H{
			"cpu_usage":    round2(avg.CPU),
			"memory_usage": round2(avg.Memory),
		},
		"current_thresholds": mc.evaluator.Thresholds(),
		"timestamp":          mc.now(),
	})
}

// GetMetrics returns the most recent samples and alerts
func (mc *MonitorController) GetMetrics(c *gin.Context) {
	alerts, err := mc.store.Recent(c.Request.Context(), metricsRecentAlerts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"recent_metrics": mc.history.Snapshot(metricsRecentSamples),
		"current_alerts": alerts,
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
