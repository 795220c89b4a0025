package controllers

import (
	"errors"
	"net/http"

	"hostwatch/internal/middleware"
	"hostwatch/internal/services"

	"github.com/gin-gonic/gin"
)

type thresholdsRequest struct {
	CPU    *float64 `json:"cpu_threshold"`
	Memory *float64 `json:"memory_threshold"`
}

// ThresholdController reads and updates the alert thresholds
type ThresholdController struct {
	evaluator *services.ThresholdEvaluator
}

// NewThresholdController creates the handlers
func NewThresholdController(evaluator *services.ThresholdEvaluator) *ThresholdController {
	return &ThresholdController{evaluator: evaluator}
}

// GetThresholds returns the current thresholds
func (tc *ThresholdController) GetThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"current_thresholds": tc.evaluator.Thresholds()})
}

// UpdateThresholds applies whichever thresholds the body names. Either both
// are applied or neither.
func (tc *ThresholdController) UpdateThresholds(c *gin.Context) {
	var req thresholdsRequest
	if !middleware.BindJSON(c, &req) {
		return
	}

	if err := tc.evaluator.SetThresholds(req.CPU, req.Memory); err != nil {
		if errors.Is(err, services.ErrInvalidThreshold) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "Thresholds updated",
		"current_thresholds": tc.evaluator.Thresholds(),
	})
}

// HostController serves live host readings and process health
type HostController struct {
	cache *services.HostStatusCache
	loop  *services.CollectionLoop
	hist  *services.MetricHistory
	hub   *services.WebSocketHub
}

// NewHostController creates the handlers
func NewHostController(cache *services.HostStatusCache, loop *services.CollectionLoop, hist *services.MetricHistory, hub *services.WebSocketHub) *HostController {
	return &HostController{cache: cache, loop: loop, hist: hist, hub: hub}
}

// GetHost returns cached CPU, memory and disk readings
func (hc *HostController) GetHost(c *gin.Context) {
	status, err := hc.cache.Get()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetHealth reports collection loop progress
func (hc *HostController) GetHealth(c *gin.Context) {
	stats := hc.loop.Stats()
	code := http.StatusOK
	if stats.State != services.LoopRunning.String() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"collector":        stats,
		"history_samples":  hc.hist.Len(),
		"history_capacity": hc.hist.Capacity(),
		"stream_clients":   hc.hub.ClientCount(),
	})
}
