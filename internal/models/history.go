package models

import "time"

// Sample is one timestamped CPU/memory utilization reading. Samples are
// passed by value and never modified after the sampler creates them.
type Sample struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_usage"`
	MemoryPercent float64   `json:"memory_usage"`
}

// MetricAverages is the mean utilization over a suffix of the history
type MetricAverages struct {
	CPU     float64 `json:"cpu_usage"`
	Memory  float64 `json:"memory_usage"`
	Samples int     `json:"-"`
}

// Thresholds holds the alerting limits in percent
type Thresholds struct {
	CPU    float64 `json:"cpu_threshold"`
	Memory float64 `json:"memory_threshold"`
}
