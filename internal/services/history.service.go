package services

import (
	"sync"

	"hostwatch/internal/models"
)

// MetricHistory is a fixed-capacity FIFO of recent samples. Push evicts the
// oldest sample once the buffer is full; readers always get copies.
type MetricHistory struct {
	mu       sync.RWMutex
	samples  []models.Sample // ring storage, len == capacity
	start    int             // index of the oldest sample
	count    int
	capacity int
}

// NewMetricHistory creates an empty history. Capacity below one is treated as one.
func NewMetricHistory(capacity int) *MetricHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &MetricHistory{
		samples:  make([]models.Sample, capacity),
		capacity: capacity,
	}
}

// Push appends s, dropping the oldest sample when full. Eviction and append
// happen under one lock so readers never see the intermediate state.
func (h *MetricHistory) Push(s models.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count < h.capacity {
		h.samples[(h.start+h.count)%h.capacity] = s
		h.count++
		return
	}
	h.samples[h.start] = s
	h.start = (h.start + 1) % h.capacity
}

// Snapshot returns the k most recent samples, oldest first. k <= 0 or k
// larger than the number held returns everything.
func (h *MetricHistory) Snapshot(k int) []models.Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 || k > h.count {
		k = h.count
	}
	out := make([]models.Sample, k)
	first := h.start + h.count - k
	for i := 0; i < k; i++ {
		out[i] = h.samples[(first+i)%h.capacity]
	}
	return out
}

// Latest returns the newest sample, if any
func (h *MetricHistory) Latest() (models.Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return models.Sample{}, false
	}
	return h.samples[(h.start+h.count-1)%h.capacity], true
}

// Average returns the mean CPU and memory utilization over the k most recent
// samples. An empty history averages to zero.
func (h *MetricHistory) Average(k int) models.MetricAverages {
	recent := h.Snapshot(k)
	if len(recent) == 0 {
		return models.MetricAverages{}
	}
	var cpuSum, memSum float64
	for _, s := range recent {
		cpuSum += s.CPUPercent
		memSum += s.MemoryPercent
	}
	n := float64(len(recent))
	return models.MetricAverages{
		CPU:     cpuSum / n,
		Memory:  memSum / n,
		Samples: len(recent),
	}
}

// Len returns the number of samples held
func (h *MetricHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Capacity returns the maximum number of samples held
func (h *MetricHistory) Capacity() int {
	return h.capacity
}
