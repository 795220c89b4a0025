package services

import (
	"errors"
	"fmt"
	"sync"

	"hostwatch/internal/models"
)

// ErrInvalidThreshold is returned when a threshold falls outside [0,100]
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")

// ThresholdEvaluator turns samples into alerts. It keeps no memory of
// earlier samples: every breach produces a fresh alert.
type ThresholdEvaluator struct {
	mu     sync.RWMutex
	cpu    float64
	memory float64
}

// NewThresholdEvaluator validates the initial thresholds
func NewThresholdEvaluator(cpu, memory float64) (*ThresholdEvaluator, error) {
	if err := validateThreshold("cpu", cpu); err != nil {
		return nil, err
	}
	if err := validateThreshold("memory", memory); err != nil {
		return nil, err
	}
	return &ThresholdEvaluator{cpu: cpu, memory: memory}, nil
}

func validateThreshold(name string, v float64) error {
	// NaN fails both comparisons, so test for the valid range instead.
	if !(v >= 0 && v <= 100) {
		return fmt.Errorf("%s %w, got %v", name, ErrInvalidThreshold, v)
	}
	return nil
}

// Evaluate returns one alert per metric strictly above its threshold
func (e *ThresholdEvaluator) Evaluate(s models.Sample) []models.Alert {
	t := e.Thresholds()

	var alerts []models.Alert
	if s.CPUPercent > t.CPU {
		alerts = append(alerts, models.Alert{
			Kind:      models.AlertKindCPU,
			Message:   fmt.Sprintf("High CPU usage: %.2f%%", s.CPUPercent),
			Value:     s.CPUPercent,
			Threshold: t.CPU,
			Severity:  models.SeverityHigh,
			Timestamp: s.Timestamp,
		})
	}
	if s.MemoryPercent > t.Memory {
		alerts = append(alerts, models.Alert{
			Kind:      models.AlertKindMemory,
			Message:   fmt.Sprintf("High Memory usage: %.2f%%", s.MemoryPercent),
			Value:     s.MemoryPercent,
			Threshold: t.Memory,
			Severity:  models.SeverityHigh,
			Timestamp: s.Timestamp,
		})
	}
	return alerts
}

// SetCPUThreshold replaces the CPU threshold; the old value stays on error
func (e *ThresholdEvaluator) SetCPUThreshold(v float64) error {
	return e.SetThresholds(&v, nil)
}

// SetMemoryThreshold replaces the memory threshold; the old value stays on error
func (e *ThresholdEvaluator) SetMemoryThreshold(v float64) error {
	return e.SetThresholds(nil, &v)
}

// SetThresholds updates whichever values are non-nil. Both are validated
// before either is applied.
func (e *ThresholdEvaluator) SetThresholds(cpu, memory *float64) error {
	if cpu != nil {
		if err := validateThreshold("cpu", *cpu); err != nil {
			return err
		}
	}
	if memory != nil {
		if err := validateThreshold("memory", *memory); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cpu != nil {
		e.cpu = *cpu
	}
	if memory != nil {
		e.memory = *memory
	}
	return nil
}

// Thresholds returns the current pair
func (e *ThresholdEvaluator) Thresholds() models.Thresholds {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return models.Thresholds{CPU: e.cpu, Memory: e.memory}
}
