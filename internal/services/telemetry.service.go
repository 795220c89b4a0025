package services

import (
	"net/http"

	"hostwatch/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry exposes collector progress in the Prometheus format. It uses its
// own registry so tests can create as many as they like.
type Telemetry struct {
	registry *prometheus.Registry
	cpu      prometheus.Gauge
	memory   prometheus.Gauge
	samples  prometheus.Counter
	alerts   *prometheus.CounterVec
}

var _ CollectorObserver = (*Telemetry)(nil)

// NewTelemetry registers the hostwatch metrics. history, auth and evaluator
// may be nil; their gauges are skipped.
func NewTelemetry(history *MetricHistory, auth *SessionAuthenticator, evaluator *ThresholdEvaluator) *Telemetry {
	t := &Telemetry{
		registry: prometheus.NewRegistry(),
		cpu: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hostwatch",
			Name:      "cpu_usage_percent",
			Help:      "CPU utilization of the most recent sample.",
		}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hostwatch",
			Name:      "memory_usage_percent",
			Help:      "Memory utilization of the most recent sample.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hostwatch",
			Name:      "samples_total",
			Help:      "Samples recorded by the collection loop.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostwatch",
			Name:      "alerts_total",
			Help:      "Alerts persisted, by type.",
		}, []string{"type"}),
	}

	t.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		t.cpu, t.memory, t.samples, t.alerts,
	)

	if history != nil {
		t.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "hostwatch",
			Name:      "history_samples",
			Help:      "Samples currently held in the in-memory history.",
		}, func() float64 { return float64(history.Len()) }))
	}
	if auth != nil {
		t.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "hostwatch",
			Name:      "sessions",
			Help:      "Sessions held, including expired ones not yet swept.",
		}, func() float64 { return float64(auth.SessionCount()) }))
	}
	if evaluator != nil {
		threshold := func(pick func(models.Thresholds) float64) func() float64 {
			return func() float64 { return pick(evaluator.Thresholds()) }
		}
		t.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   "hostwatch",
				Name:        "threshold_percent",
				Help:        "Current alert threshold.",
				ConstLabels: prometheus.Labels{"type": string(models.AlertKindCPU)},
			}, threshold(func(th models.Thresholds) float64 { return th.CPU })),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace:   "hostwatch",
				Name:        "threshold_percent",
				Help:        "Current alert threshold.",
				ConstLabels: prometheus.Labels{"type": string(models.AlertKindMemory)},
			}, threshold(func(th models.Thresholds) float64 { return th.Memory })),
		)
	}
	return t
}

// OnSample records the latest utilization
func (t *Telemetry) OnSample(s models.Sample) {
	t.cpu.Set(s.CPUPercent)
	t.memory.Set(s.MemoryPercent)
	t.samples.Inc()
}

// OnAlert counts a persisted alert
func (t *Telemetry) OnAlert(a models.Alert) {
	t.alerts.WithLabelValues(string(a.Kind)).Inc()
}

// Registry exposes the underlying registry
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the exposition format
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry})
}
