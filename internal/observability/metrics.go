// Package observability provides the prometheus metrics for the application.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all prometheus collectors on a private registry so tests can
// create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	analysesTotal         *prometheus.CounterVec
	inferenceDuration     prometheus.Histogram
	classifierErrorsTotal prometheus.Counter
	storeWritesTotal      *prometheus.CounterVec
	recordCount           prometheus.Gauge
}

// NewMetrics creates and registers all application metrics.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		analysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "baseera_analyses_total",
			Help: "Total number of completed plate analyses by dish and result.",
		}, []string{"dish", "result"}),
		inferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "baseera_inference_duration_seconds",
			Help:    "Duration of classifier forward passes.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		classifierErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "baseera_classifier_errors_total",
			Help: "Number of classifications that degraded to the error sentinel.",
		}),
		storeWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "baseera_store_writes_total",
			Help: "Durable write operations by type.",
		}, []string{"operation"}),
		recordCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "baseera_records",
			Help: "Number of analysis records currently held.",
		}),
	}

	collectorsToRegister := []prometheus.Collector{
		m.analysesTotal,
		m.inferenceDuration,
		m.classifierErrorsTotal,
		m.storeWritesTotal,
		m.recordCount,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range collectorsToRegister {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler returns an HTTP handler exposing the registry in prometheus text
// format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAnalysis counts one completed analysis.
func (m *Metrics) RecordAnalysis(dish, result string) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(dish, result).Inc()
}

// ObserveInference records the duration of one forward pass.
func (m *Metrics) ObserveInference(d time.Duration) {
	if m == nil {
		return
	}
	m.inferenceDuration.Observe(d.Seconds())
}

// IncClassifierError counts one sentinel classification.
func (m *Metrics) IncClassifierError() {
	if m == nil {
		return
	}
	m.classifierErrorsTotal.Inc()
}

// IncStoreWrite counts one durable write of the given operation type.
func (m *Metrics) IncStoreWrite(operation string) {
	if m == nil {
		return
	}
	m.storeWritesTotal.WithLabelValues(operation).Inc()
}

// SetRecordCount publishes the current record count.
func (m *Metrics) SetRecordCount(n int) {
	if m == nil {
		return
	}
	m.recordCount.Set(float64(n))
}
