package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the registry's Prometheus metrics on a dedicated registry
// so tests can create collectors without colliding on the default one.
type Collector struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	driftDetections   *prometheus.CounterVec
	logAlerts         *prometheus.CounterVec
}

// NewCollector creates and registers the metric set under the given
// namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "mlregistry"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Registry operations by name and outcome",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Registry operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		driftDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drift_detections_total",
				Help:      "Monitoring checks that flagged drift, by artifact id",
			},
			[]string{"artifact_id"},
		),
		logAlerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_alerts_total",
				Help:      "Log monitor threshold crossings by severity",
			},
			[]string{"level"},
		),
	}

	c.registry.MustRegister(c.operationsTotal, c.operationDuration, c.driftDetections, c.logAlerts)

	return c
}

// Registry exposes the underlying Prometheus registry for the metrics
// endpoint.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveOperation records one registry operation.
func (c *Collector) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.operationsTotal.WithLabelValues(operation, status).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// CountDrift records one drift detection for an artifact.
func (c *Collector) CountDrift(artifactID string) {
	c.driftDetections.WithLabelValues(artifactID).Inc()
}

// CountLogAlert records one log monitor threshold crossing.
func (c *Collector) CountLogAlert(level string) {
	c.logAlerts.WithLabelValues(level).Inc()
}
