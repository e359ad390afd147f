// Package metrics exposes dispatch outcome counters and an in-flight gauge
// for the proxy's /metrics endpoint.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ca-srg/tosage/domain"
)

var (
	// DispatchesTotal counts the outcome of every dispatch attempt (each
	// failed attempt that is retried included), labeled by target and
	// whether it succeeded.
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vertexlb_dispatches_total",
		Help: "Total number of dispatch attempts, labeled by target and outcome.",
	}, []string{"target_id", "outcome"})

	// DispatchErrorsTotal counts failed dispatch attempts by the
	// DispatchError kind that classified them.
	DispatchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vertexlb_dispatch_errors_total",
		Help: "Total number of failed dispatch attempts, labeled by target and error kind.",
	}, []string{"target_id", "error_kind"})

	// DispatchInFlight is the current number of dispatches being served.
	DispatchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vertexlb_dispatch_in_flight",
		Help: "Number of dispatch requests currently being handled.",
	})

	// DispatchDurationSeconds observes end-to-end dispatch latency,
	// labeled by whether the response was streamed.
	DispatchDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vertexlb_dispatch_duration_seconds",
		Help:    "Dispatch handling duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"streaming"})
)

// RecordSuccess increments the success counter for a target.
func RecordSuccess(targetID string) {
	DispatchesTotal.WithLabelValues(targetID, "success").Inc()
}

// RecordError increments the failure counters for a target and error kind.
func RecordError(targetID, errorKind string) {
	DispatchesTotal.WithLabelValues(targetID, "error").Inc()
	DispatchErrorsTotal.WithLabelValues(targetID, errorKind).Inc()
}

// ObserveDuration records end-to-end dispatch latency, labeled by whether
// the response was streamed.
func ObserveDuration(streaming bool, d time.Duration) {
	DispatchDurationSeconds.WithLabelValues(strconv.FormatBool(streaming)).Observe(d.Seconds())
}

// Handler returns the /metrics HTTP handler for mounting onto the chi router.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recorder adapts the package-level collectors to domain.MetricsRecorder
// so the Dispatch Engine can depend on the interface rather than this
// infrastructure package directly.
type Recorder struct{}

// NewRecorder returns the process-wide metrics recorder.
func NewRecorder() Recorder { return Recorder{} }

var _ domain.MetricsRecorder = Recorder{}

func (Recorder) RecordSuccess(targetID string)          { RecordSuccess(targetID) }
func (Recorder) RecordError(targetID, errorKind string) { RecordError(targetID, errorKind) }
func (Recorder) ObserveDuration(streaming bool, d time.Duration) {
	ObserveDuration(streaming, d)
}

func (Recorder) InFlight(delta int) {
	DispatchInFlight.Add(float64(delta))
}
