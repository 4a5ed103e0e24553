// Package metrics exposes prometheus collectors for the render pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "manimforge"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeSkipped = "skipped"
)

// Metrics holds the pipeline collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	sceneBuilds   *prometheus.CounterVec
	buildDuration prometheus.Histogram
	batches       *prometheus.CounterVec
	concats       *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	activeBatches prometheus.Gauge
}

// New creates the collectors on a private registry. Go runtime and process
// collectors are included when withRuntime is set.
func New(withRuntime bool) *Metrics {
	registry := prometheus.NewRegistry()
	if withRuntime {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		sceneBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scene_builds_total",
			Help:      "Total number of scene builds, partitioned by outcome.",
		}, []string{"outcome"}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scene_build_duration_seconds",
			Help:      "Wall time of a single scene build including container start.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300, 600},
		}),
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of multi-scene batches, partitioned by outcome.",
		}, []string{"outcome"}),
		concats: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concat_total",
			Help:      "Total number of video concatenations, partitioned by outcome.",
		}, []string{"outcome"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Batches waiting for a worker.",
		}),
		activeBatches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_batches",
			Help:      "Batches currently being built.",
		}),
	}
}

// SceneBuilt records one scene build.
func (m *Metrics) SceneBuilt(outcome string, d time.Duration) {
	m.sceneBuilds.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.buildDuration.Observe(d.Seconds())
	}
}

// BatchFinished records one batch.
func (m *Metrics) BatchFinished(success bool) {
	m.batches.WithLabelValues(outcomeOf(success)).Inc()
}

// ConcatFinished records one concatenation.
func (m *Metrics) ConcatFinished(success bool) {
	m.concats.WithLabelValues(outcomeOf(success)).Inc()
}

// SetQueue publishes worker pool occupancy.
func (m *Metrics) SetQueue(queued, active int) {
	m.queueDepth.Set(float64(queued))
	m.activeBatches.Set(float64(active))
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcomeOf(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
