package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for pipeline runs
type Collector struct {
	registry *prometheus.Registry

	Extractions           *prometheus.CounterVec
	EntitiesUpserted      prometheus.Counter
	RelationshipsUpserted prometheus.Counter
	Skipped               *prometheus.CounterVec
	PipelineDuration      prometheus.Histogram
}

// NewCollector creates a collector registered on its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "Extraction calls by outcome (ok, empty, failed)",
			},
			[]string{"outcome"},
		),
		EntitiesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_upserted_total",
			Help:      "Entity upserts issued to the graph",
		}),
		RelationshipsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relationships_upserted_total",
			Help:      "Relationship upserts issued to the graph",
		}),
		Skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_skipped_total",
				Help:      "Extracted items not written, by kind (entity, relationship)",
			},
			[]string{"kind"},
		),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of a full extract-and-write run",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		c.Extractions,
		c.EntitiesUpserted,
		c.RelationshipsUpserted,
		c.Skipped,
		c.PipelineDuration,
	)
	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordExtraction counts one extraction call
func (c *Collector) RecordExtraction(outcome string) {
	c.Extractions.WithLabelValues(outcome).Inc()
}

// RecordSkipped counts an item dropped before the write
func (c *Collector) RecordSkipped(kind string) {
	c.Skipped.WithLabelValues(kind).Inc()
}

// ObserveRun records the duration of a pipeline run
func (c *Collector) ObserveRun(d time.Duration) {
	c.PipelineDuration.Observe(d.Seconds())
}
