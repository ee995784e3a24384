package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/joseph-ayodele/consultation-extract/internal/entity"
)

// unknownFieldLabel is used for keys the schema does not declare, so the label
// set stays bounded by the schema.
const unknownFieldLabel = "_unknown"

// Metrics holds the batch counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry  *prometheus.Registry
	documents *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	duration  prometheus.Histogram
}

// New creates the collectors and registers them on reg, or on a fresh registry when reg is nil.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consult_documents_total",
				Help: "Documents processed, by outcome.",
			},
			[]string{"status"},
		),
		fallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consult_field_fallbacks_total",
				Help: "Field values replaced during cleaning, by field.",
			},
			[]string{"field"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "consult_extraction_duration_seconds",
			Help:    "Wall time of one document extraction.",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		}),
	}
	for _, c := range []prometheus.Collector{m.documents, m.fallbacks, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Registry exposes the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRecord counts one finished document and its fallbacks.
func (m *Metrics) ObserveRecord(rec entity.Record, known func(field string) bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(string(rec.Status)).Inc()
	if elapsed > 0 {
		m.duration.Observe(elapsed.Seconds())
	}
	for _, fb := range rec.Fallbacks {
		field := fb.Field
		if known != nil && !known(field) {
			field = unknownFieldLabel
		}
		m.fallbacks.WithLabelValues(field).Inc()
	}
}

// Push sends the current values to a Prometheus Pushgateway, grouped by run.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	if m == nil || url == "" {
		return nil
	}
	p := push.New(url, job).Gatherer(m.registry)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
