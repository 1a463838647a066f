// Package telemetry provides Prometheus instrumentation for the placement
// engine. Counters here feed the operational scrape surface; the durable
// per-run counters behind the stats endpoint live in Redis.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all placement Prometheus metrics
type Metrics struct {
	PlacementsTotal   *prometheus.CounterVec
	SkipsTotal        *prometheus.CounterVec
	PlacementDuration *prometheus.HistogramVec
	BatchSize         prometheus.Histogram
	CreditsHeld       prometheus.Counter
	CreditsRefunded   prometheus.Counter
}

// Provider wraps the metrics and their registry. Each provider owns its own
// registry so independent instances never collide on registration.
type Provider struct {
	Metrics  *Metrics
	registry *prometheus.Registry
}

// NewProvider initializes a telemetry provider
func NewProvider() *Provider {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	metrics := &Metrics{
		PlacementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_attempts_total",
			Help: "Total placement attempts by method and outcome",
		}, []string{"method", "outcome"}),

		SkipsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "placement_skips_total",
			Help: "Total opportunities skipped without an attempt",
		}, []string{"reason"}),

		PlacementDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "placement_duration_seconds",
			Help:    "Time spent executing one placement attempt",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method"}),

		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "placement_batch_size",
			Help:    "Eligible opportunities considered per user run",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),

		CreditsHeld: factory.NewCounter(prometheus.CounterOpts{
			Name: "placement_credits_held_total",
			Help: "Total credits reserved before placement attempts",
		}),

		CreditsRefunded: factory.NewCounter(prometheus.CounterOpts{
			Name: "placement_credits_refunded_total",
			Help: "Total credits returned after failed attempts",
		}),
	}

	return &Provider{Metrics: metrics, registry: registry}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// RecordPlacement records one executed attempt
func (p *Provider) RecordPlacement(method string, success bool, duration time.Duration) {
	outcome := "failed"
	if success {
		outcome = "placed"
	}
	p.Metrics.PlacementsTotal.WithLabelValues(method, outcome).Inc()
	p.Metrics.PlacementDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSkip records an opportunity skipped without an attempt
func (p *Provider) RecordSkip(reason string) {
	p.Metrics.SkipsTotal.WithLabelValues(reason).Inc()
}

// RecordBatchSize records the size of one user's eligible batch
func (p *Provider) RecordBatchSize(size int) {
	p.Metrics.BatchSize.Observe(float64(size))
}

// RecordHold records credits reserved for an attempt
func (p *Provider) RecordHold(amount int) {
	p.Metrics.CreditsHeld.Add(float64(amount))
}

// RecordRefund records credits returned after a failed attempt
func (p *Provider) RecordRefund(amount int) {
	p.Metrics.CreditsRefunded.Add(float64(amount))
}
