// Package metrics exposes pass metrics and pushes them to a Prometheus
// Pushgateway, since a pass is too short-lived to be scraped.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "questwatch"

// Config holds the metrics settings
type Config struct {
	Enabled        bool          `toml:"enabled"`
	PushgatewayURL string        `toml:"pushgateway_url"`
	Job            string        `toml:"job"`
	Timeout        time.Duration `toml:"timeout"`
}

// DefaultConfig returns metrics disabled
func DefaultConfig() Config {
	return Config{
		Job:     "questwatch",
		Timeout: 10 * time.Second,
	}
}

// Metrics holds the collectors of one process on a private registry
type Metrics struct {
	registry *prometheus.Registry

	passes        *prometheus.CounterVec
	added         prometheus.Counter
	removed       prometheus.Counter
	deferred      prometheus.Counter
	notifications *prometheus.CounterVec
	tracked       prometheus.Gauge
	duration      prometheus.Histogram
}

// New registers the collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Reconciliation passes by final state and failure kind",
		}, []string{"state", "failure"}),
		added: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quests_added_total",
			Help:      "Quest ids newly tracked",
		}),
		removed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quests_removed_total",
			Help:      "Quest ids dropped because the remote no longer lists them",
		}),
		deferred: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quests_deferred_total",
			Help:      "New quests held back by the per pass notification cap",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Quest notifications by result",
		}, []string{"result"}),
		tracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_quests",
			Help:      "Quest ids tracked after the last pass",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a reconciliation pass",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// Registry returns the registry holding the collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// PassOutcome is what a finished pass reports
type PassOutcome struct {
	State    string
	Failure  string
	Added    int
	Removed  int
	Deferred int
	Notified int
	Failed   int
	Tracked  int
	Duration time.Duration
}

// ObservePass records one finished pass. Tracked is only set when known,
// i.e. when the pass reached a state where the store matched the remote.
func (m *Metrics) ObservePass(o PassOutcome) {
	m.passes.WithLabelValues(o.State, o.Failure).Inc()
	m.added.Add(float64(o.Added))
	m.removed.Add(float64(o.Removed))
	m.deferred.Add(float64(o.Deferred))
	m.notifications.WithLabelValues("delivered").Add(float64(o.Notified))
	m.notifications.WithLabelValues("failed").Add(float64(o.Failed))
	if o.State == "done" {
		m.tracked.Set(float64(o.Tracked))
	}
	m.duration.Observe(o.Duration.Seconds())
}

// Pusher sends the registry to a Pushgateway
type Pusher struct {
	config  Config
	metrics *Metrics
}

// NewPusher creates a pusher. It returns nil when pushing is disabled.
func NewPusher(config Config, metrics *Metrics) *Pusher {
	if !config.Enabled || config.PushgatewayURL == "" {
		return nil
	}
	return &Pusher{config: config, metrics: metrics}
}

// Push replaces the job's metric group on the gateway
func (p *Pusher) Push(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	err := push.New(p.config.PushgatewayURL, p.config.Job).
		Gatherer(p.metrics.registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("metrics: push to %s: %w", p.config.PushgatewayURL, err)
	}
	return nil
}
