package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contact reconciliation module.
type Metrics struct {
	// Contacts created by link precedence
	ContactsCreated *prometheus.CounterVec

	// Primary demotions performed by merge resolution
	PrimariesMerged prometheus.Counter

	// Resolve outcomes by result
	ResolveOutcome *prometheus.CounterVec

	// Overall resolve latency including store round trips
	ResolveLatency prometheus.Histogram

	// Time spent waiting on identity locks
	LockWaitLatency prometheus.Histogram
}

// New creates a new Metrics instance with all contact module metrics registered.
func New() *Metrics {
	return &Metrics{
		ContactsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "weld_contacts_created_total",
			Help: "Total contacts created by link precedence",
		}, []string{"precedence"}), // precedence: "primary", "secondary"

		PrimariesMerged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "weld_contact_primaries_merged_total",
			Help: "Total primary contacts demoted to secondary by merge resolution",
		}),

		ResolveOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "weld_contact_resolves_total",
			Help: "Total resolve calls by outcome",
		}, []string{"outcome"}), // outcome: "created", "matched", "merged", "error"

		ResolveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "weld_contact_resolve_duration_seconds",
			Help:    "Duration of full resolve calls including store round trips",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		LockWaitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "weld_contact_lock_wait_duration_seconds",
			Help:    "Time resolve calls spend waiting on identity locks",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

// IncrementContactsCreated records a created contact.
func (m *Metrics) IncrementContactsCreated(precedence string) {
	if m != nil {
		m.ContactsCreated.WithLabelValues(precedence).Inc()
	}
}

// IncrementPrimariesMerged records a primary demotion.
func (m *Metrics) IncrementPrimariesMerged() {
	if m != nil {
		m.PrimariesMerged.Inc()
	}
}

// IncrementResolveOutcome records a resolve result.
func (m *Metrics) IncrementResolveOutcome(outcome string) {
	if m != nil {
		m.ResolveOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveResolveLatency records the total resolve duration.
func (m *Metrics) ObserveResolveLatency(d time.Duration) {
	if m != nil {
		m.ResolveLatency.Observe(d.Seconds())
	}
}

// ObserveLockWait records time spent acquiring identity locks.
func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m != nil {
		m.LockWaitLatency.Observe(d.Seconds())
	}
}
