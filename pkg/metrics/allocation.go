package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AllocationMetrics records ledger allocation outcomes.
type AllocationMetrics struct {
	duration  *prometheus.HistogramVec
	success   *prometheus.CounterVec
	shortage  *prometheus.CounterVec
	retries   *prometheus.CounterVec
	reversals *prometheus.CounterVec
}

// NewAllocationMetrics registers the allocation metrics on the provided registerer.
func NewAllocationMetrics(reg prometheus.Registerer) *AllocationMetrics {
	if reg == nil {
		return &AllocationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocation_duration_seconds",
		Help:    "Duration of ledger allocations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_success",
		Help: "Fully satisfied allocation requests.",
	}, []string{"kind"})
	shortage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_shortage",
		Help: "Allocation requests rejected for insufficient stock.",
	}, []string{"kind"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_debit_retries",
		Help: "Conditional batch debits lost to a concurrent writer and retried.",
	}, []string{"kind"})
	reversals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_reversals",
		Help: "Compensating reversals applied to the ledger.",
	}, []string{"kind"})
	reg.MustRegister(duration, success, shortage, retries, reversals)
	return &AllocationMetrics{
		duration:  duration,
		success:   success,
		shortage:  shortage,
		retries:   retries,
		reversals: reversals,
	}
}

// ObserveDuration records the duration for the given allocation kind.
func (a *AllocationMetrics) ObserveDuration(kind string, duration time.Duration) {
	if a == nil || a.duration == nil {
		return
	}
	a.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter.
func (a *AllocationMetrics) IncSuccess(kind string) {
	if a == nil || a.success == nil {
		return
	}
	a.success.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncShortage increments the shortage counter.
func (a *AllocationMetrics) IncShortage(kind string) {
	if a == nil || a.shortage == nil {
		return
	}
	a.shortage.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncDebitRetry increments the lost-conditional-write counter.
func (a *AllocationMetrics) IncDebitRetry(kind string) {
	if a == nil || a.retries == nil {
		return
	}
	a.retries.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncReversal increments the compensation counter.
func (a *AllocationMetrics) IncReversal(kind string) {
	if a == nil || a.reversals == nil {
		return
	}
	a.reversals.WithLabelValues(normalizeLabel(kind)).Inc()
}

func normalizeLabel(kind string) string {
	if kind == "" {
		return "unknown"
	}
	return kind
}
