package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeChanged = "changed"
	OutcomeNoop    = "noop"
	OutcomeError   = "error"
	OutcomeOK      = "ok"
)

// StoreMetrics records storefront mutations and remote sync jobs.
type StoreMetrics struct {
	mutations    *prometheus.CounterVec
	syncTotal    *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
}

// NewStoreMetrics registers the storefront metrics on the provided registerer.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_mutations_total",
		Help: "Storefront state operations by outcome.",
	}, []string{"op", "outcome"})
	syncTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_total",
		Help: "Remote account sync jobs by outcome.",
	}, []string{"op", "outcome"})
	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_sync_duration_seconds",
		Help:    "Duration of remote account sync jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	reg.MustRegister(mutations, syncTotal, syncDuration)
	return &StoreMetrics{
		mutations:    mutations,
		syncTotal:    syncTotal,
		syncDuration: syncDuration,
	}
}

// ObserveMutation counts a storefront operation under changed, noop or error.
func (m *StoreMetrics) ObserveMutation(op, outcome string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

// ObserveSync records a finished sync job.
func (m *StoreMetrics) ObserveSync(op string, duration time.Duration, err error) {
	if m == nil || m.syncTotal == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.syncTotal.WithLabelValues(normalizeLabel(op), outcome).Inc()
	m.syncDuration.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
