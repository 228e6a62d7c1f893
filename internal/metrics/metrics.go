// Package metrics exposes Prometheus instrumentation for the sync path.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sync holds the counters the sync engine maintains per client.
type Sync struct {
	Writes               prometheus.Counter
	WriteFailures        prometheus.Counter
	EchoesSuppressed     prometheus.Counter
	NotificationsApplied prometheus.Counter
}

// NewSync creates the sync counters and registers them with reg when it
// is non-nil. Unregistered counters still count, which keeps test and
// manual-mode engines free of registry setup.
func NewSync(reg prometheus.Registerer) *Sync {
	s := &Sync{
		Writes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snaptab_sync_writes_total",
			Help: "Full-document writes pushed to the record store.",
		}),
		WriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snaptab_sync_write_failures_total",
			Help: "Record store pushes that failed; local state is retained.",
		}),
		EchoesSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snaptab_sync_echoes_suppressed_total",
			Help: "Notifications discarded as echoes of this client's own writes.",
		}),
		NotificationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snaptab_sync_notifications_applied_total",
			Help: "Remote notifications reconciled into the local projection.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.Writes, s.WriteFailures, s.EchoesSuppressed, s.NotificationsApplied)
	}
	return s
}
