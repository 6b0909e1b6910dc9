// Package metrics exposes Prometheus counters for detections and actions,
// served next to the health endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scamsentry_messages_scanned_total",
		Help: "Messages run through the detection pipeline.",
	})

	Quarantines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scamsentry_quarantines_total",
		Help: "Quarantined messages by report category.",
	}, []string{"category"})

	UnauthorizedURLs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scamsentry_unauthorized_urls_total",
		Help: "Messages removed for carrying an unauthorized URL.",
	})

	Kicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scamsentry_kicks_total",
		Help: "Members kicked after repeat offenses.",
	})

	Bans = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scamsentry_bans_total",
		Help: "Members banned through the report controls.",
	})

	ImpersonationAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scamsentry_impersonation_alerts_total",
		Help: "Impersonation matches raised by the profile scanner.",
	})

	SuspectedUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scamsentry_suspected_users",
		Help: "Users with an active suspicion window.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
