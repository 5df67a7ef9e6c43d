package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/ev-rescue/internal/workflow"
)

var (
	MatchesTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ev_rescue", Name: "matches_total", Help: "Total number of rescue driver assignments"})
	MatchLatency   = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "ev_rescue", Name: "match_latency_seconds", Help: "Driver assignment latency seconds"})
	DriversOnline  = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ev_rescue", Name: "drivers_online", Help: "Number of online rescue drivers"})
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ev_rescue", Name: "active_sessions", Help: "Number of live workflow sessions"})

	StageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ev_rescue", Name: "stage_transitions_total", Help: "Workflow stage transitions"},
		[]string{"role", "from", "to"},
	)
	RescuesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ev_rescue", Name: "rescues_completed_total", Help: "Workflow runs that reached the thank-you stage"},
		[]string{"role"},
	)
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ev_rescue", Name: "notifications_total", Help: "Notifications raised to visitors"},
		[]string{"variant"},
	)
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ev_rescue", Name: "rate_limited_total", Help: "Requests rejected by the rate limiter"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ev_rescue", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ev_rescue",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// WorkflowListener counts transitions, completions and notifications.
func WorkflowListener() workflow.Listener {
	return workflow.ListenerFunc(func(ctx context.Context, u workflow.Update) {
		role := string(u.Snapshot.Role)
		if tr := u.Transition; tr != nil {
			StageTransitions.WithLabelValues(role, string(tr.From), string(tr.To)).Inc()
			if tr.To == workflow.StageThankYou {
				RescuesCompleted.WithLabelValues(role).Inc()
			}
		}
		if n := u.Notification; n != nil {
			Notifications.WithLabelValues(string(n.Variant)).Inc()
		}
	})
}
