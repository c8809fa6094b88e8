package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Assignment metrics
	Assignments        *prometheus.CounterVec
	AssignmentFailures *prometheus.CounterVec

	// Chatbot quota metrics. Quota denials are expected outcomes, so they
	// are only visible here, never in the error log.
	QuotaDenials *prometheus.CounterVec
	TokensUsed   *prometheus.CounterVec

	// AI upstream metrics
	AIRequestLatency prometheus.Histogram
	AIRequestErrors  prometheus.Counter

	// Notification metrics
	NotificationsPublished prometheus.Counter
	NotificationsFailed    prometheus.Counter
}

// NewMetrics creates and registers all application metrics on the given
// registerer (prometheus.DefaultRegisterer in production, a private registry
// in tests).
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignments_total",
			Help:      "Completed patient assignments by target and method",
		}, []string{"target", "method"}),
		AssignmentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_failures_total",
			Help:      "Rejected assignment attempts by reason",
		}, []string{"reason"}),
		QuotaDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chatbot_quota_denials_total",
			Help:      "Chatbot requests denied by the quota gate, by reason",
		}, []string{"reason"}),
		TokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chatbot_tokens_used_total",
			Help:      "AI tokens consumed, by direction",
		}, []string{"direction"}),
		AIRequestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Latency of upstream AI completions",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		AIRequestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_request_errors_total",
			Help:      "Upstream AI completion failures",
		}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Notifications published to the broker",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Notification publish failures",
		}),
	}

	reg.MustRegister(
		m.Assignments,
		m.AssignmentFailures,
		m.QuotaDenials,
		m.TokensUsed,
		m.AIRequestLatency,
		m.AIRequestErrors,
		m.NotificationsPublished,
		m.NotificationsFailed,
	)
	return m
}
