// Package metrics registers the Prometheus metrics shared across services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Redemptions       *prometheus.CounterVec
	CodesIssued       prometheus.Counter
	PrincipalsCreated prometheus.Counter
	AccessDenials     *prometheus.CounterVec
	RateLimitChecks   *prometheus.CounterVec
	RateLimitFailOpen prometheus.Counter
	WebhookDuration   prometheus.Histogram
	DeferredReplies   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Redemptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "askgate_code_redemptions_total",
			Help: "Verification code redemption attempts by outcome.",
		}, []string{"outcome"}),
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "askgate_codes_issued_total",
			Help: "Total verification codes issued.",
		}),
		PrincipalsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "askgate_principals_created_total",
			Help: "Total principal profiles created through onboarding.",
		}),
		AccessDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "askgate_access_denials_total",
			Help: "Access decisions that denied a request, by reason class.",
		}, []string{"reason"}),
		RateLimitChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "askgate_ratelimit_checks_total",
			Help: "Rate limit checks by outcome.",
		}, []string{"outcome"}),
		RateLimitFailOpen: promauto.NewCounter(prometheus.CounterOpts{
			Name: "askgate_ratelimit_fail_open_total",
			Help: "Rate limit checks that failed open because the store was unavailable.",
		}),
		WebhookDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "askgate_webhook_duration_seconds",
			Help:    "End-to-end webhook handling latency.",
			Buckets: prometheus.DefBuckets,
		}),
		DeferredReplies: promauto.NewCounter(prometheus.CounterOpts{
			Name: "askgate_deferred_replies_total",
			Help: "Webhook replies deferred because the answer timed out.",
		}),
	}
}
