// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	VerificationsStarted prometheus.Counter
	VerificationsGranted prometheus.Counter
	VerificationsDenied  prometheus.Counter
	VerificationsFailed  prometheus.Counter
	InviteLinksIssued    prometheus.Counter
	InviteLinksRevoked   prometheus.Counter
	JoinRequestsApproved prometheus.Counter
	JoinRequestsDeclined prometheus.Counter
	RevocationEvents     prometheus.Counter
	MembersRemoved       prometheus.Counter

	// Histograms (seconds)
	CallbackDuration prometheus.Observer

	// Gauges
	WebhookRegisteredGauge *prometheus.GaugeVec // 1=registered per provider
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		VerificationsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "gate_verifications_started_total", Help: "Number of verification sessions opened"})
		VerificationsGranted = promauto.NewCounter(prometheus.CounterOpts{Name: "gate_verifications_granted_total", Help: "Number of verifications that ended with an invite grant"})
		VerificationsDenied = promauto.NewCounter(prometheus.CounterOpts{Name: "gate_verifications_denied_total", Help: "Number of verifications where no paid subscription was found"})
		VerificationsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "gate_verifications_failed_total", Help: "Number of verifications that failed at code exchange or status check"})
		InviteLinksIssued = promauto.NewCounter(prometheus.CounterOpts{Name: "gate_invite_links_issued_total", Help: "Number of single-use invite links minted"})
		InviteLinksRevoked = promauto.NewCounter(prometheus.CounterOpts{Name: "gate_invite_links_revoked_total", Help: "Number of invite links revoked"})
		JoinRequestsApproved = promauto.NewCounter(prometheus.CounterOpts{Name: "gate_join_requests_approved_total", Help: "Number of group join requests approved"})
		JoinRequestsDeclined = promauto.NewCounter(prometheus.CounterOpts{Name: "gate_join_requests_declined_total", Help: "Number of group join requests declined"})
		RevocationEvents = promauto.NewCounter(prometheus.CounterOpts{Name: "gate_revocation_events_total", Help: "Number of subscription-ended events processed"})
		MembersRemoved = promauto.NewCounter(prometheus.CounterOpts{Name: "gate_members_removed_total", Help: "Number of members removed from the group after a revocation"})
		CallbackDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "gate_oauth_callback_duration_seconds", Help: "OAuth callback handling duration seconds", Buckets: prometheus.DefBuckets})
		WebhookRegisteredGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "gate_webhook_registered", Help: "Unsubscribe webhook registered=1 per provider"}, []string{"provider"})
	})
}

// SetWebhookRegistered records whether a provider's unsubscribe webhook is in place.
func SetWebhookRegistered(provider string, ok bool) {
	if WebhookRegisteredGauge == nil {
		return
	}
	v := 0.0
	if ok {
		v = 1
	}
	WebhookRegisteredGauge.WithLabelValues(provider).Set(v)
}

// Inc increments a counter when metrics are initialized; no-op otherwise so
// library code stays testable without Init.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
