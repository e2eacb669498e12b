package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crewhall/crewhall/pkg/contextkeys"
	"github.com/crewhall/crewhall/pkg/httputil"
	"github.com/crewhall/crewhall/pkg/observability"
	"github.com/crewhall/crewhall/pkg/quota"
	"github.com/crewhall/crewhall/pkg/ratelimit"
)

// anonymousIdentifier buckets every unidentifiable caller together
const anonymousIdentifier = "anonymous"

// RateLimitMiddleware throttles requests per caller with the layered
// sliding-window limiter.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	quotas  quota.Service
	window  time.Duration
	logger  *logrus.Logger
	metrics *observability.Metrics
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware. window is
// the bucket width, normally one minute to match the req/min quota
// ceilings.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, quotas quota.Service, window time.Duration, logger *logrus.Logger, metrics *observability.Metrics) *RateLimitMiddleware {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimitMiddleware{
		limiter: limiter,
		quotas:  quotas,
		window:  window,
		logger:  logger,
		metrics: metrics,
	}
}

// PerUserRateLimit guards a route with a per-caller request limit.
//
// Identifier precedence: caller id, client IP, a shared anonymous
// bucket. The limit comes from customLimit when given, else the API
// key's override, else the caller's quota apiRateLimit, else 60.
// Internal failures while resolving the limit fail open onto the
// default.
func (m *RateLimitMiddleware) PerUserRateLimit(customLimit *int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := contextkeys.Caller(r.Context())

			identifier, kind := anonymousIdentifier, "anonymous"
			switch {
			case caller != nil && caller.ID != "":
				identifier, kind = "user:"+caller.ID, "user"
			default:
				if ip := httputil.ClientIP(r); ip != "" {
					identifier, kind = "ip:"+ip, "ip"
				}
			}

			limit := m.resolveLimit(r, customLimit)

			decision := m.limiter.Check(r.Context(), identifier, limit, m.window)

			httputil.SetRateLimitHeaders(w, decision.Limit, decision.Remaining, decision.Reset)
			if !decision.Allowed {
				if m.metrics != nil {
					m.metrics.RateLimitDenialsTotal.WithLabelValues(kind).Inc()
				}
				httputil.WriteRateLimited(w, decision.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *RateLimitMiddleware) resolveLimit(r *http.Request, customLimit *int) int {
	if customLimit != nil && *customLimit > 0 {
		return *customLimit
	}

	caller := contextkeys.Caller(r.Context())
	if caller == nil {
		return quota.DefaultAPIRateLimit
	}
	if caller.APIKey != nil && caller.APIKey.RateLimit != nil && *caller.APIKey.RateLimit > 0 {
		return *caller.APIKey.RateLimit
	}

	userQuota, err := m.quotas.GetUserQuota(r.Context(), caller.ID, caller.Role)
	if err != nil {
		m.logger.WithError(err).WithField("user_id", caller.ID).
			Warn("quota lookup failed, using default rate limit")
		return quota.DefaultAPIRateLimit
	}
	if userQuota.APIRateLimit <= 0 {
		return quota.DefaultAPIRateLimit
	}
	return userQuota.APIRateLimit
}
