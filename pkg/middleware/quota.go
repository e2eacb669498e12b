package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/crewhall/crewhall/pkg/auth"
	"github.com/crewhall/crewhall/pkg/contextkeys"
	"github.com/crewhall/crewhall/pkg/httputil"
	"github.com/crewhall/crewhall/pkg/observability"
	"github.com/crewhall/crewhall/pkg/quota"
)

// QuotaMiddleware enforces per-resource usage ceilings on create routes
type QuotaMiddleware struct {
	service quota.Service
	logger  *logrus.Logger
	metrics *observability.Metrics
}

// NewQuotaMiddleware creates a new QuotaMiddleware
func NewQuotaMiddleware(service quota.Service, logger *logrus.Logger, metrics *observability.Metrics) *QuotaMiddleware {
	return &QuotaMiddleware{service: service, logger: logger, metrics: metrics}
}

// EnforceQuota guards a create route for one resource kind.
//
// SUPER_ADMIN and unauthenticated callers bypass the check (anonymous
// creates are rejected elsewhere; quota is not an authentication layer).
// Denials return 429 with the current count and ceiling. Internal
// evaluation failures fail open: quota is a soft ceiling and
// infrastructure trouble must not cause outages for legitimate traffic.
func (m *QuotaMiddleware) EnforceQuota(kind quota.ResourceKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := contextkeys.Caller(r.Context())
			if caller == nil || caller.Role == auth.RoleSuperAdmin {
				next.ServeHTTP(w, r)
				return
			}

			result, err := m.service.CheckQuota(r.Context(), caller.ID, caller.Role, kind)
			if err != nil {
				m.logger.WithError(err).WithFields(logrus.Fields{
					"user_id":  caller.ID,
					"resource": kind,
				}).Error("quota evaluation failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				if m.metrics != nil {
					m.metrics.QuotaDenialsTotal.WithLabelValues(string(kind)).Inc()
				}
				httputil.WriteQuotaExceeded(w, string(result.Resource), result.Current, result.Max)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
