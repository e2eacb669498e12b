package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/crewhall/crewhall/pkg/auth"
	"github.com/crewhall/crewhall/pkg/contextkeys"
	"github.com/crewhall/crewhall/pkg/httputil"
	"github.com/crewhall/crewhall/pkg/observability"
)

// AuthMiddleware authenticates API key credentials and attaches the
// resolved caller identity to the request context.
type AuthMiddleware struct {
	authenticator *auth.Authenticator
	// optional allows requests without a credential to continue
	// unauthenticated; downstream guards then decide what an
	// anonymous caller may do.
	optional bool
	logger   *logrus.Logger
	metrics  *observability.Metrics
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator *auth.Authenticator, optional bool, logger *logrus.Logger, metrics *observability.Metrics) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		optional:      optional,
		logger:        logger,
		metrics:       metrics,
	}
}

// Handler wraps an HTTP handler with API key authentication.
// Accepted credential forms: "Authorization: Bearer cw_live_..." and
// "X-API-Key: cw_live_...".
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, authErr := auth.ExtractCredential(r.Header.Get("Authorization"), r.Header.Get("X-API-Key"))
		if authErr != nil {
			if m.optional && authErr.Reason == auth.ReasonMissingCredential {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, authErr)
			return
		}

		caller, err := m.authenticator.Authenticate(r.Context(), key, httputil.ClientIP(r))
		if err != nil {
			if authErr, ok := auth.IsAuthError(err); ok {
				m.deny(w, authErr)
				return
			}
			// Unknown failure still denies: authentication fails closed.
			m.logger.WithError(err).Error("authentication failed")
			httputil.WriteUnauthorized(w, auth.ReasonInternalError, "authentication unavailable")
			return
		}

		ctx := contextkeys.WithCaller(r.Context(), caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) deny(w http.ResponseWriter, authErr *auth.AuthError) {
	if m.metrics != nil {
		m.metrics.AuthFailuresTotal.WithLabelValues(authErr.Reason).Inc()
	}
	httputil.WriteUnauthorized(w, authErr.Reason, authErr.Message)
}

// RequireRole creates a guard that checks the caller's role against the
// total order VIEWER < USER < ADMIN < SUPER_ADMIN.
func RequireRole(required auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := contextkeys.Caller(r.Context())
			if caller == nil {
				httputil.WriteUnauthorized(w, auth.ReasonMissingCredential, "authentication required")
				return
			}
			if !auth.HasRole(caller.Role, required) {
				httputil.WriteForbidden(w, "insufficient role", required, caller.Role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireScope creates a guard for API key scopes. Callers that did not
// authenticate with an API key pass through untouched; key-authenticated
// callers need the exact scope or the admin wildcard.
func RequireScope(required auth.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := contextkeys.Caller(r.Context())
			if caller == nil || caller.APIKey == nil {
				next.ServeHTTP(w, r)
				return
			}
			if !auth.HasScope(caller.APIKey.Scopes, required) {
				httputil.WriteForbidden(w, "insufficient scope",
					[]auth.Scope{required}, caller.APIKey.Scopes)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
