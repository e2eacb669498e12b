package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/crewhall/crewhall/pkg/auth"
	"github.com/crewhall/crewhall/pkg/quota"
	"github.com/crewhall/crewhall/pkg/ratelimit"
)

func setupRateLimitMiddleware(service quota.Service) *RateLimitMiddleware {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), nil, time.Minute, testLogger())
	return NewRateLimitMiddleware(limiter, service, time.Minute, testLogger(), nil)
}

func TestPerUserRateLimit_HeadersAlwaysSet(t *testing.T) {
	middleware := setupRateLimitMiddleware(&fakeQuotaService{quota: &quota.Quota{APIRateLimit: 5}})

	next := &okHandler{}
	handler := middleware.PerUserRateLimit(nil)(next)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(&auth.Identity{ID: "u1", Role: auth.RoleUser}, http.MethodGet, "/api/me"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset should be set")
	}
}

func TestPerUserRateLimit_DeniesOverLimit(t *testing.T) {
	middleware := setupRateLimitMiddleware(&fakeQuotaService{quota: &quota.Quota{APIRateLimit: 2}})
	caller := &auth.Identity{ID: "u1", Role: auth.RoleUser}
	handler := middleware.PerUserRateLimit(nil)(&okHandler{})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs(caller, http.MethodGet, "/api/me"))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(caller, http.MethodGet, "/api/me"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("Retry-After = %q, want an integer within (0, 60]", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestPerUserRateLimit_CallersIsolated(t *testing.T) {
	middleware := setupRateLimitMiddleware(&fakeQuotaService{quota: &quota.Quota{APIRateLimit: 1}})
	handler := middleware.PerUserRateLimit(nil)(&okHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(&auth.Identity{ID: "u1", Role: auth.RoleUser}, http.MethodGet, "/api/me"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(&auth.Identity{ID: "u1", Role: auth.RoleUser}, http.MethodGet, "/api/me"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatal("first caller should be exhausted")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(&auth.Identity{ID: "u2", Role: auth.RoleUser}, http.MethodGet, "/api/me"))
	if rec.Code != http.StatusOK {
		t.Error("a different caller must have a fresh window")
	}
}

func TestPerUserRateLimit_AnonymousBucketsByIP(t *testing.T) {
	middleware := setupRateLimitMiddleware(&fakeQuotaService{})
	handler := middleware.PerUserRateLimit(nil)(&okHandler{})

	r := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	r.RemoteAddr = "198.51.100.7:52100"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != strconv.Itoa(quota.DefaultAPIRateLimit) {
		t.Errorf("anonymous limit = %q, want the default", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestPerUserRateLimit_CustomLimitWins(t *testing.T) {
	middleware := setupRateLimitMiddleware(&fakeQuotaService{quota: &quota.Quota{APIRateLimit: 100}})
	custom := 3
	handler := middleware.PerUserRateLimit(&custom)(&okHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(&auth.Identity{ID: "u1", Role: auth.RoleUser}, http.MethodGet, "/api/expensive"))

	if rec.Header().Get("X-RateLimit-Limit") != "3" {
		t.Errorf("limit = %q, want the route override 3", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestPerUserRateLimit_KeyOverrideBeatsQuota(t *testing.T) {
	middleware := setupRateLimitMiddleware(&fakeQuotaService{quota: &quota.Quota{APIRateLimit: 100}})
	override := 7
	caller := &auth.Identity{ID: "u1", Role: auth.RoleUser, APIKey: &auth.APIKey{ID: "k1", RateLimit: &override}}
	handler := middleware.PerUserRateLimit(nil)(&okHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(caller, http.MethodGet, "/api/me"))

	if rec.Header().Get("X-RateLimit-Limit") != "7" {
		t.Errorf("limit = %q, want the key override 7", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestPerUserRateLimit_QuotaLookupFailureFallsBack(t *testing.T) {
	middleware := setupRateLimitMiddleware(&fakeQuotaService{quotaErr: errors.New("quota store down")})
	handler := middleware.PerUserRateLimit(nil)(&okHandler{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(&auth.Identity{ID: "u1", Role: auth.RoleUser}, http.MethodGet, "/api/me"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: limit resolution fails open", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != strconv.Itoa(quota.DefaultAPIRateLimit) {
		t.Errorf("limit = %q, want the default", rec.Header().Get("X-RateLimit-Limit"))
	}
}
