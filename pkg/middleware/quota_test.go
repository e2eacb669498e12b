package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crewhall/crewhall/pkg/auth"
	"github.com/crewhall/crewhall/pkg/quota"
)

func TestEnforceQuota_AllowedPasses(t *testing.T) {
	service := &fakeQuotaService{result: &quota.CheckResult{Allowed: true, Current: 3, Max: 10, Remaining: 7}}
	middleware := NewQuotaMiddleware(service, testLogger(), nil)

	next := &okHandler{}
	handler := middleware.EnforceQuota(quota.ResourceActiveSessions)(next)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(&auth.Identity{ID: "u1", Role: auth.RoleUser}, http.MethodPost, "/api/sessions"))

	if rec.Code != http.StatusOK || !next.called {
		t.Errorf("status = %d, handler called = %v", rec.Code, next.called)
	}
}

func TestEnforceQuota_DenialWritesCeiling(t *testing.T) {
	service := &fakeQuotaService{result: &quota.CheckResult{Allowed: false, Current: 10, Max: 10}}
	middleware := NewQuotaMiddleware(service, testLogger(), nil)

	next := &okHandler{}
	handler := middleware.EnforceQuota(quota.ResourceActiveSessions)(next)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(&auth.Identity{ID: "u1", Role: auth.RoleUser}, http.MethodPost, "/api/sessions"))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if next.called {
		t.Error("handler must not run past a denied quota")
	}
	body := decodeBody(t, rec)
	if body["resource"] != string(quota.ResourceActiveSessions) {
		t.Errorf("resource = %v", body["resource"])
	}
	if body["current"] != float64(10) || body["max"] != float64(10) {
		t.Errorf("body = %v, want current 10 and max 10", body)
	}
}

func TestEnforceQuota_FailsOpenOnError(t *testing.T) {
	service := &fakeQuotaService{checkErr: errors.New("usage query timed out")}
	middleware := NewQuotaMiddleware(service, testLogger(), nil)

	next := &okHandler{}
	handler := middleware.EnforceQuota(quota.ResourceActiveSessions)(next)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(&auth.Identity{ID: "u1", Role: auth.RoleUser}, http.MethodPost, "/api/sessions"))

	if rec.Code != http.StatusOK || !next.called {
		t.Error("evaluation failure must let the request through")
	}
}

func TestEnforceQuota_SuperAdminBypasses(t *testing.T) {
	// The service would deny; SUPER_ADMIN must never reach it.
	service := &fakeQuotaService{result: &quota.CheckResult{Allowed: false}}
	middleware := NewQuotaMiddleware(service, testLogger(), nil)

	next := &okHandler{}
	handler := middleware.EnforceQuota(quota.ResourceActiveSessions)(next)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(&auth.Identity{ID: "root", Role: auth.RoleSuperAdmin}, http.MethodPost, "/api/sessions"))

	if rec.Code != http.StatusOK || !next.called {
		t.Error("SUPER_ADMIN must bypass quota enforcement")
	}
}

func TestEnforceQuota_AnonymousBypasses(t *testing.T) {
	service := &fakeQuotaService{result: &quota.CheckResult{Allowed: false}}
	middleware := NewQuotaMiddleware(service, testLogger(), nil)

	next := &okHandler{}
	handler := middleware.EnforceQuota(quota.ResourceActiveSessions)(next)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs(nil, http.MethodPost, "/api/sessions"))

	if rec.Code != http.StatusOK || !next.called {
		t.Error("anonymous callers are rejected by auth guards, not quota")
	}
}
