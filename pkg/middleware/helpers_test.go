package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/crewhall/crewhall/pkg/access"
	"github.com/crewhall/crewhall/pkg/auth"
	"github.com/crewhall/crewhall/pkg/contextkeys"
	"github.com/crewhall/crewhall/pkg/quota"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// okHandler records whether the guard let the request through
type okHandler struct {
	called bool
	ctx    context.Context
}

func (h *okHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func requestAs(caller *auth.Identity, method, target string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	if caller != nil {
		r = r.WithContext(contextkeys.WithCaller(r.Context(), caller))
	}
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

// fakeSessionFetcher serves sessions from a map
type fakeSessionFetcher struct {
	sessions map[string]*access.Session
	err      error
}

func (f *fakeSessionFetcher) GetSession(_ context.Context, id string) (*access.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	session, ok := f.sessions[id]
	if !ok {
		return nil, access.ErrSessionNotFound
	}
	return session, nil
}

// fakeTeamResolver grants nothing unless configured
type fakeTeamResolver struct {
	grants map[string]*access.TeamProjectAccess
}

func (f *fakeTeamResolver) CheckTeamProjectAccess(_ context.Context, teamID, projectPath string) (*access.TeamProjectAccess, error) {
	if grant, ok := f.grants[teamID+"|"+projectPath]; ok {
		return grant, nil
	}
	return &access.TeamProjectAccess{}, nil
}

func (f *fakeTeamResolver) GetTeamProjectPaths(_ context.Context, teamID string) ([]string, error) {
	return nil, nil
}

// fakeQuotaService returns canned quota and check results
type fakeQuotaService struct {
	quota    *quota.Quota
	quotaErr error
	result   *quota.CheckResult
	checkErr error
}

func (f *fakeQuotaService) GetUserQuota(_ context.Context, _ string, role auth.Role) (*quota.Quota, error) {
	if f.quotaErr != nil {
		return nil, f.quotaErr
	}
	if f.quota != nil {
		return f.quota, nil
	}
	profile := quota.ProfileForRole(role)
	return &profile, nil
}

func (f *fakeQuotaService) GetUserUsage(_ context.Context, _ string) (*quota.Usage, error) {
	return &quota.Usage{}, nil
}

func (f *fakeQuotaService) CheckQuota(_ context.Context, _ string, _ auth.Role, kind quota.ResourceKind) (*quota.CheckResult, error) {
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	if f.result != nil {
		result := *f.result
		result.Resource = kind
		return &result, nil
	}
	return &quota.CheckResult{Allowed: true, Resource: kind, Remaining: 1}, nil
}
