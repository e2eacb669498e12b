package auth

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// fakeKeyStore is an in-memory KeyStore keyed by hash
type fakeKeyStore struct {
	mu      sync.Mutex
	keys    map[string]*APIKey
	err     error
	usageOf map[string]int
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: make(map[string]*APIKey), usageOf: make(map[string]int)}
}

func (s *fakeKeyStore) CreateKey(_ context.Context, key *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	key.CreatedAt = time.Now()
	s.keys[key.KeyHash] = key
	return nil
}

func (s *fakeKeyStore) GetKeyByHash(_ context.Context, keyHash string) (*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	key, ok := s.keys[keyHash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

func (s *fakeKeyStore) ListKeys(_ context.Context, userID string) ([]*APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []*APIKey
	for _, key := range s.keys {
		if key.UserID == userID {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *fakeKeyStore) RevokeKey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.keys {
		if key.ID == id {
			now := time.Now()
			key.RevokedAt = &now
			return nil
		}
	}
	return ErrKeyNotFound
}

func (s *fakeKeyStore) RecordKeyUsage(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usageOf[id]++
	return nil
}

func (s *fakeKeyStore) DeleteExpiredKeys(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeUserResolver struct {
	identities map[string]*Identity
	err        error
}

func (r *fakeUserResolver) ResolveUser(_ context.Context, userID string) (*Identity, error) {
	if r.err != nil {
		return nil, r.err
	}
	identity, ok := r.identities[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	// Copy so identity mutation in one request does not leak into the next
	clone := *identity
	return &clone, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupAuthenticator(t *testing.T) (*Authenticator, *fakeKeyStore, string, *APIKey) {
	t.Helper()

	store := newFakeKeyStore()
	users := &fakeUserResolver{identities: map[string]*Identity{
		"u1": {ID: "u1", Email: "u1@example.com", Role: RoleUser},
	}}
	authenticator := NewAuthenticator(store, users, testLogger())

	record, plaintext, err := authenticator.Issue(context.Background(), "key-1", "u1", "ci key",
		[]Scope{ScopeSessions}, nil, nil, nil)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	return authenticator, store, plaintext, record
}

func TestExtractCredential(t *testing.T) {
	key := KeyPrefix + strings.Repeat("ab", 32)

	tests := []struct {
		name          string
		authorization string
		xAPIKey       string
		want          string
		wantReason    string
	}{
		{"bearer header", "Bearer " + key, "", key, ""},
		{"lowercase bearer", "bearer " + key, "", key, ""},
		{"x-api-key header", "", key, key, ""},
		{"authorization wins over x-api-key", "Bearer " + key, "other", key, ""},
		{"basic auth rejected", "Basic dXNlcjpwYXNz", "", "", ReasonMalformedKey},
		{"bare token rejected", key, "", "", ReasonMalformedKey},
		{"nothing", "", "", "", ReasonMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, authErr := ExtractCredential(tt.authorization, tt.xAPIKey)
			if tt.wantReason == "" {
				if authErr != nil {
					t.Fatalf("unexpected error: %v", authErr)
				}
				if got != tt.want {
					t.Errorf("credential = %q, want %q", got, tt.want)
				}
				return
			}
			if authErr == nil {
				t.Fatal("expected an error")
			}
			if authErr.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", authErr.Reason, tt.wantReason)
			}
		})
	}
}

func TestAuthenticate_Success(t *testing.T) {
	authenticator, _, plaintext, record := setupAuthenticator(t)

	identity, err := authenticator.Authenticate(context.Background(), plaintext, "203.0.113.9")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if identity.ID != "u1" {
		t.Errorf("identity.ID = %q, want u1", identity.ID)
	}
	if identity.APIKey == nil || identity.APIKey.ID != record.ID {
		t.Error("resolved identity should carry the authenticated key")
	}
}

func TestAuthenticate_MalformedKey(t *testing.T) {
	authenticator, _, _, _ := setupAuthenticator(t)

	_, err := authenticator.Authenticate(context.Background(), "not-a-key", "203.0.113.9")
	assertAuthReason(t, err, ReasonMalformedKey)
}

func TestAuthenticate_UnknownKey(t *testing.T) {
	authenticator, _, _, _ := setupAuthenticator(t)

	unknown := KeyPrefix + strings.Repeat("ff", 32)
	_, err := authenticator.Authenticate(context.Background(), unknown, "203.0.113.9")
	assertAuthReason(t, err, ReasonKeyNotFound)
}

func TestAuthenticate_RevokedKey(t *testing.T) {
	authenticator, _, plaintext, record := setupAuthenticator(t)

	if err := authenticator.Revoke(context.Background(), record); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}
	_, err := authenticator.Authenticate(context.Background(), plaintext, "203.0.113.9")
	assertAuthReason(t, err, ReasonKeyRevoked)
}

func TestAuthenticate_ExpiredKey(t *testing.T) {
	authenticator, _, plaintext, record := setupAuthenticator(t)

	past := time.Now().Add(-time.Hour)
	record.ExpiresAt = &past

	_, err := authenticator.Authenticate(context.Background(), plaintext, "203.0.113.9")
	assertAuthReason(t, err, ReasonKeyExpired)
}

func TestAuthenticate_IPNotWhitelisted(t *testing.T) {
	authenticator, _, plaintext, record := setupAuthenticator(t)
	record.IPWhitelist = []string{"10.0.0.1"}

	_, err := authenticator.Authenticate(context.Background(), plaintext, "203.0.113.9")
	assertAuthReason(t, err, ReasonIPNotWhitelisted)

	identity, err := authenticator.Authenticate(context.Background(), plaintext, "10.0.0.1")
	if err != nil {
		t.Fatalf("whitelisted address should authenticate: %v", err)
	}
	if identity == nil {
		t.Fatal("expected an identity")
	}
}

func TestAuthenticate_StoreFailureDenies(t *testing.T) {
	store := newFakeKeyStore()
	store.err = errors.New("connection refused")
	users := &fakeUserResolver{identities: map[string]*Identity{}}
	authenticator := NewAuthenticator(store, users, testLogger())

	key := KeyPrefix + strings.Repeat("ab", 32)
	_, err := authenticator.Authenticate(context.Background(), key, "203.0.113.9")
	assertAuthReason(t, err, ReasonInternalError)
}

func TestAuthenticate_UserResolveFailureDenies(t *testing.T) {
	authenticator, _, plaintext, _ := setupAuthenticator(t)
	authenticator.users = &fakeUserResolver{err: errors.New("users table unavailable")}

	_, err := authenticator.Authenticate(context.Background(), plaintext, "203.0.113.9")
	assertAuthReason(t, err, ReasonInternalError)
}

func TestAuthenticate_SecondLookupServedFromCache(t *testing.T) {
	authenticator, store, plaintext, _ := setupAuthenticator(t)

	if _, err := authenticator.Authenticate(context.Background(), plaintext, "203.0.113.9"); err != nil {
		t.Fatalf("first Authenticate() error: %v", err)
	}

	// Break the store; a warm cache entry must keep working.
	store.mu.Lock()
	store.err = errors.New("store down")
	store.mu.Unlock()

	if _, err := authenticator.Authenticate(context.Background(), plaintext, "203.0.113.9"); err != nil {
		t.Fatalf("cached Authenticate() error: %v", err)
	}
}

func TestIssue_PlaintextNeverStored(t *testing.T) {
	_, store, plaintext, record := setupAuthenticator(t)

	if record.KeyHash == plaintext {
		t.Error("stored hash must differ from the plaintext key")
	}
	stored, err := store.GetKeyByHash(context.Background(), HashKey(plaintext))
	if err != nil {
		t.Fatalf("GetKeyByHash() error: %v", err)
	}
	if strings.Contains(stored.KeyHash, plaintext) {
		t.Error("plaintext key leaked into the stored record")
	}
	if !strings.HasPrefix(record.KeyPrefix, KeyPrefix) {
		t.Errorf("display prefix %q missing fixed prefix", record.KeyPrefix)
	}
}

func assertAuthReason(t *testing.T, err error, wantReason string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an authentication error")
	}
	authErr, ok := IsAuthError(err)
	if !ok {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if authErr.Reason != wantReason {
		t.Errorf("reason = %q, want %q", authErr.Reason, wantReason)
	}
}
