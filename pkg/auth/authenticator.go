package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/crewhall/crewhall/pkg/async"
)

// Authentication failure reasons. Every 401 carries exactly one of these.
const (
	ReasonMissingCredential = "missing_credential"
	ReasonMalformedKey      = "malformed_key"
	ReasonKeyNotFound       = "key_not_found"
	ReasonKeyRevoked        = "key_revoked"
	ReasonKeyExpired        = "key_expired"
	ReasonIPNotWhitelisted  = "ip_not_whitelisted"
	ReasonInternalError     = "internal_error"
)

// AuthError is an authentication failure with a machine-readable reason
type AuthError struct {
	Reason  string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// IsAuthError checks whether an error is an authentication failure
func IsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

const (
	keyCacheSize = 4096
	// keyCacheTTL bounds how long a revocation can go unnoticed by a
	// warm cache entry.
	keyCacheTTL = 30 * time.Second
)

// UserResolver resolves the identity that owns an API key
type UserResolver interface {
	ResolveUser(ctx context.Context, userID string) (*Identity, error)
}

// Authenticator validates API key credentials and resolves the caller
// identity and scopes.
type Authenticator struct {
	store  KeyStore
	users  UserResolver
	cache  *expirable.LRU[string, *APIKey]
	logger *logrus.Logger
}

// NewAuthenticator creates a new Authenticator
func NewAuthenticator(store KeyStore, users UserResolver, logger *logrus.Logger) *Authenticator {
	return &Authenticator{
		store:  store,
		users:  users,
		cache:  expirable.NewLRU[string, *APIKey](keyCacheSize, nil, keyCacheTTL),
		logger: logger,
	}
}

// ExtractCredential pulls the API key out of request headers. Both
// "Authorization: Bearer cw_live_..." and "X-API-Key: cw_live_..." are
// accepted; Authorization wins when both are present.
func ExtractCredential(authorization, xAPIKey string) (string, *AuthError) {
	if authorization != "" {
		parts := strings.SplitN(authorization, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", &AuthError{Reason: ReasonMalformedKey, Message: "invalid authorization header format"}
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if xAPIKey != "" {
		return strings.TrimSpace(xAPIKey), nil
	}
	return "", &AuthError{Reason: ReasonMissingCredential, Message: "missing credential"}
}

// Authenticate validates a plaintext API key and returns the resolved
// caller identity with the key attached. Internal store failures deny:
// infrastructure trouble must never silently grant access.
func (a *Authenticator) Authenticate(ctx context.Context, key, remoteIP string) (*Identity, error) {
	if err := ValidKeyFormat(key); err != nil {
		return nil, &AuthError{Reason: ReasonMalformedKey, Message: "malformed api key"}
	}

	keyHash := HashKey(key)

	record, ok := a.cache.Get(keyHash)
	if !ok {
		var err error
		record, err = a.store.GetKeyByHash(ctx, keyHash)
		if err == ErrKeyNotFound {
			return nil, &AuthError{Reason: ReasonKeyNotFound, Message: "unknown api key"}
		}
		if err != nil {
			a.logger.WithError(err).Error("api key lookup failed")
			return nil, &AuthError{Reason: ReasonInternalError, Message: "authentication unavailable"}
		}
		a.cache.Add(keyHash, record)
	}

	now := time.Now()
	switch {
	case record.Revoked():
		return nil, &AuthError{Reason: ReasonKeyRevoked, Message: "api key revoked"}
	case record.Expired(now):
		return nil, &AuthError{Reason: ReasonKeyExpired, Message: "api key expired"}
	case !record.AllowsIP(remoteIP):
		return nil, &AuthError{Reason: ReasonIPNotWhitelisted, Message: "ip address not whitelisted"}
	}

	identity, err := a.users.ResolveUser(ctx, record.UserID)
	if err != nil {
		a.logger.WithError(err).WithField("key_prefix", record.KeyPrefix).
			Error("failed to resolve api key owner")
		return nil, &AuthError{Reason: ReasonInternalError, Message: "authentication unavailable"}
	}
	identity.APIKey = record

	// Usage accounting is best effort and never blocks the response.
	keyID := record.ID
	async.SafeGo(context.WithoutCancel(ctx), 5*time.Second, "api key usage bump", func(ctx context.Context) error {
		return a.store.RecordKeyUsage(ctx, keyID)
	})

	return identity, nil
}

// Issue creates and persists a new API key for a user. The plaintext key
// is returned exactly once and never logged.
func (a *Authenticator) Issue(ctx context.Context, id, userID, name string, scopes []Scope, ipWhitelist []string, rateLimit *int, expiresAt *time.Time) (*APIKey, string, error) {
	generated, err := GenerateKey()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate key: %w", err)
	}

	record := &APIKey{
		ID:          id,
		UserID:      userID,
		KeyHash:     generated.KeyHash,
		KeyPrefix:   generated.KeyPrefix,
		Name:        name,
		Scopes:      scopes,
		IPWhitelist: ipWhitelist,
		RateLimit:   rateLimit,
		ExpiresAt:   expiresAt,
	}
	if err := a.store.CreateKey(ctx, record); err != nil {
		return nil, "", err
	}

	return record, generated.Key, nil
}

// Revoke revokes a key and drops it from the lookup cache
func (a *Authenticator) Revoke(ctx context.Context, key *APIKey) error {
	if err := a.store.RevokeKey(ctx, key.ID); err != nil {
		return err
	}
	a.cache.Remove(key.KeyHash)
	return nil
}
