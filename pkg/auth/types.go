package auth

import "time"

// Identity is the immutable caller context resolved once per request and
// threaded explicitly through every evaluator and guard. A nil *Identity
// means the request is unauthenticated.
type Identity struct {
	ID     string   `json:"id"`
	Email  string   `json:"email,omitempty"`
	Name   string   `json:"name,omitempty"`
	Groups []string `json:"groups,omitempty"`
	TeamID string   `json:"team_id,omitempty"`
	Role   Role     `json:"role"`

	// APIKey is set when the caller authenticated with an API key
	// rather than an interactive session.
	APIKey *APIKey `json:"-"`
}

// NewIdentity builds a caller identity, resolving the role from a persisted
// role record when present and from group memberships otherwise.
func NewIdentity(id, email, name string, groups []string, persistedRole Role, teamID string) *Identity {
	role := persistedRole
	if !role.Valid() {
		role = RoleFromGroups(groups)
	}
	return &Identity{
		ID:     id,
		Email:  email,
		Name:   name,
		Groups: groups,
		TeamID: teamID,
		Role:   role,
	}
}

// IsSuperAdmin reports whether the caller holds the SUPER_ADMIN role
func (i *Identity) IsSuperAdmin() bool {
	return i != nil && i.Role == RoleSuperAdmin
}

// Scope represents an API key capability
type Scope string

const (
	ScopeSessions Scope = "sessions"
	ScopeAgents   Scope = "agents"
	ScopePrompts  Scope = "prompts"
	ScopeSnippets Scope = "snippets"
	ScopeProjects Scope = "projects"

	// ScopeAdmin grants every other scope
	ScopeAdmin Scope = "admin"
)

// HasScope checks whether a scope set contains the required scope.
// The admin scope is a wildcard.
func HasScope(held []Scope, required Scope) bool {
	for _, s := range held {
		if s == ScopeAdmin || s == required {
			return true
		}
	}
	return false
}

// APIKey represents a persisted API key record. The plaintext key is
// never stored; only the SHA-256 hash and a display prefix survive.
type APIKey struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	KeyHash     string     `json:"-"`
	KeyPrefix   string     `json:"key_prefix"`
	Name        string     `json:"name"`
	Scopes      []Scope    `json:"scopes"`
	IPWhitelist []string   `json:"ip_whitelist,omitempty"`
	RateLimit   *int       `json:"rate_limit,omitempty"`
	UsageCount  int64      `json:"usage_count"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Revoked reports whether the key has been revoked
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// Expired reports whether the key is past its expiry at the given time
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// AllowsIP checks the key's IP whitelist. An empty whitelist allows
// every address.
func (k *APIKey) AllowsIP(ip string) bool {
	if len(k.IPWhitelist) == 0 {
		return true
	}
	for _, allowed := range k.IPWhitelist {
		if allowed == ip {
			return true
		}
	}
	return false
}
