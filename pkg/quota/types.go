package quota

import (
	"fmt"

	"github.com/crewhall/crewhall/pkg/auth"
)

// ResourceKind names a governed resource count
type ResourceKind string

const (
	ResourceActiveSessions ResourceKind = "active_sessions"
	ResourceTotalSessions  ResourceKind = "total_sessions"
	ResourceActiveAgents   ResourceKind = "active_agents"
	ResourceTotalAgents    ResourceKind = "total_agents"
	ResourcePrompts        ResourceKind = "prompts"
	ResourceSnippets       ResourceKind = "snippets"
	ResourceFolders        ResourceKind = "folders"
)

// Quota holds the per-role or per-user ceilings. The meaning of a zero
// ceiling depends on the role: unlimited for SUPER_ADMIN, forbidden for
// everyone else.
type Quota struct {
	MaxActiveSessions int   `json:"max_active_sessions"`
	MaxTotalSessions  int   `json:"max_total_sessions"`
	MaxActiveAgents   int   `json:"max_active_agents"`
	MaxTotalAgents    int   `json:"max_total_agents"`
	MaxPromptsLibrary int   `json:"max_prompts_library"`
	MaxSnippets       int   `json:"max_snippets"`
	MaxFolders        int   `json:"max_folders"`
	APIRateLimit      int   `json:"api_rate_limit"`
	AgentRunsPerHour  int   `json:"agent_runs_per_hour"`
	MaxStorageBytes   int64 `json:"max_storage_bytes"`
}

// Usage is a snapshot of a user's current resource counts, computed
// fresh per request and never cached.
type Usage struct {
	ActiveSessions int `json:"active_sessions"`
	TotalSessions  int `json:"total_sessions"`
	ActiveAgents   int `json:"active_agents"`
	TotalAgents    int `json:"total_agents"`
	Prompts        int `json:"prompts"`
	Snippets       int `json:"snippets"`
	Folders        int `json:"folders"`
}

// CheckResult is the outcome of a quota check
type CheckResult struct {
	Allowed   bool         `json:"allowed"`
	Resource  ResourceKind `json:"resource"`
	Current   int          `json:"current"`
	Max       int          `json:"max"`
	Remaining int          `json:"remaining"`
}

// ExceededError signals a denied quota check
type ExceededError struct {
	Resource ResourceKind
	Current  int
	Max      int
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: %d/%d", e.Resource, e.Current, e.Max)
}

// IsExceeded checks whether an error is a quota denial
func IsExceeded(err error) (*ExceededError, bool) {
	exceeded, ok := err.(*ExceededError)
	return exceeded, ok
}

// DefaultAPIRateLimit applies when no quota row or profile resolves
const DefaultAPIRateLimit = 60

// roleProfiles are the hardcoded fallback ceilings per role, used when
// neither a user override row nor a role default row exists.
var roleProfiles = map[auth.Role]Quota{
	auth.RoleSuperAdmin: {
		// Zero means unlimited for SUPER_ADMIN only.
		APIRateLimit: 1000,
	},
	auth.RoleAdmin: {
		MaxActiveSessions: 50,
		MaxTotalSessions:  500,
		MaxActiveAgents:   20,
		MaxTotalAgents:    200,
		MaxPromptsLibrary: 500,
		MaxSnippets:       500,
		MaxFolders:        100,
		APIRateLimit:      300,
		AgentRunsPerHour:  100,
		MaxStorageBytes:   10 * 1024 * 1024 * 1024,
	},
	auth.RoleUser: {
		MaxActiveSessions: 10,
		MaxTotalSessions:  100,
		MaxActiveAgents:   5,
		MaxTotalAgents:    50,
		MaxPromptsLibrary: 100,
		MaxSnippets:       100,
		MaxFolders:        50,
		APIRateLimit:      DefaultAPIRateLimit,
		AgentRunsPerHour:  20,
		MaxStorageBytes:   1 * 1024 * 1024 * 1024,
	},
	auth.RoleViewer: {
		// Zero means forbidden for VIEWER: read-only callers create
		// nothing, but still get API reads.
		APIRateLimit: 30,
	},
}

// ProfileForRole returns the hardcoded quota profile for a role.
// Unknown roles get the VIEWER profile.
func ProfileForRole(role auth.Role) Quota {
	if profile, ok := roleProfiles[role]; ok {
		return profile
	}
	return roleProfiles[auth.RoleViewer]
}
