package access

import (
	"context"
	"fmt"

	"github.com/crewhall/crewhall/pkg/auth"
)

// Access decision reasons, in the order the evaluator tests them
const (
	ReasonAdminRole   = "admin_role"
	ReasonViewerRole  = "viewer_role"
	ReasonOwner       = "owner"
	ReasonLegacy      = "legacy"
	ReasonTeamProject = "team_project"
	ReasonNoAccess    = "no_access"
	ReasonDefaultRead = "default_read"
)

// Session is the slice of a session record the evaluator needs.
// A nil OwnerID marks a legacy session created before ownership existed.
type Session struct {
	ID          string  `json:"id"`
	OwnerID     *string `json:"owner_id,omitempty"`
	ProjectPath string  `json:"project_path"`
}

// Decision is the outcome of an access evaluation
type Decision struct {
	CanAccess bool   `json:"can_access"`
	Level     Level  `json:"access_level,omitempty"`
	Reason    string `json:"reason"`
}

// TeamProjectAccess is a team's grant on one project path
type TeamProjectAccess struct {
	HasAccess bool
	Level     Level
}

// TeamResolver resolves team project assignments. Implemented by
// pkg/teams; substituted with a fake in tests.
type TeamResolver interface {
	CheckTeamProjectAccess(ctx context.Context, teamID, projectPath string) (*TeamProjectAccess, error)
	GetTeamProjectPaths(ctx context.Context, teamID string) ([]string, error)
}

// Evaluator combines ownership, role, and team data into single-resource
// access decisions.
type Evaluator struct {
	teams TeamResolver
}

// NewEvaluator creates an Evaluator
func NewEvaluator(teams TeamResolver) *Evaluator {
	return &Evaluator{teams: teams}
}

// CheckSessionAccess evaluates a caller's access to one session.
// First match wins:
//  1. ADMIN/SUPER_ADMIN: full access
//  2. VIEWER: denied. Terminal access is inherently a mutation, so
//     VIEWER is denied regardless of ownership.
//  3. Owner: full access
//  4. Legacy (unowned) session: read-write for any non-VIEWER
//  5. Team assignment on the session's exact project path: that level
//  6. Denied
func (e *Evaluator) CheckSessionAccess(ctx context.Context, caller *auth.Identity, session *Session) (*Decision, error) {
	if caller != nil && auth.HasRole(caller.Role, auth.RoleAdmin) {
		return &Decision{CanAccess: true, Level: LevelAdmin, Reason: ReasonAdminRole}, nil
	}
	if caller == nil {
		return &Decision{CanAccess: false, Reason: ReasonNoAccess}, nil
	}
	if caller.Role == auth.RoleViewer {
		return &Decision{CanAccess: false, Reason: ReasonViewerRole}, nil
	}
	if session.OwnerID != nil && *session.OwnerID == caller.ID {
		return &Decision{CanAccess: true, Level: LevelAdmin, Reason: ReasonOwner}, nil
	}
	if session.OwnerID == nil {
		return &Decision{CanAccess: true, Level: LevelReadWrite, Reason: ReasonLegacy}, nil
	}

	if caller.TeamID != "" && session.ProjectPath != "" {
		grant, err := e.teams.CheckTeamProjectAccess(ctx, caller.TeamID, session.ProjectPath)
		if err != nil {
			return nil, fmt.Errorf("failed to check team project access: %w", err)
		}
		if grant.HasAccess {
			return &Decision{CanAccess: true, Level: grant.Level, Reason: ReasonTeamProject}, nil
		}
	}

	return &Decision{CanAccess: false, Reason: ReasonNoAccess}, nil
}

// CheckProjectAccess evaluates a caller's access to a project path.
// Unlike session access, any authenticated caller with no special
// relation still gets READ_ONLY: project visibility is open by default
// and only write/admin actions are gated. This asymmetry with the
// fail-closed ownership filters is intentional and load-bearing for
// pre-ownership deployments.
func (e *Evaluator) CheckProjectAccess(ctx context.Context, caller *auth.Identity, projectPath string) (*Decision, error) {
	if caller == nil {
		return &Decision{CanAccess: false, Reason: ReasonNoAccess}, nil
	}
	if auth.HasRole(caller.Role, auth.RoleAdmin) {
		return &Decision{CanAccess: true, Level: LevelAdmin, Reason: ReasonAdminRole}, nil
	}

	if caller.TeamID != "" && projectPath != "" {
		grant, err := e.teams.CheckTeamProjectAccess(ctx, caller.TeamID, projectPath)
		if err != nil {
			return nil, fmt.Errorf("failed to check team project access: %w", err)
		}
		if grant.HasAccess {
			return &Decision{CanAccess: true, Level: grant.Level, Reason: ReasonTeamProject}, nil
		}
	}

	return &Decision{CanAccess: true, Level: LevelReadOnly, Reason: ReasonDefaultRead}, nil
}

// SessionProjectPaths returns the project paths the caller's team is
// assigned to, for IN-filters on session lists. Callers without a team
// get none.
func (e *Evaluator) SessionProjectPaths(ctx context.Context, caller *auth.Identity) ([]string, error) {
	if caller == nil || caller.TeamID == "" {
		return nil, nil
	}
	if caller.IsSuperAdmin() {
		return nil, nil
	}
	return e.teams.GetTeamProjectPaths(ctx, caller.TeamID)
}
