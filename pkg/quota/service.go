package quota

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/crewhall/crewhall/pkg/auth"
)

// Service evaluates quotas against live usage
type Service interface {
	GetUserQuota(ctx context.Context, userID string, role auth.Role) (*Quota, error)
	GetUserUsage(ctx context.Context, userID string) (*Usage, error)
	CheckQuota(ctx context.Context, userID string, role auth.Role, kind ResourceKind) (*CheckResult, error)
}

// PostgresService implements Service using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const quotaColumns = `max_active_sessions, max_total_sessions, max_active_agents, max_total_agents,
	       max_prompts_library, max_snippets, max_folders, api_rate_limit, agent_runs_per_hour, max_storage_bytes`

// GetUserQuota resolves the effective quota for a user: a user-specific
// override row wins over the role default row, which wins over the
// hardcoded role profile.
func (s *PostgresService) GetUserQuota(ctx context.Context, userID string, role auth.Role) (*Quota, error) {
	if userID != "" {
		quota, err := s.scanQuotaRow(ctx, `
			SELECT `+quotaColumns+`
			FROM user_quotas
			WHERE user_id = $1
		`, userID)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to get user quota override: %w", err)
		}
		if err == nil {
			return quota, nil
		}
	}

	quota, err := s.scanQuotaRow(ctx, `
		SELECT `+quotaColumns+`
		FROM role_quotas
		WHERE role = $1
	`, string(role))
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get role quota: %w", err)
	}
	if err == nil {
		return quota, nil
	}

	profile := ProfileForRole(role)
	return &profile, nil
}

func (s *PostgresService) scanQuotaRow(ctx context.Context, query string, arg interface{}) (*Quota, error) {
	quota := &Quota{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&quota.MaxActiveSessions, &quota.MaxTotalSessions,
		&quota.MaxActiveAgents, &quota.MaxTotalAgents,
		&quota.MaxPromptsLibrary, &quota.MaxSnippets, &quota.MaxFolders,
		&quota.APIRateLimit, &quota.AgentRunsPerHour, &quota.MaxStorageBytes,
	)
	if err != nil {
		return nil, err
	}
	return quota, nil
}

// usageQueries maps each counter to its COUNT query. Session and agent
// activity is judged by status; library resources count rows the user
// owns.
var usageQueries = []struct {
	query  string
	target func(*Usage) *int
}{
	{`SELECT COUNT(*) FROM sessions WHERE owner_id = $1 AND status = 'active'`, func(u *Usage) *int { return &u.ActiveSessions }},
	{`SELECT COUNT(*) FROM sessions WHERE owner_id = $1`, func(u *Usage) *int { return &u.TotalSessions }},
	{`SELECT COUNT(*) FROM agents WHERE owner_id = $1 AND status = 'running'`, func(u *Usage) *int { return &u.ActiveAgents }},
	{`SELECT COUNT(*) FROM agents WHERE owner_id = $1`, func(u *Usage) *int { return &u.TotalAgents }},
	{`SELECT COUNT(*) FROM prompts WHERE owner_id = $1`, func(u *Usage) *int { return &u.Prompts }},
	{`SELECT COUNT(*) FROM snippets WHERE owner_id = $1`, func(u *Usage) *int { return &u.Snippets }},
	{`SELECT COUNT(*) FROM folders WHERE owner_id = $1`, func(u *Usage) *int { return &u.Folders }},
}

// GetUserUsage counts the user's live resources. The seven counts run
// concurrently; the snapshot is computed fresh on every call.
func (s *PostgresService) GetUserUsage(ctx context.Context, userID string) (*Usage, error) {
	usage := &Usage{}
	group, ctx := errgroup.WithContext(ctx)

	for _, uq := range usageQueries {
		query := uq.query
		target := uq.target(usage)
		group.Go(func() error {
			return s.db.QueryRowContext(ctx, query, userID).Scan(target)
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute usage: %w", err)
	}
	return usage, nil
}

// CheckQuota decides whether the user may create one more resource of
// the given kind. A zero ceiling is unlimited for SUPER_ADMIN and
// forbidden for every other role.
func (s *PostgresService) CheckQuota(ctx context.Context, userID string, role auth.Role, kind ResourceKind) (*CheckResult, error) {
	quota, err := s.GetUserQuota(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	usage, err := s.GetUserUsage(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Evaluate(role, kind, quota, usage)
}

// Evaluate applies the quota decision rules to an already-computed quota
// and usage snapshot. Split out so guards and tests can evaluate without
// a database.
func Evaluate(role auth.Role, kind ResourceKind, quota *Quota, usage *Usage) (*CheckResult, error) {
	var current, max int
	switch kind {
	case ResourceActiveSessions:
		current, max = usage.ActiveSessions, quota.MaxActiveSessions
	case ResourceTotalSessions:
		current, max = usage.TotalSessions, quota.MaxTotalSessions
	case ResourceActiveAgents:
		current, max = usage.ActiveAgents, quota.MaxActiveAgents
	case ResourceTotalAgents:
		current, max = usage.TotalAgents, quota.MaxTotalAgents
	case ResourcePrompts:
		current, max = usage.Prompts, quota.MaxPromptsLibrary
	case ResourceSnippets:
		current, max = usage.Snippets, quota.MaxSnippets
	case ResourceFolders:
		current, max = usage.Folders, quota.MaxFolders
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}

	result := &CheckResult{Resource: kind, Current: current, Max: max}

	if max == 0 {
		if role == auth.RoleSuperAdmin {
			result.Allowed = true
			result.Remaining = -1
			return result, nil
		}
		return result, nil
	}

	if current >= max {
		return result, nil
	}

	result.Allowed = true
	result.Remaining = max - current
	return result, nil
}
