package teams

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crewhall/crewhall/pkg/access"
)

// PostgresResolver resolves team project assignments from PostgreSQL.
// Assignments are created and revoked by team administrators elsewhere;
// this resolver only reads.
type PostgresResolver struct {
	db *sql.DB
}

// NewPostgresResolver creates a new PostgresResolver
func NewPostgresResolver(db *sql.DB) *PostgresResolver {
	return &PostgresResolver{db: db}
}

// CheckTeamProjectAccess looks up a team's grant on an exact project path
func (r *PostgresResolver) CheckTeamProjectAccess(ctx context.Context, teamID, projectPath string) (*access.TeamProjectAccess, error) {
	query := `
		SELECT access_level
		FROM project_assignments
		WHERE team_id = $1 AND project_path = $2
	`
	var level access.Level
	err := r.db.QueryRowContext(ctx, query, teamID, projectPath).Scan(&level)
	if err == sql.ErrNoRows {
		return &access.TeamProjectAccess{HasAccess: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check team project access: %w", err)
	}
	if !level.Valid() {
		return nil, fmt.Errorf("unknown access level %q for team %s", level, teamID)
	}
	return &access.TeamProjectAccess{HasAccess: true, Level: level}, nil
}

// GetTeamProjectPaths returns every project path assigned to a team
func (r *PostgresResolver) GetTeamProjectPaths(ctx context.Context, teamID string) ([]string, error) {
	query := `
		SELECT project_path
		FROM project_assignments
		WHERE team_id = $1
		ORDER BY project_path
	`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get team project paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan project path: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// ListAssignments returns all assignments for a team, for admin surfaces
func (r *PostgresResolver) ListAssignments(ctx context.Context, teamID string) ([]*ProjectAssignment, error) {
	query := `
		SELECT id, team_id, project_path, access_level, created_by, created_at
		FROM project_assignments
		WHERE team_id = $1
		ORDER BY project_path
	`
	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*ProjectAssignment
	for rows.Next() {
		assignment := &ProjectAssignment{}
		var createdBy sql.NullString
		if err := rows.Scan(
			&assignment.ID, &assignment.TeamID, &assignment.ProjectPath,
			&assignment.AccessLevel, &createdBy, &assignment.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		if createdBy.Valid {
			assignment.CreatedBy = &createdBy.String
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}
