package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrUserNotFound is returned when no user record matches an id
var ErrUserNotFound = errors.New("user not found")

// PostgresUserResolver resolves identities from the users table. The
// role comes from the persisted record when one was synced; otherwise it
// is derived live from group memberships.
type PostgresUserResolver struct {
	db *sql.DB
}

// NewPostgresUserResolver creates a new PostgresUserResolver
func NewPostgresUserResolver(db *sql.DB) *PostgresUserResolver {
	return &PostgresUserResolver{db: db}
}

// ResolveUser loads a user record and builds the caller identity
func (r *PostgresUserResolver) ResolveUser(ctx context.Context, userID string) (*Identity, error) {
	query := `
		SELECT id, email, name, groups, role, team_id
		FROM users
		WHERE id = $1
	`
	var (
		id, email, name string
		groups          []string
		role            sql.NullString
		teamID          sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&id, &email, &name, pq.Array(&groups), &role, &teamID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	persistedRole := Role("")
	if role.Valid {
		persistedRole = Role(role.String)
	}
	return NewIdentity(id, email, name, groups, persistedRole, teamID.String), nil
}
