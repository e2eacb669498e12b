// Package sessions provides the read-only session lookup the access
// guards need. Full session lifecycle management lives elsewhere.
package sessions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/crewhall/crewhall/pkg/access"
)

// PostgresFetcher implements access.SessionFetcher against the sessions
// table.
type PostgresFetcher struct {
	db *sql.DB
}

// NewPostgresFetcher creates a new PostgresFetcher
func NewPostgresFetcher(db *sql.DB) *PostgresFetcher {
	return &PostgresFetcher{db: db}
}

// GetSession loads the session slice the evaluator needs
func (f *PostgresFetcher) GetSession(ctx context.Context, id string) (*access.Session, error) {
	query := `
		SELECT id, owner_id, project_path
		FROM sessions
		WHERE id = $1
	`
	session := &access.Session{}
	var ownerID sql.NullString
	err := f.db.QueryRowContext(ctx, query, id).Scan(&session.ID, &ownerID, &session.ProjectPath)
	if err == sql.ErrNoRows {
		return nil, access.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if ownerID.Valid {
		session.OwnerID = &ownerID.String
	}
	return session, nil
}
