package teams

import (
	"time"

	"github.com/crewhall/crewhall/pkg/access"
)

// Team represents a team of identities sharing project assignments
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectAssignment grants a team an access level on one exact project
// path. There is no path-prefix inheritance: /work/app grants nothing
// on /work/app/api.
type ProjectAssignment struct {
	ID          string       `json:"id"`
	TeamID      string       `json:"team_id"`
	ProjectPath string       `json:"project_path"`
	AccessLevel access.Level `json:"access_level"`
	CreatedBy   *string      `json:"created_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
