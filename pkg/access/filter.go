package access

import (
	"fmt"
	"strings"

	"github.com/crewhall/crewhall/pkg/auth"
)

// Filter is a SQL predicate fragment for list endpoints. Clause uses
// positional placeholders starting at $1; callers renumber when composing
// into a larger query.
type Filter struct {
	Clause string
	Args   []interface{}
}

// Unrestricted matches every row
func Unrestricted() Filter {
	return Filter{Clause: "TRUE"}
}

// MatchNothing is the fail-closed fallback: a predicate guaranteed to
// match no rows. Never fail open here.
func MatchNothing() Filter {
	return Filter{Clause: "FALSE"}
}

// FilterOptions controls which visibility branches an ownership filter
// OR-combines.
type FilterOptions struct {
	IncludeShared bool
	IncludePublic bool
	IncludeLegacy bool
}

// BuildOwnershipFilter builds the visibility predicate for shared-library
// resources (prompts, snippets, folders, agents). Branches:
//
//	ownerId == caller      (authenticated non-VIEWER callers)
//	isShared               (ADMIN/USER, when IncludeShared)
//	isPublic               (when IncludePublic)
//	ownerId IS NULL        (legacy rows, when IncludeLegacy)
//
// SUPER_ADMIN sees everything. A caller for whom no branch applies gets
// a predicate that matches nothing.
func BuildOwnershipFilter(caller *auth.Identity, opts FilterOptions) Filter {
	if caller.IsSuperAdmin() {
		return Unrestricted()
	}

	var clauses []string
	var args []interface{}

	if caller != nil && caller.ID != "" && caller.Role != auth.RoleViewer {
		args = append(args, caller.ID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if opts.IncludeShared && caller != nil && auth.HasRole(caller.Role, auth.RoleUser) {
		clauses = append(clauses, "is_shared = TRUE")
	}
	if opts.IncludePublic {
		clauses = append(clauses, "is_public = TRUE")
	}
	if opts.IncludeLegacy {
		clauses = append(clauses, "owner_id IS NULL")
	}

	if len(clauses) == 0 {
		return MatchNothing()
	}

	return Filter{
		Clause: "(" + strings.Join(clauses, " OR ") + ")",
		Args:   args,
	}
}

// BuildSessionFilter builds the visibility predicate for sessions.
// Sessions model ownership differently: there is no shared/public
// concept. ADMIN and SUPER_ADMIN are unrestricted; everyone else sees
// own sessions, legacy sessions, and sessions under the caller team's
// assigned project paths.
func BuildSessionFilter(caller *auth.Identity, teamProjectPaths []string) Filter {
	if caller != nil && auth.HasRole(caller.Role, auth.RoleAdmin) {
		return Unrestricted()
	}

	var clauses []string
	var args []interface{}

	if caller != nil && caller.ID != "" {
		args = append(args, caller.ID)
		clauses = append(clauses, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	clauses = append(clauses, "owner_id IS NULL")

	if len(teamProjectPaths) > 0 {
		placeholders := make([]string, len(teamProjectPaths))
		for i, path := range teamProjectPaths {
			args = append(args, path)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, "project_path IN ("+strings.Join(placeholders, ", ")+")")
	}

	return Filter{
		Clause: "(" + strings.Join(clauses, " OR ") + ")",
		Args:   args,
	}
}
