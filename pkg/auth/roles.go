package auth

import "strings"

// Role represents a user's role in the system
type Role string

const (
	RoleViewer     Role = "VIEWER"
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// roleLevels defines the strict total order between roles.
// Higher level always satisfies lower level.
var roleLevels = map[Role]int{
	RoleViewer:     0,
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// Level returns the numeric level of a role. Unknown roles map to the
// VIEWER level so a corrupted role record never gains access.
func (r Role) Level() int {
	if level, ok := roleLevels[r]; ok {
		return level
	}
	return 0
}

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// HasRole checks whether an actual role satisfies a required role
// using the total order VIEWER < USER < ADMIN < SUPER_ADMIN.
func HasRole(actual, required Role) bool {
	return actual.Level() >= required.Level()
}

// groupRoleMapping maps external directory group names to roles.
// Ordered highest role first so the first match is also the best match
// when scanning per group; comparison is case-insensitive.
var groupRoleMapping = []struct {
	group string
	role  Role
}{
	{"administrators", RoleSuperAdmin},
	{"super_admins", RoleSuperAdmin},
	{"admins", RoleAdmin},
	{"developers", RoleUser},
	{"users", RoleUser},
	{"viewers", RoleViewer},
}

// RoleFromGroups derives a role from external group memberships.
// The highest role granted by any group wins. Callers with no
// recognized group default to USER.
func RoleFromGroups(groups []string) Role {
	best := RoleUser
	matched := false

	for _, group := range groups {
		normalized := strings.ToLower(strings.TrimSpace(group))
		for _, mapping := range groupRoleMapping {
			if mapping.group != normalized {
				continue
			}
			if !matched || mapping.role.Level() > best.Level() {
				best = mapping.role
			}
			matched = true
		}
	}

	if !matched {
		return RoleUser
	}
	return best
}
