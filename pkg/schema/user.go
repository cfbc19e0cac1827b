package schema

import "strings"

// Role is the access level a caller holds for the duration of a session.
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleAuthority Role = "authority"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleAuthority, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// UserRecord is one entry of the users collection.
// Citizens usually log in by area code, staff by email.
type UserRecord struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	Email     string `json:"email,omitempty"`
	AreaCode  string `json:"areaCode,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Principal is the authenticated identity held server-side for a session.
// Email and AreaCode serialise as null when the user has none.
type Principal struct {
	Name     string  `json:"name"`
	Role     Role    `json:"role"`
	Email    *string `json:"email"`
	AreaCode *string `json:"areaCode"`
}
