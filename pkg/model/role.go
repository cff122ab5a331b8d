package model

// Role represents a user's permission level, taken from the identity token.
type Role int

const (
	RoleUser  Role = iota // Default role, can queue and be matched
	RoleAdmin             // Can inspect and close rooms
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole converts a string to a Role. Unknown values map to RoleUser.
func ParseRole(s string) Role {
	switch s {
	case "admin":
		return RoleAdmin
	default:
		return RoleUser
	}
}

// Valid returns true if the role is a recognised value.
func (r Role) Valid() bool {
	return r >= RoleUser && r <= RoleAdmin
}

// Permission represents a specific action that can be checked against a role.
type Permission int

const (
	PermListRooms Permission = iota
	PermCloseRoom
)
