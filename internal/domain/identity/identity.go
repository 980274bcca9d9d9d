package identity

import (
	"fmt"
	"strings"
)

// Role is the closed set of roles an actor can hold
type Role int

const (
	RoleUnknown Role = iota
	RoleEmployee
	RoleManager
	RoleFinance
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleEmployee: "EMPLOYEE",
	RoleManager:  "MANAGER",
	RoleFinance:  "FINANCE",
	RoleAdmin:    "ADMIN",
}

// String returns the canonical upper-case role name
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsValid returns true for every role except RoleUnknown
func (r Role) IsValid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole parses a role name. The "ROLE_" prefix is accepted for compatibility
// with tokens minted by the identity provider.
func ParseRole(s string) (Role, error) {
	name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "ROLE_")
	for role, n := range roleNames {
		if n == name {
			return role, nil
		}
	}
	return RoleUnknown, fmt.Errorf("unknown role: %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (r Role) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("cannot marshal role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Identity is an authenticated actor as resolved from the user directory.
// ManagerID is zero when the user reports to nobody.
type Identity struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	ManagerID   int64  `json:"manager_id,omitempty"`
}

// HasManager reports whether the identity references a manager
func (i Identity) HasManager() bool {
	return i.ManagerID != 0
}

// Is compares identities by id value
func (i Identity) Is(other Identity) bool {
	return i.ID != 0 && i.ID == other.ID
}

// HasRole reports whether the identity holds any of the given roles
func (i Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
