package constants

const (
	Superadmin = "superadmin"
	Admin      = "admin"
	User       = "user"
)

// ValidRoles is the set of role values the account service writes.
var ValidRoles = []string{User, Admin, Superadmin}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
