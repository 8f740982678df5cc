package auth

// Role is the account privilege tier. Roles form a total order; every
// permission check in the service goes through HasPermission.
type Role string

const (
	RolePublic    Role = "public"
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

var roleLevels = map[Role]int{
	RolePublic:    0,
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// Level maps a role to its rank. Unknown role strings rank as public so a
// corrupted or hostile role claim never grants anything.
func Level(role Role) int {
	return roleLevels[role]
}

func HasPermission(actual, required Role) bool {
	return Level(actual) >= Level(required)
}

// ValidRole reports whether role is one of the four known tiers.
func ValidRole(role Role) bool {
	_, ok := roleLevels[role]
	return ok
}
