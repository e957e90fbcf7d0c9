package user

type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Capability is a single permission checked by route guards.
type Capability string

const (
	CapViewAnalytics Capability = "analytics:view"
	CapExportUsers   Capability = "users:export"
	CapViewUsers     Capability = "users:view"
	CapEditUserTier  Capability = "users:edit_tier"
	CapEditUserRole  Capability = "users:edit_role"
	CapViewAuditLogs Capability = "audit:view"
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleUser: {},
	RoleAdmin: {
		CapViewAnalytics: true,
		CapExportUsers:   true,
		CapViewUsers:     true,
		CapEditUserTier:  true,
		CapViewAuditLogs: true,
	},
	RoleSuperAdmin: {
		CapViewAnalytics: true,
		CapExportUsers:   true,
		CapViewUsers:     true,
		CapEditUserTier:  true,
		CapEditUserRole:  true,
		CapViewAuditLogs: true,
	},
}

// Can reports whether r grants c. Unknown roles grant nothing.
func (r Role) Can(c Capability) bool {
	return roleCapabilities[r][c]
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}
