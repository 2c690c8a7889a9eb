package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RolePlayer            = "player"
	RoleSupport           = "support"
	RoleComplianceOfficer = "compliance_officer"
	RoleAdmin             = "admin"
	RoleSuperAdmin        = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsBackOffice reports whether the role belongs to staff rather than customers.
func IsBackOffice(role string) bool {
	switch role {
	case RoleSupport, RoleComplianceOfficer, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
