package enums

// Role is the coarse actor role carried in access tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether the value matches a known Role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// CanOperate reports whether the role may use back-office routes.
func (r Role) CanOperate() bool {
	return r == RoleStaff || r == RoleAdmin
}
