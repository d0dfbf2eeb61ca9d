package ledger

import "github.com/mmdatafocus/fund_ledger/models"

// Caller is the verified identity handed to the ledger by the identity layer.
// The ledger still checks it against the account registry on every call: an
// unknown, inactive or role-mismatched caller is unauthorized.
type Caller struct {
	Identity string
	Role     models.Role
}

func NewCaller(identity string, role models.Role) Caller {
	return Caller{Identity: identity, Role: role}
}

func Admin(identity string) Caller   { return NewCaller(identity, models.RoleAdmin) }
func Vendor(identity string) Caller  { return NewCaller(identity, models.RoleVendor) }
func Auditor(identity string) Caller { return NewCaller(identity, models.RoleAuditor) }
