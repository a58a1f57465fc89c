package accessctl

import (
	"context"
	"errors"
)

// ErrNotAuthorized indicates the caller lacks the role, ownership or standing
// approval required by the operation.
var ErrNotAuthorized = errors.New("not authorized")

// Role is a privileged capability held by an address.
type Role string

const (
	// RoleOperator may process, execute and reject workflow requests and
	// resolve holds administratively.
	RoleOperator Role = "operator"
	// RoleCreditOfficer may set unsecured overdraft limits.
	RoleCreditOfficer Role = "credit_officer"
)

// Privilege names a standing "act on my behalf" grant between two addresses.
// These are boolean flags, not amount-based allowances: holding and ordering
// on behalf of someone is an all-or-nothing privilege.
type Privilege string

const (
	PrivilegeHold     Privilege = "hold"
	PrivilegeFunding  Privilege = "funding"
	PrivilegePayout   Privilege = "payout"
	PrivilegeTransfer Privilege = "transfer"
)

// Registry answers capability and approval questions and records grants.
type Registry interface {
	GrantRole(ctx context.Context, address string, role Role) error
	RevokeRole(ctx context.Context, address string, role Role) error
	HasRole(ctx context.Context, address string, role Role) (bool, error)

	Approve(ctx context.Context, grantor, grantee string, privilege Privilege) error
	RevokeApproval(ctx context.Context, grantor, grantee string, privilege Privilege) error
	IsApproved(ctx context.Context, grantor, grantee string, privilege Privilege) (bool, error)
}

// RequireRole fails with ErrNotAuthorized unless the address holds the role.
func RequireRole(ctx context.Context, reg Registry, address string, role Role) error {
	ok, err := reg.HasRole(ctx, address, role)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}
