// Package access answers capability questions from stored role grants plus a
// fixed set of bootstrap admins taken from configuration.
package access

import (
	"context"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
	"github.com/kefkio/bloc-sacco/pkg/id"
)

type Checker struct {
	grants access.GrantRepository
	admins map[string]struct{}
}

func NewChecker(grants access.GrantRepository, bootstrapAdmins []string) *Checker {
	admins := make(map[string]struct{}, len(bootstrapAdmins))
	for _, a := range bootstrapAdmins {
		if a = id.NormalizeAddress(a); id.ValidAddress(a) {
			admins[a] = struct{}{}
		}
	}
	return &Checker{grants: grants, admins: admins}
}

// HasCapability does not treat admin as a superset of operator.
func (c *Checker) HasCapability(ctx context.Context, caller string, role access.Role) (bool, error) {
	caller = id.NormalizeAddress(caller)
	if !id.ValidAddress(caller) || !role.Valid() {
		return false, nil
	}
	if role == access.RoleAdmin {
		if _, ok := c.admins[caller]; ok {
			return true, nil
		}
	}
	return c.grants.Has(ctx, caller, role)
}

var _ access.Checker = (*Checker)(nil)
