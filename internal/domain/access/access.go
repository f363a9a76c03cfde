package access

import (
	"context"
	"time"

	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleOperator }

var ErrInvalidRole = apperr.New(apperr.KindPrecondition, "invalid role")

// Checker answers capability questions. Role storage lives outside the loan core.
type Checker interface {
	HasCapability(ctx context.Context, caller string, role Role) (bool, error)
}

// Grant is one stored (address, role) pair.
type Grant struct {
	ID        uint64    `gorm:"primaryKey;column:id" json:"-"`
	Address   string    `gorm:"size:42;not null;uniqueIndex:ux_role_grants_address_role" json:"address"`
	Role      Role      `gorm:"size:16;not null;uniqueIndex:ux_role_grants_address_role" json:"role"`
	GrantedBy string    `gorm:"size:42" json:"granted_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Grant) TableName() string { return "role_grants" }

type GrantRepository interface {
	// Grant is idempotent.
	Grant(ctx context.Context, g *Grant) error
	Revoke(ctx context.Context, address string, role Role) error
	Has(ctx context.Context, address string, role Role) (bool, error)
}

// Require returns apperr.ErrForbidden unless caller holds role.
func Require(ctx context.Context, c Checker, caller string, role Role) error {
	ok, err := c.HasCapability(ctx, caller, role)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrForbidden
	}
	return nil
}

// HasAny reports whether caller holds at least one of roles.
func HasAny(ctx context.Context, c Checker, caller string, roles ...Role) (bool, error) {
	for _, r := range roles {
		ok, err := c.HasCapability(ctx, caller, r)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
