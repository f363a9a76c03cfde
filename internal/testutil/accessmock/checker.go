package accessmock

import (
	"context"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
)

var _ access.Checker = Roles(nil)

// Roles grants each listed address the given roles.
type Roles map[string][]access.Role

func (m Roles) HasCapability(_ context.Context, caller string, role access.Role) (bool, error) {
	for _, r := range m[caller] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}
