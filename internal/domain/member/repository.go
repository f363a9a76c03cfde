package member

import "context"

type Repository interface {
	Create(ctx context.Context, m *Member) error
	GetByAddress(ctx context.Context, address string) (*Member, error)
	Save(ctx context.Context, m *Member) error
}
