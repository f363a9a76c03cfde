package membermock

import (
	"context"

	domain "github.com/kefkio/bloc-sacco/internal/domain/member"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn       func(ctx context.Context, m *domain.Member) error
	GetByAddressFn func(ctx context.Context, address string) (*domain.Member, error)
	SaveFn         func(ctx context.Context, m *domain.Member) error
}

func (r *Repo) Create(ctx context.Context, m *domain.Member) error {
	if r.CreateFn != nil {
		return r.CreateFn(ctx, m)
	}
	return nil
}

func (r *Repo) GetByAddress(ctx context.Context, address string) (*domain.Member, error) {
	if r.GetByAddressFn != nil {
		return r.GetByAddressFn(ctx, address)
	}
	return nil, context.Canceled
}

func (r *Repo) Save(ctx context.Context, m *domain.Member) error {
	if r.SaveFn != nil {
		return r.SaveFn(ctx, m)
	}
	return nil
}
