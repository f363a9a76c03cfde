package guarantor

import "context"

type Repository interface {
	CreateBatch(ctx context.Context, ps []Pledge) error
	Get(ctx context.Context, loanID uint64, guarantor string) (*Pledge, error)
	ListByLoan(ctx context.Context, loanID uint64) ([]Pledge, error)
	Save(ctx context.Context, p *Pledge) error
}
