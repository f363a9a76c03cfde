package custody

import "context"

type Repository interface {
	// GetForUpdate returns the row locked for the transaction, or a zero Balance
	// keyed by (loanID, holder, asset) when none exists yet.
	GetForUpdate(ctx context.Context, loanID uint64, holder, asset string) (*Balance, error)
	Get(ctx context.Context, loanID uint64, holder, asset string) (*Balance, error)
	ListByLoan(ctx context.Context, loanID uint64) ([]Balance, error)
	Save(ctx context.Context, b *Balance) error
}
