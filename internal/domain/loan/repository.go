package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	// GetByID loads the loan with its schedule ordered by seq.
	GetByID(ctx context.Context, id uint64) (*Loan, error)
	// GetByIDForUpdate locks the loan row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id uint64) (*Loan, error)
	ListByBorrower(ctx context.Context, borrower string) ([]Loan, error)
	// Save persists the loan row and upserts its installments.
	Save(ctx context.Context, l *Loan) error
}
