package uow

import (
	"context"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
	"github.com/kefkio/bloc-sacco/internal/domain/custody"
	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/internal/domain/guarantor"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/member"
	"github.com/kefkio/bloc-sacco/internal/domain/params"
	"github.com/kefkio/bloc-sacco/internal/domain/settlement"
)

// Repos are bound to a single transaction. Settlement moves funds inside the
// same transaction, so a failed transfer unwinds every write made through Repos.
type Repos struct {
	Members    member.Repository
	Loans      loan.Repository
	Pledges    guarantor.Repository
	Balances   custody.Repository
	Params     params.Repository
	Events     event.Repository
	Grants     access.GrantRepository
	Settlement settlement.Adapter
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock the loan row first, then pass it in with its schedule loaded
	WithinLoanTx(ctx context.Context, loanID uint64, fn func(r Repos, l *loan.Loan) error) error
}
