package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
	"github.com/kefkio/bloc-sacco/internal/domain/custody"
	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/internal/domain/guarantor"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/member"
	"github.com/kefkio/bloc-sacco/internal/domain/params"
	"github.com/kefkio/bloc-sacco/internal/domain/settlement"
	"github.com/kefkio/bloc-sacco/internal/domain/uow"
)

// SettlementFactory binds a settlement adapter to the running transaction.
type SettlementFactory func(tx *gorm.DB) settlement.Adapter

type GormUoW struct {
	db     *gorm.DB
	settle SettlementFactory
}

func NewGormUoW(db *gorm.DB, settle SettlementFactory) *GormUoW {
	return &GormUoW{db: db, settle: settle}
}

func (u *GormUoW) repos(tx *gorm.DB) uow.Repos {
	r := uow.Repos{
		Members:  &MemberRepository{db: tx},
		Loans:    &LoanRepository{db: tx},
		Pledges:  &PledgeRepository{db: tx},
		Balances: &BalanceRepository{db: tx},
		Params:   &ParamsRepository{db: tx},
		Events:   &EventRepository{db: tx},
		Grants:   &GrantRepository{db: tx},
	}
	if u.settle != nil {
		r.Settlement = u.settle(tx)
	}
	return r
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(u.repos(tx))
	})
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanID uint64, fn func(r uow.Repos, l *loan.Loan) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := u.repos(tx)
		// lock the loan row up-front to prevent races
		l, err := r.Loans.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		return fn(r, l)
	})
}

// Models lists every table owned by the core, in migration order.
func Models() []any {
	return []any{
		&member.Member{},
		&loan.Loan{},
		&loan.Installment{},
		&guarantor.Pledge{},
		&custody.Balance{},
		&params.Params{},
		&event.Outbox{},
		&access.Grant{},
	}
}

func Migrate(db *gorm.DB) error { return db.AutoMigrate(Models()...) }
