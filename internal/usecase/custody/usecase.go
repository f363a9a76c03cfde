package custody

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
	"github.com/kefkio/bloc-sacco/internal/domain/custody"
	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/internal/domain/guarantor"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/uow"
	"github.com/kefkio/bloc-sacco/internal/infrastructure/metrics"
	"github.com/kefkio/bloc-sacco/pkg/id"
	"github.com/kefkio/bloc-sacco/pkg/lock"
)

type Deps struct {
	UoW      uow.UnitOfWork
	Balances custody.Repository
	Access   access.Checker
	Guard    lock.Guard
	Clock    func() time.Time
	Logger   *slog.Logger
}

type Usecase struct {
	uow      uow.UnitOfWork
	balances custody.Repository
	access   access.Checker
	guard    lock.Guard
	now      func() time.Time
	log      *slog.Logger
}

func NewUsecase(d Deps) *Usecase {
	u := &Usecase{uow: d.UoW, balances: d.Balances, access: d.Access, guard: d.Guard, now: d.Clock, log: d.Logger}
	if u.now == nil {
		u.now = func() time.Time { return time.Now().UTC() }
	}
	if u.log == nil {
		u.log = slog.Default()
	}
	u.log = u.log.With("module", "custody", "layer", "usecase")
	return u
}

// ReleaseOne releases a single guarantor's collateral ahead of full repayment.
func (u *Usecase) ReleaseOne(ctx context.Context, operator string, loanID uint64, g string) (dto *ReleaseDTO, err error) {
	defer func() { metrics.ObserveLoanOp("release_one", err) }()

	if err := access.Require(ctx, u.access, operator, access.RoleOperator); err != nil {
		return nil, err
	}
	g = id.NormalizeAddress(g)
	if !id.ValidAddress(g) {
		return nil, apperr.ErrInvalidIdentity
	}
	err = uow.Guarded(ctx, u.guard, uow.LoanKey(loanID), func() error {
		return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
			p, err := r.Pledges.Get(ctx, loanID, g)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return guarantor.ErrNotFound
			}
			if err != nil {
				return err
			}
			if p.Returned {
				return guarantor.ErrAlreadyReleased
			}
			if !p.Releasable() {
				return guarantor.ErrNothingToRelease
			}
			now := u.now()
			rel, err := release(ctx, r, p, now)
			if err != nil {
				return err
			}
			ps, err := r.Pledges.ListByLoan(ctx, loanID)
			if err != nil {
				return err
			}
			l.ApplyPledgeTotal(guarantor.Total(ps), now)
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			dto = &rel
			return nil
		})
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	u.log.InfoContext(ctx, "collateral released", "operation", "release_one", "outcome", "success",
		"loan_id", loanID, "guarantor", g, "amount", dto.Amount)
	return dto, nil
}

// ReleaseAll is the operator-triggered full release. Only terminal loans qualify;
// active collateral stays locked until repayment or cancellation.
func (u *Usecase) ReleaseAll(ctx context.Context, operator string, loanID uint64) (out []ReleaseDTO, err error) {
	defer func() { metrics.ObserveLoanOp("release_all", err) }()

	if err := access.Require(ctx, u.access, operator, access.RoleOperator); err != nil {
		return nil, err
	}
	err = uow.Guarded(ctx, u.guard, uow.LoanKey(loanID), func() error {
		return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
			if !l.Status.Terminal() {
				return loan.ErrInvalidTransition
			}
			out, err = ReleaseAll(ctx, r, l, u.now())
			if err != nil {
				return err
			}
			return r.Loans.Save(ctx, l)
		})
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return out, nil
}

// Withdraw pays out the holder's native balance for loanID.
func (u *Usecase) Withdraw(ctx context.Context, holder string, loanID uint64) (*WithdrawalDTO, error) {
	return u.withdraw(ctx, holder, loanID, loan.NativeAsset)
}

// WithdrawToken pays out the holder's balance of a token asset for loanID.
func (u *Usecase) WithdrawToken(ctx context.Context, holder string, loanID uint64, asset string) (*WithdrawalDTO, error) {
	asset = id.NormalizeAddress(asset)
	if !id.ValidAddress(asset) {
		return nil, loan.ErrInvalidAsset
	}
	return u.withdraw(ctx, holder, loanID, asset)
}

// withdraw zeroes and persists the balance before the outbound transfer; a
// failed transfer rolls the balance back with the rest of the transaction.
func (u *Usecase) withdraw(ctx context.Context, holder string, loanID uint64, asset string) (dto *WithdrawalDTO, err error) {
	defer func() { metrics.ObserveLoanOp("withdraw", err) }()

	holder = id.NormalizeAddress(holder)
	if !id.ValidAddress(holder) {
		return nil, apperr.ErrInvalidIdentity
	}
	err = uow.Guarded(ctx, u.guard, uow.BalanceKey(loanID, holder, asset), func() error {
		return u.uow.WithinTx(ctx, func(r uow.Repos) error {
			b, err := r.Balances.GetForUpdate(ctx, loanID, holder, asset)
			if err != nil {
				return err
			}
			if b.Amount == 0 {
				return custody.ErrNothingToWithdraw
			}
			amount := b.Drain()
			if err := r.Balances.Save(ctx, b); err != nil {
				return err
			}
			if err := r.Events.Append(ctx, event.New(event.CollateralWithdrawn, loanID, holder, amount,
				map[string]string{"asset": asset})); err != nil {
				return err
			}
			if err := r.Settlement.TransferOut(ctx, asset, holder, amount); err != nil {
				return err
			}
			dto = &WithdrawalDTO{LoanID: loanID, Holder: holder, Asset: asset, Amount: amount}
			return nil
		})
	})
	if err != nil {
		u.log.WarnContext(ctx, "withdrawal rejected", "operation", "withdraw", "outcome", "failure",
			"loan_id", loanID, "holder", holder, "asset", asset, "error", err)
		return nil, err
	}
	u.log.InfoContext(ctx, "collateral withdrawn", "operation", "withdraw", "outcome", "success",
		"loan_id", loanID, "holder", holder, "asset", asset, "amount", dto.Amount)
	return dto, nil
}

func (u *Usecase) GetBalance(ctx context.Context, loanID uint64, holder, asset string) (*BalanceDTO, error) {
	if asset == "" {
		asset = loan.NativeAsset
	}
	b, err := u.balances.Get(ctx, loanID, id.NormalizeAddress(holder), id.NormalizeAddress(asset))
	if err != nil {
		return nil, err
	}
	dto := toDTO(b)
	return &dto, nil
}

func (u *Usecase) ListBalances(ctx context.Context, loanID uint64) ([]BalanceDTO, error) {
	bs, err := u.balances.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	out := make([]BalanceDTO, 0, len(bs))
	for i := range bs {
		out = append(out, toDTO(&bs[i]))
	}
	return out, nil
}

func toDTO(b *custody.Balance) BalanceDTO {
	return BalanceDTO{
		LoanID:    b.LoanID,
		Holder:    b.Holder,
		Asset:     b.Asset,
		Amount:    b.Amount,
		Credited:  b.Credited,
		Withdrawn: b.Withdrawn,
	}
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return loan.ErrNotFound
	}
	return err
}
