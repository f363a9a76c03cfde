package guarantor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/internal/domain/guarantor"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/uow"
	"github.com/kefkio/bloc-sacco/internal/infrastructure/metrics"
	"github.com/kefkio/bloc-sacco/pkg/id"
	"github.com/kefkio/bloc-sacco/pkg/lock"
)

type Deps struct {
	UoW     uow.UnitOfWork
	Pledges guarantor.Repository
	Access  access.Checker
	Guard   lock.Guard
	Clock   func() time.Time
	Logger  *slog.Logger
}

type Usecase struct {
	uow     uow.UnitOfWork
	pledges guarantor.Repository
	access  access.Checker
	guard   lock.Guard
	now     func() time.Time
	log     *slog.Logger
}

func NewUsecase(d Deps) *Usecase {
	u := &Usecase{uow: d.UoW, pledges: d.Pledges, access: d.Access, guard: d.Guard, now: d.Clock, log: d.Logger}
	if u.now == nil {
		u.now = func() time.Time { return time.Now().UTC() }
	}
	if u.log == nil {
		u.log = slog.Default()
	}
	u.log = u.log.With("module", "guarantor", "layer", "usecase")
	return u
}

// Pledge locks on-ledger collateral. Funds are pulled into custody before the
// pledge is recorded; a failed pull unwinds the whole operation.
func (u *Usecase) Pledge(ctx context.Context, caller string, in PledgeInput) (res *PledgeResult, err error) {
	defer func() { metrics.ObserveLoanOp("pledge", err) }()

	caller = id.NormalizeAddress(caller)
	if !id.ValidAddress(caller) {
		return nil, apperr.ErrInvalidIdentity
	}
	if in.Amount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	asset := id.NormalizeAddress(in.Asset)
	if asset == "" {
		asset = loan.NativeAsset
	}
	if !loan.ValidAsset(asset) {
		return nil, loan.ErrInvalidAsset
	}

	err = uow.Guarded(ctx, u.guard, uow.LoanKey(in.LoanID), func() error {
		return u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *loan.Loan) error {
			p, err := u.pledgeable(ctx, r, l, caller)
			if err != nil {
				return err
			}
			if err := r.Settlement.TransferIn(ctx, asset, caller, in.Amount); err != nil {
				return err
			}
			p.OnLedger = true
			p.IsToken = asset != loan.NativeAsset
			p.Asset = asset
			res, err = u.record(ctx, r, l, p, in.Amount)
			return err
		})
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	u.log.InfoContext(ctx, "pledge recorded", "operation", "pledge", "outcome", "success",
		"loan_id", in.LoanID, "guarantor", caller, "amount", in.Amount)
	return res, nil
}

// RecordOffLedgerPledge records collateral held outside the vault. No funds move.
func (u *Usecase) RecordOffLedgerPledge(ctx context.Context, operator string, loanID uint64, g string, amount int64) (res *PledgeResult, err error) {
	defer func() { metrics.ObserveLoanOp("pledge_offledger", err) }()

	if err := access.Require(ctx, u.access, operator, access.RoleOperator); err != nil {
		return nil, err
	}
	g = id.NormalizeAddress(g)
	if !id.ValidAddress(g) {
		return nil, apperr.ErrInvalidIdentity
	}
	if amount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	err = u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
		p, err := u.pledgeable(ctx, r, l, g)
		if err != nil {
			return err
		}
		p.OnLedger = false
		res, err = u.record(ctx, r, l, p, amount)
		return err
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return res, nil
}

func (u *Usecase) pledgeable(ctx context.Context, r uow.Repos, l *loan.Loan, g string) (*guarantor.Pledge, error) {
	if l.Status != loan.StatusPendingGuarantors {
		return nil, loan.ErrInvalidTransition
	}
	p, err := r.Pledges.Get(ctx, l.ID, g)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, guarantor.ErrNotAppointed
	}
	if err != nil {
		return nil, err
	}
	if !p.Appointed {
		return nil, guarantor.ErrNotAppointed
	}
	if p.Agreed {
		return nil, guarantor.ErrAlreadyPledged
	}
	return p, nil
}

// record latches the pledge, recomputes the loan total and moves the loan to
// Guaranteed once the threshold is met.
func (u *Usecase) record(ctx context.Context, r uow.Repos, l *loan.Loan, p *guarantor.Pledge, amount int64) (*PledgeResult, error) {
	now := u.now()
	p.Agreed = true
	p.Amount = amount
	p.Pledged = amount
	p.PledgedAt = &now
	if err := r.Pledges.Save(ctx, p); err != nil {
		return nil, err
	}
	if err := r.Events.Append(ctx, event.New(event.PledgeRecorded, l.ID, p.Guarantor, amount,
		map[string]any{"on_ledger": p.OnLedger, "asset": p.Asset})); err != nil {
		return nil, err
	}

	if err := u.refreshTotal(ctx, r, l, now); err != nil {
		return nil, err
	}
	return &PledgeResult{
		Pledge:       toDTO(p),
		LoanStatus:   string(l.Status),
		TotalPledged: l.TotalPledged,
		Threshold:    l.Threshold,
	}, nil
}

func (u *Usecase) refreshTotal(ctx context.Context, r uow.Repos, l *loan.Loan, now time.Time) error {
	ps, err := r.Pledges.ListByLoan(ctx, l.ID)
	if err != nil {
		return err
	}
	if l.ApplyPledgeTotal(guarantor.Total(ps), now) && l.Status == loan.StatusGuaranteed {
		if err := r.Events.Append(ctx, event.New(event.LoanGuaranteed, l.ID, l.Borrower, l.TotalPledged, nil)); err != nil {
			return err
		}
	}
	return r.Loans.Save(ctx, l)
}

// AdjustThreshold changes the collateral target before approval and re-evaluates
// the guaranteed condition in both directions.
func (u *Usecase) AdjustThreshold(ctx context.Context, operator string, loanID uint64, threshold int64) (dto *ThresholdDTO, err error) {
	defer func() { metrics.ObserveLoanOp("adjust_threshold", err) }()

	if err := access.Require(ctx, u.access, operator, access.RoleOperator); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		return nil, loan.ErrInvalidThreshold
	}
	err = u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
		if !l.Status.PreDisbursement() {
			return loan.ErrInvalidTransition
		}
		old := l.Threshold
		l.Threshold = threshold
		if err := r.Events.Append(ctx, event.New(event.LoanThresholdAdjusted, l.ID, operator, threshold,
			map[string]int64{"previous": old})); err != nil {
			return err
		}
		if err := u.refreshTotal(ctx, r, l, u.now()); err != nil {
			return err
		}
		dto = &ThresholdDTO{LoanID: l.ID, Threshold: l.Threshold, TotalPledged: l.TotalPledged, LoanStatus: string(l.Status)}
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return dto, nil
}

func (u *Usecase) GetPledge(ctx context.Context, loanID uint64, g string) (*PledgeDTO, error) {
	p, err := u.pledges.Get(ctx, loanID, id.NormalizeAddress(g))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, guarantor.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	dto := toDTO(p)
	return &dto, nil
}

func (u *Usecase) ListPledges(ctx context.Context, loanID uint64) ([]PledgeDTO, error) {
	ps, err := u.pledges.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return ToDTOs(ps), nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return loan.ErrNotFound
	}
	return err
}
