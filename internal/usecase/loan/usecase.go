package loan

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
	"github.com/kefkio/bloc-sacco/internal/domain/member"
	"github.com/kefkio/bloc-sacco/internal/domain/params"
	"github.com/kefkio/bloc-sacco/internal/domain/uow"
	"github.com/kefkio/bloc-sacco/internal/infrastructure/metrics"
	"github.com/kefkio/bloc-sacco/internal/usecase/custody"
	guarantorUC "github.com/kefkio/bloc-sacco/internal/usecase/guarantor"
	"github.com/kefkio/bloc-sacco/pkg/id"
	"github.com/kefkio/bloc-sacco/pkg/lock"
)

type Deps struct {
	UoW     uow.UnitOfWork
	Loans   loan.Repository
	Pledges guarantor.Repository
	Access  access.Checker
	Guard   lock.Guard
	Clock   func() time.Time
	Logger  *slog.Logger
	// Defaults apply until an admin stores protocol parameters.
	Defaults params.Params
}

type Usecase struct {
	uow      uow.UnitOfWork
	loans    loan.Repository
	pledges  guarantor.Repository
	access   access.Checker
	guard    lock.Guard
	now      func() time.Time
	log      *slog.Logger
	defaults params.Params
}

func NewUsecase(d Deps) *Usecase {
	u := &Usecase{
		uow:      d.UoW,
		loans:    d.Loans,
		pledges:  d.Pledges,
		access:   d.Access,
		guard:    d.Guard,
		now:      d.Clock,
		log:      d.Logger,
		defaults: d.Defaults,
	}
	if u.now == nil {
		u.now = func() time.Time { return time.Now().UTC() }
	}
	if u.log == nil {
		u.log = slog.Default()
	}
	u.log = u.log.With("module", "loan", "layer", "usecase")
	return u
}

// RequestLoan opens a loan in PendingGuarantors and appoints its guarantors in
// the same transaction.
func (u *Usecase) RequestLoan(ctx context.Context, borrower string, in RequestLoanInput) (dto *LoanDTO, err error) {
	defer func() { metrics.ObserveLoanOp("request", err) }()

	borrower = id.NormalizeAddress(borrower)
	if !id.ValidAddress(borrower) {
		return nil, apperr.ErrInvalidIdentity
	}
	asset, err := assetFor(in.Rail, in.Asset)
	if err != nil {
		return nil, err
	}
	if in.Principal <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	if err := loan.ValidateSchedule(in.Principal, in.InstallmentCount, in.IntervalSecs, loan.MaxInstallments); err != nil {
		return nil, err
	}
	threshold := in.Threshold
	if threshold == 0 {
		threshold = in.Principal
	}
	if threshold < 0 {
		return nil, loan.ErrInvalidThreshold
	}
	guarantors, err := guarantorUC.ValidateGuarantors(borrower, in.Guarantors)
	if err != nil {
		return nil, err
	}

	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		m, err := r.Members.GetByAddress(ctx, borrower)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return member.ErrNotRegistered
		}
		if err != nil {
			return err
		}
		if !m.Registered {
			return member.ErrNotRegistered
		}
		if m.Status != member.StatusVerified {
			return member.ErrNotVerified
		}
		p, err := u.loadParams(ctx, r)
		if err != nil {
			return err
		}
		if in.Principal < p.MinLoanAmount {
			return loan.ErrBelowMinimum
		}
		if in.InstallmentCount > p.InstallmentLimit() {
			return loan.ErrInvalidSchedule
		}

		now := u.now()
		l := &loan.Loan{
			Borrower:         borrower,
			Rail:             in.Rail,
			Asset:            asset,
			Principal:        in.Principal,
			Status:           loan.StatusPendingGuarantors,
			Threshold:        threshold,
			InstallmentCount: in.InstallmentCount,
			IntervalSecs:     in.IntervalSecs,
			StatusUpdatedAt:  now,
		}
		if err := r.Loans.Create(ctx, l); err != nil {
			return err
		}
		if err := guarantorUC.Appoint(ctx, r, l, guarantors); err != nil {
			return err
		}
		if err := r.Events.Append(ctx, event.New(event.LoanRequested, l.ID, borrower, l.Principal,
			map[string]any{"rail": l.Rail, "asset": l.Asset, "guarantors": guarantors})); err != nil {
			return err
		}
		dto = toDTO(l, guarantors)
		return nil
	})
	if err != nil {
		u.log.WarnContext(ctx, "loan request rejected", "operation", "request", "outcome", "failure",
			"borrower", borrower, "error", err)
		return nil, err
	}
	u.log.InfoContext(ctx, "loan requested", "operation", "request", "outcome", "success",
		"loan_id", dto.LoanID, "borrower", borrower, "principal", dto.Principal)
	return dto, nil
}

// assetFor resolves the stored asset for a rail. Fiat loans carry no asset.
func assetFor(rail loan.Rail, asset string) (string, error) {
	switch rail {
	case loan.RailNative:
		return loan.NativeAsset, nil
	case loan.RailToken:
		asset = id.NormalizeAddress(asset)
		if !id.ValidAddress(asset) {
			return "", loan.ErrInvalidAsset
		}
		return asset, nil
	case loan.RailFiat:
		return "", nil
	}
	return "", loan.ErrInvalidRail
}

// ApproveAndDisburse approves a guaranteed loan, fixes its schedule and pays the
// principal out of custody. A failed payout rolls the approval back.
func (u *Usecase) ApproveAndDisburse(ctx context.Context, operator string, loanID uint64) (dto *LoanDTO, err error) {
	defer func() { metrics.ObserveLoanOp("approve_disburse", err) }()

	if err := access.Require(ctx, u.access, operator, access.RoleOperator); err != nil {
		return nil, err
	}
	err = uow.Guarded(ctx, u.guard, uow.LoanKey(loanID), func() error {
		return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
			if l.ApprovedAt != nil {
				return loan.ErrAlreadyApproved
			}
			if l.Status != loan.StatusGuaranteed {
				return loan.ErrInvalidTransition
			}
			now := u.now()
			if err := l.Transition(loan.StatusApproved, now); err != nil {
				return err
			}
			l.ApprovedAt = &now
			l.Installments = loan.BuildSchedule(l, now)
			l.NextInstallment = 0
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			if err := r.Events.Append(ctx, event.New(event.LoanApproved, l.ID, operator, l.Principal, nil)); err != nil {
				return err
			}

			if l.Rail.OnLedger() {
				if err := r.Settlement.TransferOut(ctx, l.Asset, l.Borrower, l.Principal); err != nil {
					return err
				}
			}
			if err := l.Transition(loan.StatusActive, now); err != nil {
				return err
			}
			l.DisbursedAt = &now
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			if err := r.Events.Append(ctx, event.New(event.LoanDisbursed, l.ID, l.Borrower, l.Principal,
				map[string]any{"rail": l.Rail, "asset": l.Asset})); err != nil {
				return err
			}
			dto = toDTO(l, nil)
			return nil
		})
	})
	if err != nil {
		u.log.WarnContext(ctx, "disbursement rejected", "operation", "approve_disburse", "outcome", "failure",
			"loan_id", loanID, "error", err)
		return nil, mapNotFound(err)
	}
	u.log.InfoContext(ctx, "loan disbursed", "operation", "approve_disburse", "outcome", "success",
		"loan_id", loanID, "rail", dto.Rail, "principal", dto.Principal)
	return dto, nil
}

// Repay pulls amount from the borrower, applies it and refunds whatever could
// not be applied, all in one transaction.
func (u *Usecase) Repay(ctx context.Context, payer string, loanID uint64, amount int64) (dto *RepaymentDTO, err error) {
	defer func() { metrics.ObserveLoanOp("repay", err) }()

	payer = id.NormalizeAddress(payer)
	if !id.ValidAddress(payer) {
		return nil, apperr.ErrInvalidIdentity
	}
	if amount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	err = uow.Guarded(ctx, u.guard, uow.LoanKey(loanID), func() error {
		return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
			if l.Borrower != payer {
				return loan.ErrNotBorrower
			}
			if l.Status != loan.StatusActive {
				return loan.ErrInvalidTransition
			}
			if !l.Rail.OnLedger() {
				return loan.ErrWrongRail
			}
			if err := r.Settlement.TransferIn(ctx, l.Asset, payer, amount); err != nil {
				return err
			}
			dto, err = u.applyRepayment(ctx, r, l, amount)
			if err != nil {
				return err
			}
			if dto.Remainder > 0 {
				if err := r.Events.Append(ctx, event.New(event.OverpaymentRefunded, l.ID, payer, dto.Remainder, nil)); err != nil {
					return err
				}
				if err := r.Settlement.TransferOut(ctx, l.Asset, payer, dto.Remainder); err != nil {
					return err
				}
				dto.Refunded = true
			}
			return nil
		})
	})
	if err != nil {
		u.log.WarnContext(ctx, "repayment rejected", "operation", "repay", "outcome", "failure",
			"loan_id", loanID, "payer", payer, "amount", amount, "error", err)
		return nil, mapNotFound(err)
	}
	u.log.InfoContext(ctx, "repayment applied", "operation", "repay", "outcome", "success",
		"loan_id", loanID, "amount", amount, "status", dto.Status, "remainder", dto.Remainder)
	return dto, nil
}

// RecordOffLedgerRepayment applies a fiat payment reported by an operator. No
// funds move and the remainder is only reported.
func (u *Usecase) RecordOffLedgerRepayment(ctx context.Context, operator string, loanID uint64, amount int64) (dto *RepaymentDTO, err error) {
	defer func() { metrics.ObserveLoanOp("repay_offledger", err) }()

	if err := access.Require(ctx, u.access, operator, access.RoleOperator); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}
	err = u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
		if l.Status != loan.StatusActive {
			return loan.ErrInvalidTransition
		}
		if l.Rail != loan.RailFiat {
			return loan.ErrWrongRail
		}
		dto, err = u.applyRepayment(ctx, r, l, amount)
		return err
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	u.log.InfoContext(ctx, "off-ledger repayment recorded", "operation", "repay_offledger", "outcome", "success",
		"loan_id", loanID, "amount", amount, "status", dto.Status, "remainder", dto.Remainder)
	return dto, nil
}

// applyRepayment runs the lazy penalty step, allocates amount and settles the
// loan when nothing is left owing. Collateral is released in the same
// transaction on settlement.
func (u *Usecase) applyRepayment(ctx context.Context, r uow.Repos, l *loan.Loan, amount int64) (*RepaymentDTO, error) {
	p, err := u.loadParams(ctx, r)
	if err != nil {
		return nil, err
	}
	now := u.now()

	charged := loan.AccruePenalty(l, now, p.PenaltyPolicy())
	if charged > 0 {
		if err := r.Events.Append(ctx, event.New(event.PenaltyCharged, l.ID, l.Borrower, charged,
			map[string]int{"installment": l.NextInstallment})); err != nil {
			return nil, err
		}
	}

	a := loan.Allocate(l, amount)
	for _, seq := range a.PaidInstallments {
		if err := r.Events.Append(ctx, event.New(event.InstallmentPaid, l.ID, l.Borrower, l.Installments[seq].Amount,
			map[string]int{"installment": seq})); err != nil {
			return nil, err
		}
	}
	if err := r.Events.Append(ctx, event.New(event.RepaymentReceived, l.ID, l.Borrower, amount,
		map[string]int64{"penalty_paid": a.PenaltyPaid, "principal_paid": a.PrincipalPaid, "remainder": a.Remainder})); err != nil {
		return nil, err
	}

	dto := &RepaymentDTO{
		LoanID:           l.ID,
		Amount:           amount,
		PenaltyCharged:   charged,
		PenaltyPaid:      a.PenaltyPaid,
		PrincipalPaid:    a.PrincipalPaid,
		Remainder:        a.Remainder,
		InstallmentsPaid: a.PaidInstallments,
	}

	if l.Settled() {
		if err := l.Transition(loan.StatusFullyRepaid, now); err != nil {
			return nil, err
		}
		if err := r.Events.Append(ctx, event.New(event.LoanFullyRepaid, l.ID, l.Borrower, l.TotalRepaid, nil)); err != nil {
			return nil, err
		}
		dto.Released, err = custody.ReleaseAll(ctx, r, l, now)
		if err != nil {
			return nil, err
		}
	}
	if err := r.Loans.Save(ctx, l); err != nil {
		return nil, err
	}

	dto.Status = string(l.Status)
	dto.Outstanding = l.Outstanding()
	dto.AccruedPenalty = l.AccruedPenalty
	return dto, nil
}

// MarkDefault moves an active loan whose current installment is past due to
// Defaulted. Collateral stays locked for an operator release.
func (u *Usecase) MarkDefault(ctx context.Context, operator string, loanID uint64) (dto *LoanDTO, err error) {
	defer func() { metrics.ObserveLoanOp("mark_default", err) }()

	if err := access.Require(ctx, u.access, operator, access.RoleOperator); err != nil {
		return nil, err
	}
	err = u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
		if l.Status != loan.StatusActive {
			return loan.ErrInvalidTransition
		}
		now := u.now()
		if !l.Overdue(now) {
			return loan.ErrNotOverdue
		}
		if err := l.Transition(loan.StatusDefaulted, now); err != nil {
			return err
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		if err := r.Events.Append(ctx, event.New(event.LoanDefaulted, l.ID, l.Borrower, l.Outstanding(),
			map[string]int{"installment": l.NextInstallment})); err != nil {
			return err
		}
		dto = toDTO(l, nil)
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	u.log.InfoContext(ctx, "loan defaulted", "operation", "mark_default", "outcome", "success", "loan_id", loanID)
	return dto, nil
}

// Cancel closes a loan before disbursement and returns all collateral to
// withdrawable balances. The borrower, an operator or an admin may cancel.
func (u *Usecase) Cancel(ctx context.Context, caller string, loanID uint64) (dto *LoanDTO, err error) {
	defer func() { metrics.ObserveLoanOp("cancel", err) }()

	caller = id.NormalizeAddress(caller)
	if !id.ValidAddress(caller) {
		return nil, apperr.ErrInvalidIdentity
	}
	privileged, err := access.HasAny(ctx, u.access, caller, access.RoleOperator, access.RoleAdmin)
	if err != nil {
		return nil, err
	}
	err = uow.Guarded(ctx, u.guard, uow.LoanKey(loanID), func() error {
		return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.Loan) error {
			if l.Borrower != caller && !privileged {
				return apperr.ErrForbidden
			}
			if !l.Status.PreDisbursement() {
				return loan.ErrInvalidTransition
			}
			now := u.now()
			if err := l.Transition(loan.StatusCancelled, now); err != nil {
				return err
			}
			if err := r.Events.Append(ctx, event.New(event.LoanCancelled, l.ID, caller, 0, nil)); err != nil {
				return err
			}
			if _, err := custody.ReleaseAll(ctx, r, l, now); err != nil {
				return err
			}
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			dto = toDTO(l, nil)
			return nil
		})
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	u.log.InfoContext(ctx, "loan cancelled", "operation", "cancel", "outcome", "success",
		"loan_id", loanID, "caller", caller)
	return dto, nil
}

func (u *Usecase) Get(ctx context.Context, loanID uint64) (*LoanDTO, error) {
	l, err := u.loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	ps, err := u.pledges.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	gs := make([]string, 0, len(ps))
	for _, p := range ps {
		gs = append(gs, p.Guarantor)
	}
	return toDTO(l, gs), nil
}

func (u *Usecase) ListByBorrower(ctx context.Context, borrower string) ([]LoanDTO, error) {
	ls, err := u.loans.ListByBorrower(ctx, id.NormalizeAddress(borrower))
	if err != nil {
		return nil, err
	}
	out := make([]LoanDTO, 0, len(ls))
	for i := range ls {
		out = append(out, *toDTO(&ls[i], nil))
	}
	return out, nil
}

// loadParams reads the stored parameters inside the caller's transaction and
// falls back to the configured defaults before the first admin update.
func (u *Usecase) loadParams(ctx context.Context, r uow.Repos) (params.Params, error) {
	p, err := r.Params.Get(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return u.defaults, nil
	}
	if err != nil {
		return params.Params{}, err
	}
	return *p, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return loan.ErrNotFound
	}
	return err
}
