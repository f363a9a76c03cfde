package loan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
	"github.com/kefkio/bloc-sacco/internal/domain/custody"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/member"
	"github.com/kefkio/bloc-sacco/internal/domain/settlement"
	"github.com/kefkio/bloc-sacco/internal/testutil/dbtest"
)

const day = 24 * time.Hour

func TestRequestLoan_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unverified := dbtest.Addr(0x101)
	f.h.Member(t, unverified, member.StatusPending)

	valid := func() RequestLoanInput {
		return RequestLoanInput{
			Rail:             loan.RailNative,
			Principal:        1000,
			InstallmentCount: 2,
			IntervalSecs:     3600,
			Guarantors:       []string{f.g1, f.g2},
		}
	}
	tests := []struct {
		name     string
		borrower string
		mutate   func(in *RequestLoanInput)
		wantErr  error
	}{
		{"invalid borrower", "nope", nil, apperr.ErrInvalidIdentity},
		{"unregistered borrower", dbtest.Addr(0x999), nil, member.ErrNotRegistered},
		{"unverified borrower", unverified, nil, member.ErrNotVerified},
		{"below minimum", f.borrower, func(in *RequestLoanInput) { in.Principal = 99 }, loan.ErrBelowMinimum},
		{"zero principal", f.borrower, func(in *RequestLoanInput) { in.Principal = 0 }, apperr.ErrInvalidAmount},
		{"unknown rail", f.borrower, func(in *RequestLoanInput) { in.Rail = "barter" }, loan.ErrInvalidRail},
		{"token rail without asset", f.borrower, func(in *RequestLoanInput) { in.Rail = loan.RailToken }, loan.ErrInvalidAsset},
		{"no guarantors", f.borrower, func(in *RequestLoanInput) { in.Guarantors = nil }, loan.ErrNoGuarantors},
		{"duplicate guarantor", f.borrower, func(in *RequestLoanInput) { in.Guarantors = []string{f.g1, f.g1} }, loan.ErrDuplicateGuarantor},
		{"borrower guarantees self", f.borrower, func(in *RequestLoanInput) { in.Guarantors = []string{f.borrower} }, loan.ErrBorrowerAsGuarantor},
		{"zero-address guarantor", f.borrower, func(in *RequestLoanInput) { in.Guarantors = []string{"0x0000000000000000000000000000000000000000"} }, loan.ErrInvalidGuarantor},
		{"installments without interval", f.borrower, func(in *RequestLoanInput) { in.IntervalSecs = 0 }, loan.ErrInvalidSchedule},
		{"negative installments", f.borrower, func(in *RequestLoanInput) { in.InstallmentCount = -1 }, loan.ErrInvalidSchedule},
		{"installments above limit", f.borrower, func(in *RequestLoanInput) { in.InstallmentCount = 25 }, loan.ErrInvalidSchedule},
		{"installments above ceiling", f.borrower, func(in *RequestLoanInput) {
			in.Principal = 1_000_000_000
			in.InstallmentCount = 1_000_000_000
		}, loan.ErrInvalidSchedule},
		{"interval beyond term", f.borrower, func(in *RequestLoanInput) { in.IntervalSecs = 10_000_000_000 }, loan.ErrInvalidSchedule},
		{"schedule span beyond term", f.borrower, func(in *RequestLoanInput) {
			in.InstallmentCount = 20
			in.IntervalSecs = loan.MaxTermSecs / 10
		}, loan.ErrInvalidSchedule},
		{"negative threshold", f.borrower, func(in *RequestLoanInput) { in.Threshold = -5 }, loan.ErrInvalidThreshold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			_, err := f.loans.RequestLoan(ctx, tt.borrower, in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
		})
	}

	ls, err := f.h.Loans().ListByBorrower(ctx, f.borrower)
	if err != nil {
		t.Fatalf("ListByBorrower: %v", err)
	}
	if len(ls) != 0 {
		t.Fatalf("rejected requests left %d loans behind", len(ls))
	}
}

func TestRequestLoan_AppointsGuarantors(t *testing.T) {
	f := newFixture(t)
	dto := f.request(t, 1000, 2)

	if dto.Status != string(loan.StatusPendingGuarantors) {
		t.Fatalf("status=%s", dto.Status)
	}
	if dto.Threshold != 1000 {
		t.Fatalf("threshold should default to principal, got %d", dto.Threshold)
	}
	got, err := f.loans.Get(context.Background(), dto.LoanID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Guarantors) != 2 {
		t.Fatalf("guarantors=%v", got.Guarantors)
	}
	for _, g := range []string{f.g1, f.g2} {
		p := pledgeOf(t, f, dto.LoanID, g)
		if !p.Appointed || p.Agreed || p.Amount != 0 {
			t.Fatalf("fresh pledge %+v", p)
		}
	}

	second := f.request(t, 500, 1)
	if second.LoanID <= dto.LoanID {
		t.Fatalf("loan ids must increase: %d then %d", dto.LoanID, second.LoanID)
	}
}

func TestScenario_TwoPledgesReachThreshold(t *testing.T) {
	f := newFixture(t)
	id := f.request(t, 1000, 2).LoanID

	res := f.pledge(t, f.g1, id, 500)
	if res.LoanStatus != string(loan.StatusPendingGuarantors) || res.TotalPledged != 500 {
		t.Fatalf("after first pledge: %+v", res)
	}
	res = f.pledge(t, f.g2, id, 500)
	if res.LoanStatus != string(loan.StatusGuaranteed) || res.TotalPledged != 1000 {
		t.Fatalf("after second pledge: %+v", res)
	}
	if got := f.h.Custody(t, loan.NativeAsset); got != 1000 {
		t.Fatalf("custody=%d, want pledged collateral 1000", got)
	}
	f.checkConservation(t, id)
}

func TestApproveAndDisburse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.guaranteed(t, 1000, 2)
	f.h.FundCustody(t, loan.NativeAsset, 1000)

	if _, err := f.loans.ApproveAndDisburse(ctx, f.borrower, id); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-operator: want ErrForbidden, got %v", err)
	}
	dto, err := f.loans.ApproveAndDisburse(ctx, f.h.Op, id)
	if err != nil {
		t.Fatalf("ApproveAndDisburse: %v", err)
	}
	if dto.Status != string(loan.StatusActive) || dto.DisbursedAt == nil || dto.ApprovedAt == nil {
		t.Fatalf("dto=%+v", dto)
	}
	if len(dto.Installments) != 2 || dto.Installments[0].Amount+dto.Installments[1].Amount != 1000 {
		t.Fatalf("schedule=%+v", dto.Installments)
	}
	if want := dbtest.Epoch.Add(60 * day); !dto.Installments[1].DueAt.Equal(want) {
		t.Fatalf("second due=%v, want %v", dto.Installments[1].DueAt, want)
	}
	if got := f.h.Wallet(t, f.borrower, loan.NativeAsset); got != 1000 {
		t.Fatalf("borrower wallet=%d", got)
	}

	if _, err := f.loans.ApproveAndDisburse(ctx, f.h.Op, id); !errors.Is(err, loan.ErrAlreadyApproved) {
		t.Fatalf("second approval: want ErrAlreadyApproved, got %v", err)
	}
	if _, err := f.loans.ApproveAndDisburse(ctx, f.h.Op, 4242); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("unknown loan: want ErrNotFound, got %v", err)
	}
}

func TestApproveAndDisburse_NotGuaranteed(t *testing.T) {
	f := newFixture(t)
	id := f.request(t, 1000, 2).LoanID
	f.pledge(t, f.g1, id, 500)

	_, err := f.loans.ApproveAndDisburse(context.Background(), f.h.Op, id)
	if !errors.Is(err, loan.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestApproveAndDisburse_InsufficientCustodyAbortsAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto, err := f.loans.RequestLoan(ctx, f.borrower, RequestLoanInput{
		Rail:             loan.RailNative,
		Principal:        1000,
		Threshold:        400,
		InstallmentCount: 2,
		IntervalSecs:     3600,
		Guarantors:       []string{f.g1, f.g2},
	})
	if err != nil {
		t.Fatalf("RequestLoan: %v", err)
	}
	f.pledge(t, f.g1, dto.LoanID, 200)
	f.pledge(t, f.g2, dto.LoanID, 200)

	_, err = f.loans.ApproveAndDisburse(ctx, f.h.Op, dto.LoanID)
	if !errors.Is(err, settlement.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if !apperr.Retryable(err) {
		t.Fatalf("insufficient custody must be retryable")
	}
	l := f.loan(t, dto.LoanID)
	if l.Status != loan.StatusGuaranteed || l.ApprovedAt != nil || len(l.Installments) != 0 {
		t.Fatalf("state leaked from aborted disbursement: %+v", l)
	}
	if got := f.h.Wallet(t, f.borrower, loan.NativeAsset); got != 0 {
		t.Fatalf("borrower wallet=%d", got)
	}

	f.h.FundCustody(t, loan.NativeAsset, 600)
	if _, err := f.loans.ApproveAndDisburse(ctx, f.h.Op, dto.LoanID); err != nil {
		t.Fatalf("retry after funding: %v", err)
	}
}

func TestScenario_RepaymentSpillsIntoNextInstallment(t *testing.T) {
	f := newFixture(t)
	id := f.active(t, 1000, 2)

	res, err := f.loans.Repay(context.Background(), f.borrower, id, 600)
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if res.PenaltyCharged != 0 || res.PrincipalPaid != 600 || res.Remainder != 0 || res.Refunded {
		t.Fatalf("repayment=%+v", res)
	}
	if len(res.InstallmentsPaid) != 1 || res.InstallmentsPaid[0] != 0 {
		t.Fatalf("installments paid=%v", res.InstallmentsPaid)
	}
	l := f.loan(t, id)
	if !l.Installments[0].IsPaid || l.Installments[1].PaidAmount != 100 || l.Installments[1].IsPaid {
		t.Fatalf("installments=%+v", l.Installments)
	}
	if l.NextInstallment != 1 || l.TotalRepaid != 600 {
		t.Fatalf("next=%d repaid=%d", l.NextInstallment, l.TotalRepaid)
	}
	if got := f.h.Wallet(t, f.borrower, loan.NativeAsset); got != 400 {
		t.Fatalf("borrower wallet=%d, want 400", got)
	}
}

func TestRepay_MonotonicAndRefundsOverpayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.active(t, 1000, 4)
	f.h.Deposit(t, f.borrower, loan.NativeAsset, 500)

	var prev int64
	paid := map[int]bool{}
	for _, amt := range []int64{100, 300, 250, 800} {
		res, err := f.loans.Repay(ctx, f.borrower, id, amt)
		if err != nil {
			t.Fatalf("Repay(%d): %v", amt, err)
		}
		l := f.loan(t, id)
		if l.TotalRepaid < prev {
			t.Fatalf("total repaid went down: %d -> %d", prev, l.TotalRepaid)
		}
		prev = l.TotalRepaid
		for seq := range paid {
			if !l.Installments[seq].IsPaid {
				t.Fatalf("installment %d was unmarked", seq)
			}
		}
		for _, inst := range l.Installments {
			if inst.IsPaid {
				paid[inst.Seq] = true
			}
		}
		if amt == 800 {
			if res.Remainder != 450 || !res.Refunded || res.Status != string(loan.StatusFullyRepaid) {
				t.Fatalf("final repayment=%+v", res)
			}
		}
	}
	// 1000 disbursed + 500 deposited - 1000 repaid
	if got := f.h.Wallet(t, f.borrower, loan.NativeAsset); got != 500 {
		t.Fatalf("borrower wallet=%d, want 500", got)
	}
}

func TestRepay_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.request(t, 1000, 2).LoanID
	active := f.active(t, 1000, 2)

	tests := []struct {
		name    string
		payer   string
		loanID  uint64
		amount  int64
		wantErr error
	}{
		{"zero amount", f.borrower, active, 0, apperr.ErrInvalidAmount},
		{"not the borrower", f.g1, active, 10, loan.ErrNotBorrower},
		{"not active", f.borrower, pending, 10, loan.ErrInvalidTransition},
		{"unknown loan", f.borrower, 9999, 10, loan.ErrNotFound},
		{"payer cannot cover", f.borrower, active, 5000, settlement.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.loans.Repay(ctx, tt.payer, tt.loanID, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
	if l := f.loan(t, active); l.TotalRepaid != 0 {
		t.Fatalf("rejected repayments changed state: repaid=%d", l.TotalRepaid)
	}
}

func TestScenario_PenaltyClearedByNextRepayment(t *testing.T) {
	f := newFixture(t)
	id := f.active(t, 100, 1)
	f.h.Deposit(t, f.borrower, loan.NativeAsset, 5)
	f.h.Clock.Advance(30*day + 3*day + day)

	res, err := f.loans.Repay(context.Background(), f.borrower, id, 5)
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if res.PenaltyCharged != 5 || res.PenaltyPaid != 5 || res.PrincipalPaid != 0 {
		t.Fatalf("repayment=%+v", res)
	}
	l := f.loan(t, id)
	if l.AccruedPenalty != 0 || l.PenaltyPaid != 5 || l.TotalRepaid != 0 {
		t.Fatalf("loan=%+v", l)
	}
	if !l.Installments[0].PenaltyCharged {
		t.Fatalf("installment penalty latch not set")
	}

	// same installment is never charged twice
	res, err = f.loans.Repay(context.Background(), f.borrower, id, 100)
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if res.PenaltyCharged != 0 || res.Status != string(loan.StatusFullyRepaid) {
		t.Fatalf("repayment=%+v", res)
	}
}

func TestRepay_PenaltyCap(t *testing.T) {
	p := dbtest.DefaultParams
	p.DefaultPenaltyPercent = 50
	p.MaxPenaltyPercent = 10
	f := newFixtureWith(t, p)
	ctx := context.Background()
	id := f.active(t, 1000, 4)
	f.h.Deposit(t, f.borrower, loan.NativeAsset, 1000)
	limit := int64(1000 * 10 / 100)

	check := func() {
		t.Helper()
		if l := f.loan(t, id); l.AccruedPenalty > limit {
			t.Fatalf("accrued penalty %d exceeds cap %d", l.AccruedPenalty, limit)
		}
	}

	f.h.Clock.Advance(34 * day)
	res, err := f.loans.Repay(ctx, f.borrower, id, 1)
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if res.PenaltyCharged != limit {
		t.Fatalf("charged=%d, want clipped to %d", res.PenaltyCharged, limit)
	}
	check()

	if _, err := f.loans.Repay(ctx, f.borrower, id, 1); err != nil {
		t.Fatalf("Repay: %v", err)
	}
	check()

	// clear the penalty and the first installment, then let the second lapse
	if _, err := f.loans.Repay(ctx, f.borrower, id, 98+250); err != nil {
		t.Fatalf("Repay: %v", err)
	}
	f.h.Clock.Advance(30 * day)
	res, err = f.loans.Repay(ctx, f.borrower, id, 1)
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if res.PenaltyCharged != limit {
		t.Fatalf("second charge=%d", res.PenaltyCharged)
	}
	check()
}

func TestZeroInstallmentLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.active(t, 1000, 0)
	f.h.Clock.Advance(400 * day)

	res, err := f.loans.Repay(ctx, f.borrower, id, 300)
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if res.PenaltyCharged != 0 || res.PrincipalPaid != 300 || res.Outstanding != 700 {
		t.Fatalf("repayment=%+v", res)
	}
	if _, err := f.loans.MarkDefault(ctx, f.h.Op, id); !errors.Is(err, loan.ErrNotOverdue) {
		t.Fatalf("MarkDefault: want ErrNotOverdue, got %v", err)
	}
	res, err = f.loans.Repay(ctx, f.borrower, id, 700)
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if res.Status != string(loan.StatusFullyRepaid) {
		t.Fatalf("status=%s", res.Status)
	}
}

func TestScenario_FullRepaymentReleasesToIndependentBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.active(t, 1000, 2)
	f.checkConservation(t, id)

	res, err := f.loans.Repay(ctx, f.borrower, id, 1000)
	if err != nil {
		t.Fatalf("Repay: %v", err)
	}
	if res.Status != string(loan.StatusFullyRepaid) || len(res.Released) != 2 {
		t.Fatalf("repayment=%+v", res)
	}
	if l := f.loan(t, id); l.TotalPledged != 0 {
		t.Fatalf("total pledged after release=%d", l.TotalPledged)
	}
	f.checkConservation(t, id)

	w, err := f.custody.Withdraw(ctx, f.g1, id)
	if err != nil {
		t.Fatalf("Withdraw g1: %v", err)
	}
	if w.Amount != 500 || f.h.Wallet(t, f.g1, loan.NativeAsset) != 500 {
		t.Fatalf("g1 withdrawal=%+v", w)
	}
	b, err := f.custody.GetBalance(ctx, id, f.g2, "")
	if err != nil {
		t.Fatalf("GetBalance g2: %v", err)
	}
	if b.Amount != 500 {
		t.Fatalf("g2 balance changed by g1 withdrawal: %+v", b)
	}
	f.checkConservation(t, id)

	_, err = f.custody.Withdraw(ctx, f.g1, id)
	if !errors.Is(err, custody.ErrNothingToWithdraw) || apperr.KindOf(err) != apperr.KindInvariant {
		t.Fatalf("second withdrawal: want invariant ErrNothingToWithdraw, got %v", err)
	}
	if _, err := f.custody.Withdraw(ctx, f.g2, id); err != nil {
		t.Fatalf("Withdraw g2: %v", err)
	}
	f.checkConservation(t, id)

	out, err := f.custody.ReleaseAll(ctx, f.h.Op, id)
	if err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("release after release credited again: %+v", out)
	}
}

func TestMarkDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.active(t, 1000, 2)

	if _, err := f.loans.MarkDefault(ctx, f.borrower, id); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-operator: want ErrForbidden, got %v", err)
	}
	if _, err := f.loans.MarkDefault(ctx, f.h.Op, id); !errors.Is(err, loan.ErrNotOverdue) {
		t.Fatalf("before due: want ErrNotOverdue, got %v", err)
	}
	f.h.Clock.Advance(31 * day)
	dto, err := f.loans.MarkDefault(ctx, f.h.Op, id)
	if err != nil {
		t.Fatalf("MarkDefault: %v", err)
	}
	if dto.Status != string(loan.StatusDefaulted) {
		t.Fatalf("status=%s", dto.Status)
	}
	if _, err := f.loans.Repay(ctx, f.borrower, id, 10); !errors.Is(err, loan.ErrInvalidTransition) {
		t.Fatalf("repay after default: want ErrInvalidTransition, got %v", err)
	}

	out, err := f.custody.ReleaseAll(ctx, f.h.Op, id)
	if err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("released=%+v", out)
	}
	f.checkConservation(t, id)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.guaranteed(t, 1000, 2)

	if _, err := f.loans.Cancel(ctx, dbtest.Addr(0x777), id); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("stranger: want ErrForbidden, got %v", err)
	}
	dto, err := f.loans.Cancel(ctx, f.borrower, id)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if dto.Status != string(loan.StatusCancelled) || dto.TotalPledged != 0 {
		t.Fatalf("dto=%+v", dto)
	}
	for _, g := range []string{f.g1, f.g2} {
		b, err := f.custody.GetBalance(ctx, id, g, loan.NativeAsset)
		if err != nil {
			t.Fatalf("GetBalance: %v", err)
		}
		if b.Amount != 500 {
			t.Fatalf("%s balance=%d", g, b.Amount)
		}
	}
	f.checkConservation(t, id)
	if _, err := f.loans.Cancel(ctx, f.borrower, id); !errors.Is(err, loan.ErrInvalidTransition) {
		t.Fatalf("second cancel: want ErrInvalidTransition, got %v", err)
	}

	active := f.active(t, 1000, 2)
	if _, err := f.loans.Cancel(ctx, f.h.Op, active); !errors.Is(err, loan.ErrInvalidTransition) {
		t.Fatalf("cancel active: want ErrInvalidTransition, got %v", err)
	}
}

func TestCancel_ByAdminWithoutOperatorRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.request(t, 1000, 2).LoanID

	if ok, err := f.h.Checker.HasCapability(ctx, f.h.Admin, access.RoleOperator); err != nil || ok {
		t.Fatalf("admin unexpectedly holds operator: ok=%v err=%v", ok, err)
	}
	dto, err := f.loans.Cancel(ctx, f.h.Admin, id)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if dto.Status != string(loan.StatusCancelled) {
		t.Fatalf("status=%s", dto.Status)
	}
}

func TestCancel_ByOperator(t *testing.T) {
	f := newFixture(t)
	id := f.request(t, 1000, 2).LoanID
	if _, err := f.loans.Cancel(context.Background(), f.h.Op, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
}

func TestFiatLoan_OffLedgerFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dto, err := f.loans.RequestLoan(ctx, f.borrower, RequestLoanInput{
		Rail:             loan.RailFiat,
		Principal:        1000,
		InstallmentCount: 2,
		IntervalSecs:     3600,
		Guarantors:       []string{f.g1, f.g2},
	})
	if err != nil {
		t.Fatalf("RequestLoan: %v", err)
	}
	id := dto.LoanID
	for _, g := range []string{f.g1, f.g2} {
		if _, err := f.pledges.RecordOffLedgerPledge(ctx, f.h.Op, id, g, 500); err != nil {
			t.Fatalf("RecordOffLedgerPledge: %v", err)
		}
	}
	if _, err := f.loans.ApproveAndDisburse(ctx, f.h.Op, id); err != nil {
		t.Fatalf("ApproveAndDisburse: %v", err)
	}
	if got := f.h.Custody(t, loan.NativeAsset); got != 0 {
		t.Fatalf("fiat disbursement moved custody funds: %d", got)
	}

	if _, err := f.loans.Repay(ctx, f.borrower, id, 100); !errors.Is(err, loan.ErrWrongRail) {
		t.Fatalf("on-ledger repay on fiat: want ErrWrongRail, got %v", err)
	}
	if _, err := f.loans.RecordOffLedgerRepayment(ctx, f.borrower, id, 100); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("non-operator: want ErrForbidden, got %v", err)
	}
	res, err := f.loans.RecordOffLedgerRepayment(ctx, f.h.Op, id, 1200)
	if err != nil {
		t.Fatalf("RecordOffLedgerRepayment: %v", err)
	}
	if res.Remainder != 200 || res.Refunded || res.Status != string(loan.StatusFullyRepaid) {
		t.Fatalf("repayment=%+v", res)
	}
	if len(res.Released) != 2 || res.Released[0].OnLedger {
		t.Fatalf("released=%+v", res.Released)
	}
	bs, err := f.custody.ListBalances(ctx, id)
	if err != nil {
		t.Fatalf("ListBalances: %v", err)
	}
	if len(bs) != 0 {
		t.Fatalf("off-ledger release credited balances: %+v", bs)
	}
}

// hookAdapter runs a callback before delegating a transfer, standing in for a
// counterparty that calls back into the service mid-transfer.
type hookAdapter struct {
	settlement.Adapter
	onIn  func(ctx context.Context) error
	onOut func(ctx context.Context) error
}

func (a *hookAdapter) TransferIn(ctx context.Context, asset, source string, amount int64) error {
	if a.onIn != nil {
		if err := a.onIn(ctx); err != nil {
			return err
		}
	}
	return a.Adapter.TransferIn(ctx, asset, source, amount)
}

func (a *hookAdapter) TransferOut(ctx context.Context, asset, destination string, amount int64) error {
	if a.onOut != nil {
		if err := a.onOut(ctx); err != nil {
			return err
		}
	}
	return a.Adapter.TransferOut(ctx, asset, destination, amount)
}

func TestReentrantCallbackCannotRepayTwice(t *testing.T) {
	f := newFixture(t)
	id := f.active(t, 1000, 2)

	var nested error
	calls := 0
	f.h.Wrap = func(a settlement.Adapter) settlement.Adapter {
		return &hookAdapter{Adapter: a, onIn: func(ctx context.Context) error {
			calls++
			_, nested = f.loans.Repay(ctx, f.borrower, id, 400)
			return nil
		}}
	}
	if _, err := f.loans.Repay(context.Background(), f.borrower, id, 400); err != nil {
		t.Fatalf("outer Repay: %v", err)
	}
	f.h.Wrap = nil

	if calls != 1 {
		t.Fatalf("callback ran %d times", calls)
	}
	if !errors.Is(nested, apperr.ErrReentrantCall) {
		t.Fatalf("nested repay: want ErrReentrantCall, got %v", nested)
	}
	if l := f.loan(t, id); l.TotalRepaid != 400 {
		t.Fatalf("total repaid=%d, want 400", l.TotalRepaid)
	}
}

func TestReentrantCallbackCannotWithdrawTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.guaranteed(t, 1000, 2)
	if _, err := f.loans.Cancel(ctx, f.borrower, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	var nested error
	f.h.Wrap = func(a settlement.Adapter) settlement.Adapter {
		return &hookAdapter{Adapter: a, onOut: func(ctx context.Context) error {
			_, nested = f.custody.Withdraw(ctx, f.g1, id)
			return nil
		}}
	}
	w, err := f.custody.Withdraw(ctx, f.g1, id)
	f.h.Wrap = nil
	if err != nil {
		t.Fatalf("outer Withdraw: %v", err)
	}
	if !errors.Is(nested, apperr.ErrReentrantCall) {
		t.Fatalf("nested withdraw: want ErrReentrantCall, got %v", nested)
	}
	if w.Amount != 500 || f.h.Wallet(t, f.g1, loan.NativeAsset) != 500 {
		t.Fatalf("paid out %d, wallet %d", w.Amount, f.h.Wallet(t, f.g1, loan.NativeAsset))
	}
	f.checkConservation(t, id)
}

func TestWithdraw_FailedTransferRestoresBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.guaranteed(t, 1000, 2)
	if _, err := f.loans.Cancel(ctx, f.borrower, id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	f.h.Wrap = func(a settlement.Adapter) settlement.Adapter {
		return &hookAdapter{Adapter: a, onOut: func(context.Context) error { return settlement.ErrTransferFailed }}
	}
	_, err := f.custody.Withdraw(ctx, f.g1, id)
	f.h.Wrap = nil
	if !errors.Is(err, settlement.ErrTransferFailed) {
		t.Fatalf("want ErrTransferFailed, got %v", err)
	}
	b, err := f.custody.GetBalance(ctx, id, f.g1, loan.NativeAsset)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if b.Amount != 500 || b.Withdrawn != 0 {
		t.Fatalf("balance not restored: %+v", b)
	}
	f.checkConservation(t, id)

	if _, err := f.custody.Withdraw(ctx, f.g1, id); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestListByBorrower(t *testing.T) {
	f := newFixture(t)
	a := f.request(t, 1000, 2).LoanID
	b := f.request(t, 2000, 2).LoanID

	ls, err := f.loans.ListByBorrower(context.Background(), f.borrower)
	if err != nil {
		t.Fatalf("ListByBorrower: %v", err)
	}
	if len(ls) != 2 || ls[0].LoanID != b || ls[1].LoanID != a {
		t.Fatalf("loans=%+v", ls)
	}
}
