package loan

import (
	"context"
	"testing"

	"github.com/kefkio/bloc-sacco/internal/domain/guarantor"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/member"
	"github.com/kefkio/bloc-sacco/internal/domain/params"
	"github.com/kefkio/bloc-sacco/internal/testutil/dbtest"
	custodyUC "github.com/kefkio/bloc-sacco/internal/usecase/custody"
	guarantorUC "github.com/kefkio/bloc-sacco/internal/usecase/guarantor"
)

type fixture struct {
	h        *dbtest.Harness
	loans    *Usecase
	pledges  *guarantorUC.Usecase
	custody  *custodyUC.Usecase
	borrower string
	g1, g2   string
}

func newFixture(t *testing.T) *fixture { return newFixtureWith(t, dbtest.DefaultParams) }

func newFixtureWith(t *testing.T, p params.Params) *fixture {
	t.Helper()
	h := dbtest.New(t)
	f := &fixture{
		h:        h,
		borrower: dbtest.Addr(0x100),
		g1:       dbtest.Addr(0x201),
		g2:       dbtest.Addr(0x202),
	}
	f.loans = NewUsecase(Deps{
		UoW:      h.UoW,
		Loans:    h.Loans(),
		Pledges:  h.Pledges(),
		Access:   h.Checker,
		Guard:    h.Guard,
		Clock:    h.Clock.Now,
		Defaults: p,
	})
	f.pledges = guarantorUC.NewUsecase(guarantorUC.Deps{
		UoW:     h.UoW,
		Pledges: h.Pledges(),
		Access:  h.Checker,
		Guard:   h.Guard,
		Clock:   h.Clock.Now,
	})
	f.custody = custodyUC.NewUsecase(custodyUC.Deps{
		UoW:      h.UoW,
		Balances: h.Balances(),
		Access:   h.Checker,
		Guard:    h.Guard,
		Clock:    h.Clock.Now,
	})
	h.Member(t, f.borrower, member.StatusVerified)
	return f
}

func (f *fixture) request(t *testing.T, principal int64, count int) *LoanDTO {
	t.Helper()
	dto, err := f.loans.RequestLoan(context.Background(), f.borrower, RequestLoanInput{
		Rail:             loan.RailNative,
		Principal:        principal,
		InstallmentCount: count,
		IntervalSecs:     30 * 24 * 3600,
		Guarantors:       []string{f.g1, f.g2},
	})
	if err != nil {
		t.Fatalf("RequestLoan: %v", err)
	}
	return dto
}

func (f *fixture) pledge(t *testing.T, g string, loanID uint64, amount int64) *guarantorUC.PledgeResult {
	t.Helper()
	f.h.Deposit(t, g, loan.NativeAsset, amount)
	res, err := f.pledges.Pledge(context.Background(), g, guarantorUC.PledgeInput{LoanID: loanID, Amount: amount})
	if err != nil {
		t.Fatalf("Pledge(%s): %v", g, err)
	}
	return res
}

// guaranteed returns a native loan fully covered by two equal pledges.
func (f *fixture) guaranteed(t *testing.T, principal int64, count int) uint64 {
	t.Helper()
	id := f.request(t, principal, count).LoanID
	f.pledge(t, f.g1, id, principal/2)
	f.pledge(t, f.g2, id, principal-principal/2)
	return id
}

// active funds custody and disburses a guaranteed loan.
func (f *fixture) active(t *testing.T, principal int64, count int) uint64 {
	t.Helper()
	id := f.guaranteed(t, principal, count)
	f.h.FundCustody(t, loan.NativeAsset, principal)
	if _, err := f.loans.ApproveAndDisburse(context.Background(), f.h.Op, id); err != nil {
		t.Fatalf("ApproveAndDisburse: %v", err)
	}
	return id
}

func (f *fixture) loan(t *testing.T, id uint64) *loan.Loan {
	t.Helper()
	l, err := f.h.Loans().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load loan: %v", err)
	}
	return l
}

// checkConservation asserts that withdrawable plus still-locked collateral
// equals everything pledged on ledger minus everything already withdrawn.
func (f *fixture) checkConservation(t *testing.T, loanID uint64) {
	t.Helper()
	ctx := context.Background()
	ps, err := f.h.Pledges().ListByLoan(ctx, loanID)
	if err != nil {
		t.Fatalf("list pledges: %v", err)
	}
	bs, err := f.h.Balances().ListByLoan(ctx, loanID)
	if err != nil {
		t.Fatalf("list balances: %v", err)
	}
	var deposited, locked, withdrawable, paidOut int64
	for _, p := range ps {
		if !p.OnLedger {
			continue
		}
		deposited += p.Pledged
		if p.Agreed && !p.Returned {
			locked += p.Amount
		}
	}
	for _, b := range bs {
		withdrawable += b.Amount
		paidOut += b.Withdrawn
	}
	if withdrawable+locked != deposited-paidOut {
		t.Fatalf("conservation broken: withdrawable=%d locked=%d deposited=%d paid_out=%d",
			withdrawable, locked, deposited, paidOut)
	}
}

func pledgeOf(t *testing.T, f *fixture, loanID uint64, g string) *guarantor.Pledge {
	t.Helper()
	p, err := f.h.Pledges().Get(context.Background(), loanID, g)
	if err != nil {
		t.Fatalf("get pledge: %v", err)
	}
	return p
}
