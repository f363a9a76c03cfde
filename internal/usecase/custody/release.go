package custody

import (
	"context"
	"time"

	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/internal/domain/guarantor"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/uow"
)

// ReleaseAll hands back every agreed, unreturned, non-zero pledge of l. It runs
// inside the caller's loan transaction and leaves saving l to the caller.
func ReleaseAll(ctx context.Context, r uow.Repos, l *loan.Loan, now time.Time) ([]ReleaseDTO, error) {
	ps, err := r.Pledges.ListByLoan(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	var out []ReleaseDTO
	for i := range ps {
		if !ps[i].Releasable() {
			continue
		}
		rel, err := release(ctx, r, &ps[i], now)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	ps, err = r.Pledges.ListByLoan(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	l.TotalPledged = guarantor.Total(ps)
	return out, nil
}

// release zeroes and persists the pledge first, then credits the holder's
// withdrawable balance. Off-ledger pledges are only marked returned.
func release(ctx context.Context, r uow.Repos, p *guarantor.Pledge, now time.Time) (ReleaseDTO, error) {
	amount := p.Amount
	p.MarkReturned(now)
	if err := r.Pledges.Save(ctx, p); err != nil {
		return ReleaseDTO{}, err
	}
	rel := ReleaseDTO{LoanID: p.LoanID, Guarantor: p.Guarantor, Asset: p.Asset, Amount: amount, OnLedger: p.OnLedger}

	if p.OnLedger {
		b, err := r.Balances.GetForUpdate(ctx, p.LoanID, p.Guarantor, p.Asset)
		if err != nil {
			return ReleaseDTO{}, err
		}
		b.Credit(amount)
		if err := r.Balances.Save(ctx, b); err != nil {
			return ReleaseDTO{}, err
		}
	}
	err := r.Events.Append(ctx, event.New(event.CollateralReleased, p.LoanID, p.Guarantor, amount,
		map[string]any{"asset": p.Asset, "on_ledger": p.OnLedger}))
	return rel, err
}
