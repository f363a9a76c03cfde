package guarantor

import (
	"context"

	"github.com/kefkio/bloc-sacco/internal/domain/guarantor"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/uow"
	"github.com/kefkio/bloc-sacco/pkg/id"
)

// ValidateGuarantors normalizes the list and rejects an empty list, invalid or
// duplicate identities, and the borrower guaranteeing their own loan.
func ValidateGuarantors(borrower string, list []string) ([]string, error) {
	if len(list) == 0 {
		return nil, loan.ErrNoGuarantors
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, g := range list {
		g = id.NormalizeAddress(g)
		if !id.ValidAddress(g) {
			return nil, loan.ErrInvalidGuarantor
		}
		if g == borrower {
			return nil, loan.ErrBorrowerAsGuarantor
		}
		if _, dup := seen[g]; dup {
			return nil, loan.ErrDuplicateGuarantor
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out, nil
}

// Appoint creates an unpledged pledge row per guarantor. Runs inside the
// loan request transaction.
func Appoint(ctx context.Context, r uow.Repos, l *loan.Loan, guarantors []string) error {
	ps := make([]guarantor.Pledge, 0, len(guarantors))
	for _, g := range guarantors {
		ps = append(ps, guarantor.Pledge{LoanID: l.ID, Guarantor: g, Appointed: true})
	}
	return r.Pledges.CreateBatch(ctx, ps)
}

func toDTO(p *guarantor.Pledge) PledgeDTO {
	return PledgeDTO{
		LoanID:     p.LoanID,
		Guarantor:  p.Guarantor,
		Appointed:  p.Appointed,
		Agreed:     p.Agreed,
		Amount:     p.Amount,
		Pledged:    p.Pledged,
		OnLedger:   p.OnLedger,
		IsToken:    p.IsToken,
		Asset:      p.Asset,
		Returned:   p.Returned,
		PledgedAt:  p.PledgedAt,
		ReturnedAt: p.ReturnedAt,
	}
}

// ToDTOs maps pledge rows for read accessors.
func ToDTOs(ps []guarantor.Pledge) []PledgeDTO {
	out := make([]PledgeDTO, 0, len(ps))
	for i := range ps {
		out = append(out, toDTO(&ps[i]))
	}
	return out
}
