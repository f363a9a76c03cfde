package loan

import "time"

const (
	// MaxInstallments is the hard ceiling on a schedule's length; the protocol
	// parameters may lower it.
	MaxInstallments = 10000
	// MaxTermSecs bounds the installment interval and the whole schedule span
	// (about 100 years), keeping every due date representable.
	MaxTermSecs int64 = 100 * 365 * 24 * 3600
)

// ValidateSchedule checks the requested installment shape against the principal,
// the installment limit and the term bound.
func ValidateSchedule(principal int64, count int, intervalSecs int64, limit int) error {
	if count < 0 || count > limit || count > MaxInstallments || int64(count) > principal {
		return ErrInvalidSchedule
	}
	if count == 0 {
		return nil
	}
	if intervalSecs <= 0 || intervalSecs > MaxTermSecs || int64(count) > MaxTermSecs/intervalSecs {
		return ErrInvalidSchedule
	}
	return nil
}

// BuildSchedule splits the principal into InstallmentCount installments spaced by
// the loan interval from approvedAt. The division remainder goes to the first
// installment so the schedule always sums to the principal.
func BuildSchedule(l *Loan, approvedAt time.Time) []Installment {
	n := l.InstallmentCount
	if n <= 0 {
		return nil
	}
	base := l.Principal / int64(n)
	rem := l.Principal % int64(n)

	out := make([]Installment, n)
	for i := 0; i < n; i++ {
		out[i] = Installment{
			LoanID: l.ID,
			Seq:    i,
			Amount: base,
			DueAt:  approvedAt.Add(time.Duration(i+1) * l.Interval()),
		}
	}
	out[0].Amount += rem
	return out
}
