package loan

// Allocation is the outcome of applying one payment to a loan.
type Allocation struct {
	PenaltyPaid      int64
	PrincipalPaid    int64
	Remainder        int64
	PaidInstallments []int
}

// Allocate applies amount in strict order: outstanding penalty first, then the
// current and following installments in schedule order, skipping paid ones. An
// installment is marked paid only once fully covered. Loans without a schedule
// take payments straight against outstanding principal. Whatever cannot be
// applied is returned as Remainder.
func Allocate(l *Loan, amount int64) Allocation {
	var a Allocation
	left := amount

	if l.AccruedPenalty > 0 && left > 0 {
		p := min(left, l.AccruedPenalty)
		l.AccruedPenalty -= p
		l.PenaltyPaid += p
		a.PenaltyPaid = p
		left -= p
	}

	if len(l.Installments) == 0 {
		p := min(left, l.Outstanding())
		l.TotalRepaid += p
		a.PrincipalPaid = p
		a.Remainder = left - p
		return a
	}

	for i := l.NextInstallment; i < len(l.Installments) && left > 0; i++ {
		inst := &l.Installments[i]
		if inst.IsPaid {
			continue
		}
		p := min(left, inst.Remaining())
		inst.PaidAmount += p
		l.TotalRepaid += p
		a.PrincipalPaid += p
		left -= p
		if inst.PaidAmount == inst.Amount {
			inst.IsPaid = true
			a.PaidInstallments = append(a.PaidInstallments, inst.Seq)
		}
	}
	for l.NextInstallment < len(l.Installments) && l.Installments[l.NextInstallment].IsPaid {
		l.NextInstallment++
	}

	a.Remainder = left
	return a
}
