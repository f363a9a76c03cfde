package loan

import "time"

// PenaltyPolicy carries the protocol parameters used by lazy penalty accrual.
type PenaltyPolicy struct {
	Grace          time.Duration
	DefaultPercent int64
	MaxPercent     int64
}

// Cap is the most penalty a loan may carry at once.
func (p PenaltyPolicy) Cap(principal int64) int64 { return PercentOf(principal, p.MaxPercent) }

// PercentOf returns floor(amount * pct / 100) for amount >= 0 and 0 <= pct <= 100
// without forming the full product, so it holds for any int64 amount.
func PercentOf(amount, pct int64) int64 {
	return amount/100*pct + amount%100*pct/100
}

// AccruePenalty evaluates only the installment at the next-unpaid index. An
// installment is charged at most once, and only after due date plus grace. The
// charge is clipped to the cap; the clipped excess is dropped. Returns the amount
// actually added to AccruedPenalty.
func AccruePenalty(l *Loan, now time.Time, p PenaltyPolicy) int64 {
	inst := l.CurrentInstallment()
	if inst == nil || inst.IsPaid || inst.PenaltyCharged {
		return 0
	}
	if !now.After(inst.DueAt.Add(p.Grace)) {
		return 0
	}
	inst.PenaltyCharged = true

	charge := PercentOf(inst.Amount, p.DefaultPercent)
	if room := p.Cap(l.Principal) - l.AccruedPenalty; charge > room {
		charge = room
	}
	if charge <= 0 {
		return 0
	}
	l.AccruedPenalty += charge
	return charge
}

// Overdue reports whether the current installment is past its due date.
func (l *Loan) Overdue(now time.Time) bool {
	inst := l.CurrentInstallment()
	return inst != nil && !inst.IsPaid && now.After(inst.DueAt)
}
