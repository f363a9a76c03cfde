package loan

import "time"

var transitions = map[Status][]Status{
	StatusPendingGuarantors: {StatusGuaranteed, StatusCancelled},
	StatusGuaranteed:        {StatusPendingGuarantors, StatusApproved, StatusCancelled},
	StatusApproved:          {StatusActive},
	StatusActive:            {StatusFullyRepaid, StatusDefaulted},
}

// CanTransitionTo reports whether the state machine allows s -> to.
func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition moves the loan to status `to` or returns ErrInvalidTransition.
func (l *Loan) Transition(to Status, now time.Time) error {
	if !l.Status.CanTransitionTo(to) {
		return ErrInvalidTransition
	}
	l.SetStatus(to, now)
	return nil
}

// ApplyPledgeTotal stores the recomputed pledge total and moves between
// PendingGuarantors and Guaranteed when the threshold is crossed. Only those
// two states are affected; it reports whether the status changed.
func (l *Loan) ApplyPledgeTotal(total int64, now time.Time) bool {
	l.TotalPledged = total
	switch {
	case l.Status == StatusPendingGuarantors && total >= l.Threshold:
		l.SetStatus(StatusGuaranteed, now)
		return true
	case l.Status == StatusGuaranteed && total < l.Threshold:
		l.SetStatus(StatusPendingGuarantors, now)
		return true
	}
	return false
}
