package guarantor

import (
	"time"

	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
)

var (
	ErrNotFound         = apperr.New(apperr.KindNotFound, "pledge not found")
	ErrNotAppointed     = apperr.New(apperr.KindPrecondition, "caller is not an appointed guarantor")
	ErrAlreadyPledged   = apperr.New(apperr.KindInvariant, "guarantor already pledged")
	ErrAlreadyReleased  = apperr.New(apperr.KindInvariant, "pledge already released")
	ErrNothingToRelease = apperr.New(apperr.KindPrecondition, "pledge carries no collateral")
)

// Pledge is one guarantor's appointment and, once agreed, collateral for a loan.
// Agreed is a one-way latch; Returned flips once the collateral has been handed
// back (credited or, off-ledger, simply marked).
type Pledge struct {
	ID         uint64     `gorm:"primaryKey;column:id" json:"-"`
	LoanID     uint64     `gorm:"not null;uniqueIndex:ux_pledges_loan_guarantor" json:"loan_id"`
	Guarantor  string     `gorm:"size:42;not null;uniqueIndex:ux_pledges_loan_guarantor" json:"guarantor"`
	Appointed  bool       `gorm:"not null" json:"appointed"`
	Amount     int64      `gorm:"not null;default:0" json:"amount"`
	Pledged    int64      `gorm:"not null;default:0" json:"pledged"`
	OnLedger   bool       `gorm:"not null;default:false" json:"on_ledger"`
	IsToken    bool       `gorm:"not null;default:false" json:"is_token"`
	Asset      string     `gorm:"size:42" json:"asset"`
	Agreed     bool       `gorm:"not null;default:false" json:"agreed"`
	Returned   bool       `gorm:"not null;default:false" json:"returned"`
	PledgedAt  *time.Time `json:"pledged_at,omitempty"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Pledge) TableName() string { return "guarantor_pledges" }

// Releasable reports whether the pledge still holds collateral to hand back.
func (p *Pledge) Releasable() bool { return p.Agreed && !p.Returned && p.Amount > 0 }

// MarkReturned zeroes the held amount and latches Returned.
func (p *Pledge) MarkReturned(now time.Time) {
	p.Returned = true
	p.Amount = 0
	p.ReturnedAt = &now
}

// Total sums the currently held collateral. Returned pledges hold zero.
func Total(ps []Pledge) int64 {
	var sum int64
	for _, p := range ps {
		if p.Agreed && !p.Returned {
			sum += p.Amount
		}
	}
	return sum
}
