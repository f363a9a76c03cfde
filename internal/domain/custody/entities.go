package custody

import (
	"time"

	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
)

var ErrNothingToWithdraw = apperr.New(apperr.KindInvariant, "nothing to withdraw")

// Balance is what holder may pull for (loan, asset). Credited and Withdrawn are
// cumulative so that Credited == Withdrawn + Amount always holds.
type Balance struct {
	ID        uint64    `gorm:"primaryKey;column:id" json:"-"`
	LoanID    uint64    `gorm:"not null;uniqueIndex:ux_balances_loan_holder_asset" json:"loan_id"`
	Holder    string    `gorm:"size:42;not null;uniqueIndex:ux_balances_loan_holder_asset" json:"holder"`
	Asset     string    `gorm:"size:42;not null;uniqueIndex:ux_balances_loan_holder_asset" json:"asset"`
	Amount    int64     `gorm:"not null;default:0" json:"amount"`
	Credited  int64     `gorm:"not null;default:0" json:"credited"`
	Withdrawn int64     `gorm:"not null;default:0" json:"withdrawn"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Balance) TableName() string { return "withdrawable_balances" }

func (b *Balance) Credit(amount int64) {
	b.Amount += amount
	b.Credited += amount
}

// Drain zeroes the balance and returns what was held.
func (b *Balance) Drain() int64 {
	amt := b.Amount
	b.Amount = 0
	b.Withdrawn += amt
	return amt
}
