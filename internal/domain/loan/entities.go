package loan

import (
	"time"

	"github.com/kefkio/bloc-sacco/pkg/id"
)

type Status string

const (
	StatusPendingGuarantors Status = "pending_guarantors"
	StatusGuaranteed        Status = "guaranteed"
	StatusApproved          Status = "approved"
	StatusActive            Status = "active"
	StatusFullyRepaid       Status = "fully_repaid"
	StatusDefaulted         Status = "defaulted"
	StatusCancelled         Status = "cancelled"
)

// Terminal states are kept as history and never transition again.
func (s Status) Terminal() bool {
	return s == StatusFullyRepaid || s == StatusDefaulted || s == StatusCancelled
}

// PreDisbursement reports whether no principal has moved yet.
func (s Status) PreDisbursement() bool {
	return s == StatusPendingGuarantors || s == StatusGuaranteed
}

type Rail string

const (
	RailNative Rail = "native"
	RailToken  Rail = "token"
	RailFiat   Rail = "fiat"
)

func (r Rail) Valid() bool { return r == RailNative || r == RailToken || r == RailFiat }

// OnLedger rails move funds through the settlement adapter.
func (r Rail) OnLedger() bool { return r == RailNative || r == RailToken }

// NativeAsset identifies the native rail's asset in balances and custody.
const NativeAsset = "native"

type Loan struct {
	ID               uint64     `gorm:"primaryKey;column:id;autoIncrement" json:"loan_id"`
	Borrower         string     `gorm:"size:42;not null;index:idx_loans_borrower" json:"borrower"`
	Rail             Rail       `gorm:"size:8;not null" json:"rail"`
	Asset            string     `gorm:"size:42;not null" json:"asset"`
	Principal        int64      `gorm:"not null" json:"principal"`
	Status           Status     `gorm:"size:24;not null;index" json:"status"`
	Threshold        int64      `gorm:"not null" json:"threshold"`
	TotalPledged     int64      `gorm:"not null;default:0" json:"total_pledged"`
	TotalRepaid      int64      `gorm:"not null;default:0" json:"total_repaid"`
	AccruedPenalty   int64      `gorm:"not null;default:0" json:"accrued_penalty"`
	PenaltyPaid      int64      `gorm:"not null;default:0" json:"penalty_paid"`
	InstallmentCount int        `gorm:"not null" json:"installment_count"`
	IntervalSecs     int64      `gorm:"column:installment_interval_secs;not null" json:"installment_interval_secs"`
	NextInstallment  int        `gorm:"not null;default:0" json:"next_installment"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	DisbursedAt      *time.Time `json:"disbursed_at,omitempty"`
	StatusUpdatedAt  time.Time  `json:"status_updated_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Installments []Installment `gorm:"foreignKey:LoanID" json:"installments,omitempty"`
}

func (Loan) TableName() string { return "loans" }

func (l *Loan) Interval() time.Duration { return time.Duration(l.IntervalSecs) * time.Second }

// Outstanding is the principal still owed, penalty excluded.
func (l *Loan) Outstanding() int64 { return l.Principal - l.TotalRepaid }

// Settled is the full-repayment condition.
func (l *Loan) Settled() bool { return l.TotalRepaid == l.Principal && l.AccruedPenalty == 0 }

// SetStatus records a transition and its timestamp.
func (l *Loan) SetStatus(s Status, now time.Time) {
	l.Status = s
	l.StatusUpdatedAt = now
}

// CurrentInstallment returns the installment at the next-unpaid index, or nil when the
// schedule is empty or exhausted.
func (l *Loan) CurrentInstallment() *Installment {
	if l.NextInstallment < 0 || l.NextInstallment >= len(l.Installments) {
		return nil
	}
	return &l.Installments[l.NextInstallment]
}

type Installment struct {
	ID             uint64    `gorm:"primaryKey;column:id" json:"-"`
	LoanID         uint64    `gorm:"not null;uniqueIndex:ux_installments_loan_seq" json:"-"`
	Seq            int       `gorm:"not null;uniqueIndex:ux_installments_loan_seq" json:"seq"`
	Amount         int64     `gorm:"not null" json:"amount"`
	DueAt          time.Time `gorm:"not null" json:"due_at"`
	PaidAmount     int64     `gorm:"not null;default:0" json:"paid_amount"`
	IsPaid         bool      `gorm:"not null;default:false" json:"is_paid"`
	PenaltyCharged bool      `gorm:"not null;default:false" json:"penalty_charged"`
}

func (Installment) TableName() string { return "installments" }

func (i *Installment) Remaining() int64 { return i.Amount - i.PaidAmount }

// ValidAsset accepts the native sentinel or a token address.
func ValidAsset(asset string) bool { return asset == NativeAsset || id.ValidAddress(asset) }
