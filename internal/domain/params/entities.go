package params

import (
	"time"

	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
)

var ErrInvalidParams = apperr.New(apperr.KindPrecondition, "invalid protocol parameters")

// SingletonID is the primary key of the only protocol_params row.
const SingletonID = 1

type Params struct {
	ID                    uint64    `gorm:"primaryKey;column:id" json:"-"`
	MinLoanAmount         int64     `gorm:"not null" json:"min_loan_amount" yaml:"min_loan_amount"`
	GracePeriodSecs       int64     `gorm:"not null" json:"grace_period_secs" yaml:"grace_period_secs"`
	DefaultPenaltyPercent int64     `gorm:"not null" json:"default_penalty_percent" yaml:"default_penalty_percent"`
	MaxPenaltyPercent     int64     `gorm:"not null" json:"max_penalty_percent" yaml:"max_penalty_percent"`
	MaxInstallmentCount   int       `gorm:"not null;default:0" json:"max_installment_count" yaml:"max_installment_count"`
	UpdatedBy             string    `gorm:"size:42" json:"updated_by,omitempty" yaml:"-"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at" yaml:"-"`
}

func (Params) TableName() string { return "protocol_params" }

func (p Params) Validate() error {
	if p.MinLoanAmount < 0 || p.GracePeriodSecs < 0 || p.GracePeriodSecs > loan.MaxTermSecs ||
		p.DefaultPenaltyPercent < 0 || p.DefaultPenaltyPercent > 100 ||
		p.MaxPenaltyPercent < 0 || p.MaxPenaltyPercent > 100 ||
		p.MaxInstallmentCount < 0 || p.MaxInstallmentCount > loan.MaxInstallments {
		return ErrInvalidParams
	}
	return nil
}

// InstallmentLimit is the longest schedule a new loan may request. Zero means
// the hard ceiling.
func (p Params) InstallmentLimit() int {
	if p.MaxInstallmentCount == 0 {
		return loan.MaxInstallments
	}
	return p.MaxInstallmentCount
}

func (p Params) PenaltyPolicy() loan.PenaltyPolicy {
	return loan.PenaltyPolicy{
		Grace:          time.Duration(p.GracePeriodSecs) * time.Second,
		DefaultPercent: p.DefaultPenaltyPercent,
		MaxPercent:     p.MaxPenaltyPercent,
	}
}
