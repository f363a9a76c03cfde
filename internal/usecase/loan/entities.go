package loan

import (
	"time"

	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/usecase/custody"
)

type RequestLoanInput struct {
	Rail             loan.Rail
	Asset            string
	Principal        int64
	Threshold        int64
	InstallmentCount int
	IntervalSecs     int64
	Guarantors       []string
}

type InstallmentDTO struct {
	Seq            int       `json:"seq"`
	Amount         int64     `json:"amount"`
	DueAt          time.Time `json:"due_at"`
	PaidAmount     int64     `json:"paid_amount"`
	IsPaid         bool      `json:"is_paid"`
	PenaltyCharged bool      `json:"penalty_charged"`
}

type LoanDTO struct {
	LoanID           uint64           `json:"loan_id"`
	Borrower         string           `json:"borrower"`
	Rail             string           `json:"rail"`
	Asset            string           `json:"asset,omitempty"`
	Principal        int64            `json:"principal"`
	Status           string           `json:"status"`
	Threshold        int64            `json:"threshold"`
	TotalPledged     int64            `json:"total_pledged"`
	TotalRepaid      int64            `json:"total_repaid"`
	Outstanding      int64            `json:"outstanding"`
	AccruedPenalty   int64            `json:"accrued_penalty"`
	PenaltyPaid      int64            `json:"penalty_paid"`
	InstallmentCount int              `json:"installment_count"`
	IntervalSecs     int64            `json:"installment_interval_secs"`
	NextInstallment  int              `json:"next_installment"`
	Guarantors       []string         `json:"guarantors,omitempty"`
	Installments     []InstallmentDTO `json:"installments,omitempty"`
	ApprovedAt       *time.Time       `json:"approved_at,omitempty"`
	DisbursedAt      *time.Time       `json:"disbursed_at,omitempty"`
	StatusUpdatedAt  time.Time        `json:"status_updated_at"`
	CreatedAt        time.Time        `json:"created_at"`
}

// RepaymentDTO reports how one payment was applied. Remainder is the part that
// could not be applied; on ledger rails it has already been refunded.
type RepaymentDTO struct {
	LoanID           uint64               `json:"loan_id"`
	Amount           int64                `json:"amount"`
	PenaltyCharged   int64                `json:"penalty_charged"`
	PenaltyPaid      int64                `json:"penalty_paid"`
	PrincipalPaid    int64                `json:"principal_paid"`
	Remainder        int64                `json:"remainder"`
	Refunded         bool                 `json:"refunded"`
	InstallmentsPaid []int                `json:"installments_paid,omitempty"`
	Status           string               `json:"status"`
	Outstanding      int64                `json:"outstanding"`
	AccruedPenalty   int64                `json:"accrued_penalty"`
	Released         []custody.ReleaseDTO `json:"released,omitempty"`
}

func toDTO(l *loan.Loan, guarantors []string) *LoanDTO {
	dto := &LoanDTO{
		LoanID:           l.ID,
		Borrower:         l.Borrower,
		Rail:             string(l.Rail),
		Asset:            l.Asset,
		Principal:        l.Principal,
		Status:           string(l.Status),
		Threshold:        l.Threshold,
		TotalPledged:     l.TotalPledged,
		TotalRepaid:      l.TotalRepaid,
		Outstanding:      l.Outstanding(),
		AccruedPenalty:   l.AccruedPenalty,
		PenaltyPaid:      l.PenaltyPaid,
		InstallmentCount: l.InstallmentCount,
		IntervalSecs:     l.IntervalSecs,
		NextInstallment:  l.NextInstallment,
		Guarantors:       guarantors,
		ApprovedAt:       l.ApprovedAt,
		DisbursedAt:      l.DisbursedAt,
		StatusUpdatedAt:  l.StatusUpdatedAt,
		CreatedAt:        l.CreatedAt,
	}
	for _, inst := range l.Installments {
		dto.Installments = append(dto.Installments, InstallmentDTO{
			Seq:            inst.Seq,
			Amount:         inst.Amount,
			DueAt:          inst.DueAt,
			PaidAmount:     inst.PaidAmount,
			IsPaid:         inst.IsPaid,
			PenaltyCharged: inst.PenaltyCharged,
		})
	}
	return dto
}
