package guarantor

import "time"

type PledgeInput struct {
	LoanID uint64
	Asset  string
	Amount int64
}

type PledgeDTO struct {
	LoanID     uint64     `json:"loan_id"`
	Guarantor  string     `json:"guarantor"`
	Appointed  bool       `json:"appointed"`
	Agreed     bool       `json:"agreed"`
	Amount     int64      `json:"amount"`
	Pledged    int64      `json:"pledged"`
	OnLedger   bool       `json:"on_ledger"`
	IsToken    bool       `json:"is_token"`
	Asset      string     `json:"asset,omitempty"`
	Returned   bool       `json:"returned"`
	PledgedAt  *time.Time `json:"pledged_at,omitempty"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

type PledgeResult struct {
	Pledge       PledgeDTO `json:"pledge"`
	LoanStatus   string    `json:"loan_status"`
	TotalPledged int64     `json:"total_pledged"`
	Threshold    int64     `json:"threshold"`
}

type ThresholdDTO struct {
	LoanID       uint64 `json:"loan_id"`
	Threshold    int64  `json:"threshold"`
	TotalPledged int64  `json:"total_pledged"`
	LoanStatus   string `json:"loan_status"`
}
