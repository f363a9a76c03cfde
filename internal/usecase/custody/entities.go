package custody

type BalanceDTO struct {
	LoanID    uint64 `json:"loan_id"`
	Holder    string `json:"holder"`
	Asset     string `json:"asset"`
	Amount    int64  `json:"amount"`
	Credited  int64  `json:"credited"`
	Withdrawn int64  `json:"withdrawn"`
}

type ReleaseDTO struct {
	LoanID    uint64 `json:"loan_id"`
	Guarantor string `json:"guarantor"`
	Asset     string `json:"asset,omitempty"`
	Amount    int64  `json:"amount"`
	OnLedger  bool   `json:"on_ledger"`
}

type WithdrawalDTO struct {
	LoanID uint64 `json:"loan_id"`
	Holder string `json:"holder"`
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}
