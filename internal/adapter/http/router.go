package http

import "github.com/labstack/echo/v4"

type Handlers struct {
	Health     *Handler
	Members    *MemberHandler
	Loans      *LoanHandler
	Guarantors *GuarantorHandler
	Custody    *CustodyHandler
	Admin      *AdminHandler
	Wallets    *WalletHandler
}

// Mount registers /health publicly and every other route behind mw.
func (h Handlers) Mount(e *echo.Echo, mw ...echo.MiddlewareFunc) {
	e.GET("/health", h.Health.Health)

	g := e.Group("/v1", mw...)

	g.POST("/members", h.Members.Register)
	g.POST("/members/:address", h.Members.RegisterOnBehalf)
	g.PUT("/members/:address/verification", h.Members.SetVerification)
	g.GET("/members/:address", h.Members.GetStatus)

	g.POST("/loans", h.Loans.RequestLoan)
	g.GET("/loans", h.Loans.ListLoans)
	g.GET("/loans/:loan_id", h.Loans.GetLoan)
	g.POST("/loans/:loan_id/approve", h.Loans.Approve)
	g.POST("/loans/:loan_id/repayments", h.Loans.Repay)
	g.POST("/loans/:loan_id/offledger-repayments", h.Loans.RecordOffLedgerRepayment)
	g.POST("/loans/:loan_id/default", h.Loans.MarkDefault)
	g.POST("/loans/:loan_id/cancel", h.Loans.Cancel)

	g.POST("/loans/:loan_id/pledges", h.Guarantors.Pledge)
	g.POST("/loans/:loan_id/offledger-pledges", h.Guarantors.RecordOffLedgerPledge)
	g.GET("/loans/:loan_id/pledges", h.Guarantors.ListPledges)
	g.GET("/loans/:loan_id/pledges/:guarantor", h.Guarantors.GetPledge)
	g.PUT("/loans/:loan_id/threshold", h.Guarantors.AdjustThreshold)

	g.POST("/loans/:loan_id/releases", h.Custody.ReleaseAll)
	g.POST("/loans/:loan_id/releases/:guarantor", h.Custody.ReleaseOne)
	g.POST("/loans/:loan_id/withdrawals", h.Custody.Withdraw)
	g.GET("/loans/:loan_id/balances", h.Custody.ListBalances)
	g.GET("/loans/:loan_id/balances/:holder", h.Custody.GetBalance)

	g.PUT("/admin/operators/:address", h.Admin.GrantOperator)
	g.DELETE("/admin/operators/:address", h.Admin.RevokeOperator)
	g.GET("/params", h.Admin.GetParams)
	g.PUT("/admin/params", h.Admin.UpdateParams)

	g.POST("/wallets/deposits", h.Wallets.RecordDeposit)
	g.POST("/custody/funding", h.Wallets.FundCustody)
	g.GET("/wallets/:address", h.Wallets.WalletBalance)
	g.GET("/custody", h.Wallets.CustodyBalance)
}
