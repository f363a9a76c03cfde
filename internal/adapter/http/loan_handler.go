package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	domain "github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/usecase/loan"
)

type LoanHandler struct{ uc *loan.Usecase }

func NewLoanHandler(uc *loan.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

type requestLoanReq struct {
	Rail             string   `json:"rail"                      validate:"required,rail"`
	Asset            string   `json:"asset"`
	Principal        int64    `json:"principal"                 validate:"gt=0"`
	Threshold        int64    `json:"threshold"                 validate:"gte=0"`
	InstallmentCount int      `json:"installment_count"         validate:"gte=0,lte=10000"`
	IntervalSecs     int64    `json:"installment_interval_secs" validate:"gte=0,lte=3153600000"`
	Guarantors       []string `json:"guarantors"                validate:"required,min=1,unique,dive,address"`
}

type amountReq struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

func (h *LoanHandler) RequestLoan(c echo.Context) error {
	var req requestLoanReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.RequestLoan(c.Request().Context(), Caller(c), loan.RequestLoanInput{
		Rail:             domain.Rail(req.Rail),
		Asset:            req.Asset,
		Principal:        req.Principal,
		Threshold:        req.Threshold,
		InstallmentCount: req.InstallmentCount,
		IntervalSecs:     req.IntervalSecs,
		Guarantors:       req.Guarantors,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	dto, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// ListLoans lists the loans of ?borrower=, defaulting to the caller.
func (h *LoanHandler) ListLoans(c echo.Context) error {
	borrower := c.QueryParam("borrower")
	if borrower == "" {
		borrower = Caller(c)
	}
	list, err := h.uc.ListByBorrower(c.Request().Context(), borrower)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *LoanHandler) Approve(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	dto, err := h.uc.ApproveAndDisburse(c.Request().Context(), Caller(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) Repay(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	var req amountReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.Repay(c.Request().Context(), Caller(c), id, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) RecordOffLedgerRepayment(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	var req amountReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.RecordOffLedgerRepayment(c.Request().Context(), Caller(c), id, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) MarkDefault(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	dto, err := h.uc.MarkDefault(c.Request().Context(), Caller(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) Cancel(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	dto, err := h.uc.Cancel(c.Request().Context(), Caller(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
