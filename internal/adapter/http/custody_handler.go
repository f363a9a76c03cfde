package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/usecase/custody"
)

type CustodyHandler struct{ uc *custody.Usecase }

func NewCustodyHandler(uc *custody.Usecase) *CustodyHandler { return &CustodyHandler{uc: uc} }

type withdrawReq struct {
	// empty or "native" withdraws the native balance, otherwise a token address
	Asset string `json:"asset"`
}

func (h *CustodyHandler) ReleaseOne(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	dto, err := h.uc.ReleaseOne(c.Request().Context(), Caller(c), id, c.Param("guarantor"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *CustodyHandler) ReleaseAll(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	list, err := h.uc.ReleaseAll(c.Request().Context(), Caller(c), id)
	if err != nil {
		return writeError(c, err)
	}
	if list == nil {
		list = []custody.ReleaseDTO{}
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CustodyHandler) Withdraw(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	var req withdrawReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	var (
		dto *custody.WithdrawalDTO
		err error
	)
	if req.Asset == "" || req.Asset == loan.NativeAsset {
		dto, err = h.uc.Withdraw(c.Request().Context(), Caller(c), id)
	} else {
		dto, err = h.uc.WithdrawToken(c.Request().Context(), Caller(c), id, req.Asset)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *CustodyHandler) ListBalances(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	list, err := h.uc.ListBalances(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// GetBalance reports the withdrawable balance of :holder for ?asset=.
func (h *CustodyHandler) GetBalance(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	dto, err := h.uc.GetBalance(c.Request().Context(), id, c.Param("holder"), c.QueryParam("asset"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
