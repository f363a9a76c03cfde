package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kefkio/bloc-sacco/internal/usecase/guarantor"
)

type GuarantorHandler struct{ uc *guarantor.Usecase }

func NewGuarantorHandler(uc *guarantor.Usecase) *GuarantorHandler { return &GuarantorHandler{uc: uc} }

type pledgeReq struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

type offLedgerPledgeReq struct {
	Guarantor string `json:"guarantor" validate:"required,address"`
	Amount    int64  `json:"amount"    validate:"gt=0"`
}

type thresholdReq struct {
	Threshold int64 `json:"threshold" validate:"gt=0"`
}

func (h *GuarantorHandler) Pledge(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	var req pledgeReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	res, err := h.uc.Pledge(c.Request().Context(), Caller(c), guarantor.PledgeInput{
		LoanID: id,
		Asset:  req.Asset,
		Amount: req.Amount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *GuarantorHandler) RecordOffLedgerPledge(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	var req offLedgerPledgeReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	res, err := h.uc.RecordOffLedgerPledge(c.Request().Context(), Caller(c), id, req.Guarantor, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *GuarantorHandler) AdjustThreshold(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	var req thresholdReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.AdjustThreshold(c.Request().Context(), Caller(c), id, req.Threshold)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *GuarantorHandler) ListPledges(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	list, err := h.uc.ListPledges(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *GuarantorHandler) GetPledge(c echo.Context) error {
	id, ok := loanID(c)
	if !ok {
		return badLoanID(c)
	}
	dto, err := h.uc.GetPledge(c.Request().Context(), id, c.Param("guarantor"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
