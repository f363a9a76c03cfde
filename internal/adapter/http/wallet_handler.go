package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kefkio/bloc-sacco/internal/usecase/wallet"
)

type WalletHandler struct{ uc *wallet.Usecase }

func NewWalletHandler(uc *wallet.Usecase) *WalletHandler { return &WalletHandler{uc: uc} }

type movementReq struct {
	Holder string `json:"holder" validate:"required,address"`
	Asset  string `json:"asset"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

func (h *WalletHandler) RecordDeposit(c echo.Context) error {
	var req movementReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.RecordDeposit(c.Request().Context(), Caller(c), req.Holder, req.Asset, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// FundCustody moves liquidity from the holder's wallet into custody.
func (h *WalletHandler) FundCustody(c echo.Context) error {
	var req movementReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.FundCustody(c.Request().Context(), Caller(c), req.Holder, req.Asset, req.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *WalletHandler) WalletBalance(c echo.Context) error {
	dto, err := h.uc.WalletBalance(c.Request().Context(), c.Param("address"), c.QueryParam("asset"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *WalletHandler) CustodyBalance(c echo.Context) error {
	dto, err := h.uc.CustodyBalance(c.Request().Context(), c.QueryParam("asset"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
