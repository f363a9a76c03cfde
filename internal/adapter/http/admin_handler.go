package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kefkio/bloc-sacco/internal/domain/params"
	"github.com/kefkio/bloc-sacco/internal/usecase/admin"
)

type AdminHandler struct{ uc *admin.Usecase }

func NewAdminHandler(uc *admin.Usecase) *AdminHandler { return &AdminHandler{uc: uc} }

type paramsReq struct {
	MinLoanAmount         int64 `json:"min_loan_amount"         validate:"gt=0"`
	GracePeriodSecs       int64 `json:"grace_period_secs"       validate:"gte=0,lte=3153600000"`
	DefaultPenaltyPercent int64 `json:"default_penalty_percent" validate:"gte=0,lte=100"`
	MaxPenaltyPercent     int64 `json:"max_penalty_percent"     validate:"gte=0,lte=100"`
	MaxInstallmentCount   int   `json:"max_installment_count"   validate:"gte=0,lte=10000"`
}

func (h *AdminHandler) GrantOperator(c echo.Context) error {
	if err := h.uc.GrantOperator(c.Request().Context(), Caller(c), c.Param("address")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) RevokeOperator(c echo.Context) error {
	if err := h.uc.RevokeOperator(c.Request().Context(), Caller(c), c.Param("address")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) GetParams(c echo.Context) error {
	p, err := h.uc.GetParams(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *AdminHandler) UpdateParams(c echo.Context) error {
	var req paramsReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	p, err := h.uc.UpdateParams(c.Request().Context(), Caller(c), params.Params{
		MinLoanAmount:         req.MinLoanAmount,
		GracePeriodSecs:       req.GracePeriodSecs,
		DefaultPenaltyPercent: req.DefaultPenaltyPercent,
		MaxPenaltyPercent:     req.MaxPenaltyPercent,
		MaxInstallmentCount:   req.MaxInstallmentCount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
