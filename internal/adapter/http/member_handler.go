package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	domain "github.com/kefkio/bloc-sacco/internal/domain/member"
	"github.com/kefkio/bloc-sacco/internal/usecase/member"
)

type MemberHandler struct{ uc *member.Usecase }

func NewMemberHandler(uc *member.Usecase) *MemberHandler { return &MemberHandler{uc: uc} }

type verificationReq struct {
	Status string `json:"status" validate:"required,verification"`
}

// Register enrols the caller.
func (h *MemberHandler) Register(c echo.Context) error {
	dto, err := h.uc.Register(c.Request().Context(), Caller(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *MemberHandler) RegisterOnBehalf(c echo.Context) error {
	dto, err := h.uc.RegisterOnBehalf(c.Request().Context(), Caller(c), c.Param("address"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *MemberHandler) SetVerification(c echo.Context) error {
	var req verificationReq
	if ok, err := decode(c, &req); !ok {
		return err
	}
	dto, err := h.uc.SetVerification(c.Request().Context(), Caller(c), c.Param("address"),
		domain.VerificationStatus(req.Status))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *MemberHandler) GetStatus(c echo.Context) error {
	dto, err := h.uc.GetStatus(c.Request().Context(), c.Param("address"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
