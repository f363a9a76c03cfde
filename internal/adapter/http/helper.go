package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// decode binds and validates req. When it returns false the 400/422 response
// has already been written and err is the write error.
func decode(c echo.Context, req any) (ok bool, err error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	return true, nil
}

// loanID parses the :loan_id path param; ids start at 1.
func loanID(c echo.Context) (uint64, bool) {
	n, err := strconv.ParseUint(c.Param("loan_id"), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

func badLoanID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan_id path param"})
}
