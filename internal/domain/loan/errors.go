package loan

import "github.com/kefkio/bloc-sacco/internal/domain/apperr"

var (
	ErrNotFound            = apperr.New(apperr.KindNotFound, "loan not found")
	ErrInvalidTransition   = apperr.New(apperr.KindPrecondition, "loan not in a state that allows this operation")
	ErrAlreadyApproved     = apperr.New(apperr.KindInvariant, "loan already approved")
	ErrBelowMinimum        = apperr.New(apperr.KindPrecondition, "principal below minimum loan amount")
	ErrInvalidRail         = apperr.New(apperr.KindPrecondition, "invalid settlement rail")
	ErrInvalidAsset        = apperr.New(apperr.KindPrecondition, "invalid asset for rail")
	ErrWrongRail           = apperr.New(apperr.KindPrecondition, "operation not allowed on this settlement rail")
	ErrInvalidSchedule     = apperr.New(apperr.KindPrecondition, "invalid installment schedule")
	ErrNotBorrower         = apperr.New(apperr.KindPrecondition, "caller is not the borrower")
	ErrNotOverdue          = apperr.New(apperr.KindPrecondition, "current installment is not overdue")
	ErrInvalidThreshold    = apperr.New(apperr.KindPrecondition, "threshold must be positive")
	ErrNoGuarantors        = apperr.New(apperr.KindPrecondition, "at least one guarantor is required")
	ErrDuplicateGuarantor  = apperr.New(apperr.KindPrecondition, "duplicate guarantor")
	ErrBorrowerAsGuarantor = apperr.New(apperr.KindPrecondition, "borrower cannot guarantee own loan")
	ErrInvalidGuarantor    = apperr.New(apperr.KindPrecondition, "invalid guarantor identity")
)
