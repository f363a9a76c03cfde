package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
	"github.com/kefkio/bloc-sacco/pkg/lock"
)

// Guarded runs fn while holding key on g. A key that is already held, including
// by a nested call from inside fn, fails with apperr.ErrReentrantCall.
func Guarded(ctx context.Context, g lock.Guard, key string, fn func() error) error {
	release, err := g.Acquire(ctx, key)
	if errors.Is(err, lock.ErrHeld) {
		return apperr.ErrReentrantCall
	}
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

func LoanKey(loanID uint64) string { return fmt.Sprintf("loan:%d", loanID) }

func BalanceKey(loanID uint64, holder, asset string) string {
	return fmt.Sprintf("balance:%d:%s:%s", loanID, holder, asset)
}
