package mysql

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	vault "github.com/kefkio/bloc-sacco/internal/adapter/settlement"
	loanDomain "github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/uow"
)

func openUowTestDB(t *testing.T) (*gorm.DB, *GormUoW) {
	t.Helper()
	db := openTestDB(t)
	if err := vault.Migrate(db); err != nil {
		t.Fatalf("migrate vault: %v", err)
	}
	return db, NewGormUoW(db, vault.Factory(loanDomain.ValidAsset))
}

func TestGormUoW_WithinTx_Commit(t *testing.T) {
	db, guow := openUowTestDB(t)
	ctx := context.Background()

	var id uint64
	err := guow.WithinTx(ctx, func(r uow.Repos) error {
		l := makeLoan()
		if err := r.Loans.Create(ctx, l); err != nil {
			return err
		}
		id = l.ID
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}
	if _, err := NewLoanRepository(db).GetByID(ctx, id); err != nil {
		t.Fatalf("committed loan missing: %v", err)
	}
}

func TestGormUoW_WithinTx_RollbackIncludesSettlement(t *testing.T) {
	db, guow := openUowTestDB(t)
	ctx := context.Background()
	v := vault.NewVault(db, loanDomain.ValidAsset)
	if err := v.RecordDeposit(ctx, addrA, loanDomain.NativeAsset, 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	boom := errors.New("boom")
	err := guow.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Loans.Create(ctx, makeLoan()); err != nil {
			return err
		}
		if err := r.Settlement.TransferIn(ctx, loanDomain.NativeAsset, addrA, 300); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	var n int64
	db.Model(&loanDomain.Loan{}).Count(&n)
	if n != 0 {
		t.Fatalf("loan row survived rollback")
	}
	if bal, _ := v.WalletBalance(ctx, addrA, loanDomain.NativeAsset); bal != 500 {
		t.Fatalf("wallet=%d, transfer survived rollback", bal)
	}
	if bal, _ := v.CustodyBalance(ctx, loanDomain.NativeAsset); bal != 0 {
		t.Fatalf("custody=%d, transfer survived rollback", bal)
	}
}

func TestGormUoW_WithinLoanTx(t *testing.T) {
	db, guow := openUowTestDB(t)
	ctx := context.Background()
	l := makeLoan()
	if err := NewLoanRepository(db).Create(ctx, l); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := guow.WithinLoanTx(ctx, l.ID, func(r uow.Repos, locked *loanDomain.Loan) error {
		if locked.ID != l.ID {
			t.Fatalf("locked wrong loan %d", locked.ID)
		}
		locked.Status = loanDomain.StatusCancelled
		return r.Loans.Save(ctx, locked)
	})
	if err != nil {
		t.Fatalf("WithinLoanTx: %v", err)
	}
	got, _ := NewLoanRepository(db).GetByID(ctx, l.ID)
	if got.Status != loanDomain.StatusCancelled {
		t.Fatalf("status=%s", got.Status)
	}

	err = guow.WithinLoanTx(ctx, 999, func(uow.Repos, *loanDomain.Loan) error {
		t.Fatal("fn must not run for a missing loan")
		return nil
	})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("want ErrRecordNotFound, got %v", err)
	}
}
