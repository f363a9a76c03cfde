// Package settlement is a custodial double-entry vault backing the native and
// token rails. Every movement writes one debit and one credit entry and keeps
// per-account running balances.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
	domain "github.com/kefkio/bloc-sacco/internal/domain/settlement"
	"github.com/kefkio/bloc-sacco/internal/infrastructure/metrics"
	"github.com/kefkio/bloc-sacco/pkg/id"
)

// External is the counterparty of deposits arriving from outside the vault.
const External = "external"

type Kind string

const (
	KindTransferIn  Kind = "transfer_in"
	KindTransferOut Kind = "transfer_out"
	KindDeposit     Kind = "deposit"
	KindFund        Kind = "fund_custody"
)

type Account struct {
	ID        uint64    `gorm:"primaryKey;column:id" json:"-"`
	Holder    string    `gorm:"size:42;not null;uniqueIndex:ux_vault_accounts_holder_asset" json:"holder"`
	Asset     string    `gorm:"size:42;not null;uniqueIndex:ux_vault_accounts_holder_asset" json:"asset"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string { return "vault_accounts" }

type Entry struct {
	ID        uint64    `gorm:"primaryKey;column:id"`
	Ref       string    `gorm:"size:32;not null;index"`
	Kind      Kind      `gorm:"size:16;not null"`
	Holder    string    `gorm:"size:42;not null;index"`
	Asset     string    `gorm:"size:42;not null"`
	Debit     int64     `gorm:"not null;default:0"`
	Credit    int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Entry) TableName() string { return "vault_entries" }

func Models() []any { return []any{&Account{}, &Entry{}} }

func Migrate(db *gorm.DB) error { return db.AutoMigrate(Models()...) }

// Vault implements the settlement adapter on top of a gorm handle. Bound to a
// transaction, its movements commit or roll back with the caller's writes.
type Vault struct {
	db    *gorm.DB
	valid func(asset string) bool
}

func NewVault(db *gorm.DB, validAsset func(asset string) bool) *Vault {
	return &Vault{db: db, valid: validAsset}
}

// Factory returns a constructor suitable for the unit of work.
func Factory(validAsset func(asset string) bool) func(tx *gorm.DB) domain.Adapter {
	return func(tx *gorm.DB) domain.Adapter { return NewVault(tx, validAsset) }
}

func (v *Vault) TransferIn(ctx context.Context, asset, source string, amount int64) error {
	return v.observe(KindTransferIn, asset, amount, func() error {
		return v.move(ctx, KindTransferIn, asset, source, domain.Custody, amount)
	})
}

func (v *Vault) TransferOut(ctx context.Context, asset, destination string, amount int64) error {
	return v.observe(KindTransferOut, asset, amount, func() error {
		return v.move(ctx, KindTransferOut, asset, domain.Custody, destination, amount)
	})
}

func (v *Vault) CustodyBalance(ctx context.Context, asset string) (int64, error) {
	return v.WalletBalance(ctx, domain.Custody, asset)
}

// RecordDeposit credits holder with value that arrived from outside the vault.
func (v *Vault) RecordDeposit(ctx context.Context, holder, asset string, amount int64) error {
	return v.observe(KindDeposit, asset, amount, func() error {
		return v.move(ctx, KindDeposit, asset, External, holder, amount)
	})
}

// FundCustody moves funder's wallet balance into custody as disbursement liquidity.
func (v *Vault) FundCustody(ctx context.Context, funder, asset string, amount int64) error {
	return v.observe(KindFund, asset, amount, func() error {
		return v.move(ctx, KindFund, asset, funder, domain.Custody, amount)
	})
}

func (v *Vault) WalletBalance(ctx context.Context, holder, asset string) (int64, error) {
	var a Account
	err := v.db.WithContext(ctx).Where("holder = ? AND asset = ?", holder, asset).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return a.Balance, err
}

func (v *Vault) observe(kind Kind, asset string, amount int64, fn func() error) error {
	err := fn()
	metrics.ObserveSettlement(string(kind), asset, amount, err)
	return err
}

func (v *Vault) move(ctx context.Context, kind Kind, asset, from, to string, amount int64) error {
	if amount <= 0 {
		return apperr.ErrInvalidAmount
	}
	if v.valid != nil && !v.valid(asset) {
		return domain.ErrInvalidAsset
	}
	// nested inside a caller's transaction this becomes a savepoint
	return v.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return v.post(db, kind, asset, from, to, amount)
	})
}

func (v *Vault) post(db *gorm.DB, kind Kind, asset, from, to string, amount int64) error {
	src, err := v.account(db, from, asset)
	if err != nil {
		return err
	}
	// the external counterparty is unbounded
	if from != External && src.Balance < amount {
		return fmt.Errorf("%s %s from %s: %w", kind, asset, from, domain.ErrInsufficientFunds)
	}
	dst, err := v.account(db, to, asset)
	if err != nil {
		return err
	}
	src.Balance -= amount
	dst.Balance += amount
	if err := db.Save(src).Error; err != nil {
		return err
	}
	if err := db.Save(dst).Error; err != nil {
		return err
	}

	ref := id.NewID32()
	entries := []Entry{
		{Ref: ref, Kind: kind, Holder: from, Asset: asset, Debit: amount},
		{Ref: ref, Kind: kind, Holder: to, Asset: asset, Credit: amount},
	}
	return db.Create(&entries).Error
}

// account loads (holder, asset) with a row lock, creating it at zero if absent.
func (v *Vault) account(db *gorm.DB, holder, asset string) (*Account, error) {
	var a Account
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("holder = ? AND asset = ?", holder, asset).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		a = Account{Holder: holder, Asset: asset}
		if err := db.Create(&a).Error; err != nil {
			return nil, err
		}
		return &a, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

var (
	_ domain.Adapter = (*Vault)(nil)
	_ domain.Funding = (*Vault)(nil)
)
