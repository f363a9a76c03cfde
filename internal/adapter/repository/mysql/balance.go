package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kefkio/bloc-sacco/internal/domain/custody"
)

type BalanceRepository struct{ db *gorm.DB }

func NewBalanceRepository(db *gorm.DB) *BalanceRepository { return &BalanceRepository{db: db} }

func (r *BalanceRepository) GetForUpdate(ctx context.Context, loanID uint64, holder, asset string) (*custody.Balance, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), loanID, holder, asset)
}

func (r *BalanceRepository) Get(ctx context.Context, loanID uint64, holder, asset string) (*custody.Balance, error) {
	return r.get(r.db.WithContext(ctx), loanID, holder, asset)
}

// get returns an unsaved zero balance for keys never credited.
func (r *BalanceRepository) get(db *gorm.DB, loanID uint64, holder, asset string) (*custody.Balance, error) {
	var out custody.Balance
	err := db.Where("loan_id = ? AND holder = ? AND asset = ?", loanID, holder, asset).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &custody.Balance{LoanID: loanID, Holder: holder, Asset: asset}, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *BalanceRepository) ListByLoan(ctx context.Context, loanID uint64) ([]custody.Balance, error) {
	var out []custody.Balance
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("id ASC").Find(&out)
	return out, res.Error
}

func (r *BalanceRepository) Save(ctx context.Context, b *custody.Balance) error {
	return r.db.WithContext(ctx).Save(b).Error
}
