package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/kefkio/bloc-sacco/internal/domain/guarantor"
)

type PledgeRepository struct{ db *gorm.DB }

func NewPledgeRepository(db *gorm.DB) *PledgeRepository { return &PledgeRepository{db: db} }

func (r *PledgeRepository) CreateBatch(ctx context.Context, ps []guarantor.Pledge) error {
	if len(ps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&ps).Error
}

func (r *PledgeRepository) Get(ctx context.Context, loanID uint64, g string) (*guarantor.Pledge, error) {
	var out guarantor.Pledge
	res := r.db.WithContext(ctx).
		Where("loan_id = ? AND guarantor = ?", loanID, g).
		First(&out)
	return &out, res.Error
}

func (r *PledgeRepository) ListByLoan(ctx context.Context, loanID uint64) ([]guarantor.Pledge, error) {
	var out []guarantor.Pledge
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("id ASC").Find(&out)
	return out, res.Error
}

func (r *PledgeRepository) Save(ctx context.Context, p *guarantor.Pledge) error {
	return r.db.WithContext(ctx).Save(p).Error
}
