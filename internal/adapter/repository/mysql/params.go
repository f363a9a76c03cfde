package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/kefkio/bloc-sacco/internal/domain/params"
)

type ParamsRepository struct{ db *gorm.DB }

func NewParamsRepository(db *gorm.DB) *ParamsRepository { return &ParamsRepository{db: db} }

func (r *ParamsRepository) Get(ctx context.Context) (*params.Params, error) {
	var out params.Params
	res := r.db.WithContext(ctx).First(&out, params.SingletonID)
	return &out, res.Error
}

func (r *ParamsRepository) Save(ctx context.Context, p *params.Params) error {
	p.ID = params.SingletonID
	return r.db.WithContext(ctx).Save(p).Error
}
