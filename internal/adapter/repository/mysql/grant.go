package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
)

type GrantRepository struct{ db *gorm.DB }

func NewGrantRepository(db *gorm.DB) *GrantRepository { return &GrantRepository{db: db} }

func (r *GrantRepository) Grant(ctx context.Context, g *access.Grant) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(g).Error
}

func (r *GrantRepository) Revoke(ctx context.Context, address string, role access.Role) error {
	return r.db.WithContext(ctx).
		Where("address = ? AND role = ?", address, role).
		Delete(&access.Grant{}).Error
}

func (r *GrantRepository) Has(ctx context.Context, address string, role access.Role) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&access.Grant{}).
		Where("address = ? AND role = ?", address, role).
		Count(&n).Error
	return n > 0, err
}
