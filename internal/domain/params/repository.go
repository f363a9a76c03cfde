package params

import "context"

type Repository interface {
	// Get returns the stored parameters, or gorm.ErrRecordNotFound before the
	// first Save.
	Get(ctx context.Context) (*Params, error)
	Save(ctx context.Context, p *Params) error
}
