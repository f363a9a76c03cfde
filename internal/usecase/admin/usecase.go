package admin

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/internal/domain/params"
	"github.com/kefkio/bloc-sacco/internal/domain/uow"
	"github.com/kefkio/bloc-sacco/internal/infrastructure/metrics"
	"github.com/kefkio/bloc-sacco/pkg/id"
)

type Usecase struct {
	uow      uow.UnitOfWork
	params   params.Repository
	access   access.Checker
	defaults params.Params
	log      *slog.Logger
}

func NewUsecase(u uow.UnitOfWork, p params.Repository, c access.Checker, defaults params.Params, logger *slog.Logger) *Usecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Usecase{
		uow:      u,
		params:   p,
		access:   c,
		defaults: defaults,
		log:      logger.With("module", "admin", "layer", "usecase"),
	}
}

func (u *Usecase) GrantOperator(ctx context.Context, admin, addr string) (err error) {
	defer func() { metrics.ObserveLoanOp("grant_operator", err) }()
	return u.setOperator(ctx, admin, addr, true)
}

func (u *Usecase) RevokeOperator(ctx context.Context, admin, addr string) (err error) {
	defer func() { metrics.ObserveLoanOp("revoke_operator", err) }()
	return u.setOperator(ctx, admin, addr, false)
}

func (u *Usecase) setOperator(ctx context.Context, admin, addr string, grant bool) error {
	if err := access.Require(ctx, u.access, admin, access.RoleAdmin); err != nil {
		return err
	}
	admin = id.NormalizeAddress(admin)
	addr = id.NormalizeAddress(addr)
	if !id.ValidAddress(addr) {
		return apperr.ErrInvalidIdentity
	}
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		typ := event.OperatorRevoked
		if grant {
			typ = event.OperatorGranted
			if err := r.Grants.Grant(ctx, &access.Grant{Address: addr, Role: access.RoleOperator, GrantedBy: admin}); err != nil {
				return err
			}
		} else if err := r.Grants.Revoke(ctx, addr, access.RoleOperator); err != nil {
			return err
		}
		return r.Events.Append(ctx, event.New(typ, 0, addr, 0, map[string]string{"by": admin}))
	})
	if err != nil {
		return err
	}
	u.log.InfoContext(ctx, "operator role changed", "operation", "set_operator", "outcome", "success",
		"address", addr, "granted", grant, "by", admin)
	return nil
}

// GetParams returns the stored parameters, or the configured defaults before
// the first update.
func (u *Usecase) GetParams(ctx context.Context) (*params.Params, error) {
	p, err := u.params.Get(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d := u.defaults
		return &d, nil
	}
	return p, err
}

func (u *Usecase) UpdateParams(ctx context.Context, admin string, p params.Params) (out *params.Params, err error) {
	defer func() { metrics.ObserveLoanOp("update_params", err) }()

	if err := access.Require(ctx, u.access, admin, access.RoleAdmin); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedBy = id.NormalizeAddress(admin)
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		if err := r.Params.Save(ctx, &p); err != nil {
			return err
		}
		return r.Events.Append(ctx, event.New(event.ParamsUpdated, 0, p.UpdatedBy, 0, p))
	})
	if err != nil {
		return nil, err
	}
	u.log.InfoContext(ctx, "protocol params updated", "operation", "update_params", "outcome", "success",
		"min_loan_amount", p.MinLoanAmount, "grace_period_secs", p.GracePeriodSecs,
		"default_penalty_percent", p.DefaultPenaltyPercent, "max_penalty_percent", p.MaxPenaltyPercent)
	return &p, nil
}

// EnsureParams seeds the stored row from the defaults on first start. An
// existing row is left untouched.
func (u *Usecase) EnsureParams(ctx context.Context) error {
	if err := u.defaults.Validate(); err != nil {
		return err
	}
	_, err := u.params.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	d := u.defaults
	d.UpdatedBy = ""
	return u.params.Save(ctx, &d)
}
