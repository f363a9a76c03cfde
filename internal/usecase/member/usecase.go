package member

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/internal/domain/member"
	"github.com/kefkio/bloc-sacco/internal/domain/uow"
	"github.com/kefkio/bloc-sacco/internal/infrastructure/metrics"
	"github.com/kefkio/bloc-sacco/pkg/id"
)

type Usecase struct {
	uow     uow.UnitOfWork
	members member.Repository
	access  access.Checker
	log     *slog.Logger
}

func NewUsecase(u uow.UnitOfWork, members member.Repository, c access.Checker, logger *slog.Logger) *Usecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Usecase{
		uow:     u,
		members: members,
		access:  c,
		log:     logger.With("module", "member", "layer", "usecase"),
	}
}

// Register enrols the caller. New members start in Pending until an operator
// reviews them.
func (u *Usecase) Register(ctx context.Context, self string) (dto *MemberDTO, err error) {
	defer func() { metrics.ObserveLoanOp("register", err) }()
	return u.register(ctx, self, self)
}

// RegisterOnBehalf enrols addr for an operator, e.g. after an offline KYC check.
func (u *Usecase) RegisterOnBehalf(ctx context.Context, operator, addr string) (dto *MemberDTO, err error) {
	defer func() { metrics.ObserveLoanOp("register_on_behalf", err) }()

	if err := access.Require(ctx, u.access, operator, access.RoleOperator); err != nil {
		return nil, err
	}
	return u.register(ctx, operator, addr)
}

func (u *Usecase) register(ctx context.Context, by, addr string) (*MemberDTO, error) {
	addr = id.NormalizeAddress(addr)
	by = id.NormalizeAddress(by)
	if !id.ValidAddress(addr) {
		return nil, apperr.ErrInvalidIdentity
	}

	var m *member.Member
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		existing, err := r.Members.GetByAddress(ctx, addr)
		switch {
		case err == nil && existing.Registered:
			return member.ErrAlreadyRegistered
		case err == nil:
			m = existing
			m.Registered = true
			m.Status = member.StatusPending
			m.RegisteredBy = by
			if err := r.Members.Save(ctx, m); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			m = &member.Member{Address: addr, Registered: true, Status: member.StatusPending, RegisteredBy: by}
			if err := r.Members.Create(ctx, m); err != nil {
				return err
			}
		default:
			return err
		}
		return r.Events.Append(ctx, event.New(event.MemberRegistered, 0, addr, 0,
			map[string]string{"registered_by": by}))
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = member.ErrAlreadyRegistered
	}
	if err != nil {
		u.log.WarnContext(ctx, "registration rejected", "operation", "register", "outcome", "failure",
			"address", addr, "error", err)
		return nil, err
	}
	u.log.InfoContext(ctx, "member registered", "operation", "register", "outcome", "success",
		"address", addr, "registered_by", by)
	return toDTO(m), nil
}

// SetVerification records an operator's KYC decision for a registered member.
func (u *Usecase) SetVerification(ctx context.Context, operator, addr string, status member.VerificationStatus) (dto *MemberDTO, err error) {
	defer func() { metrics.ObserveLoanOp("set_verification", err) }()

	if err := access.Require(ctx, u.access, operator, access.RoleOperator); err != nil {
		return nil, err
	}
	addr = id.NormalizeAddress(addr)
	if !id.ValidAddress(addr) {
		return nil, apperr.ErrInvalidIdentity
	}
	if !status.Valid() {
		return nil, member.ErrInvalidStatus
	}
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		m, err := r.Members.GetByAddress(ctx, addr)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return member.ErrNotRegistered
		}
		if err != nil {
			return err
		}
		if !m.Registered {
			return member.ErrNotRegistered
		}
		prev := m.Status
		m.Status = status
		if err := r.Members.Save(ctx, m); err != nil {
			return err
		}
		dto = toDTO(m)
		return r.Events.Append(ctx, event.New(event.MemberVerificationUpdated, 0, addr, 0,
			map[string]string{"from": string(prev), "to": string(status), "by": id.NormalizeAddress(operator)}))
	})
	if err != nil {
		return nil, err
	}
	u.log.InfoContext(ctx, "verification updated", "operation", "set_verification", "outcome", "success",
		"address", addr, "status", status)
	return dto, nil
}

// GetStatus never fails for unknown addresses; they report NotVerified.
func (u *Usecase) GetStatus(ctx context.Context, addr string) (*StatusDTO, error) {
	addr = id.NormalizeAddress(addr)
	if !id.ValidAddress(addr) {
		return nil, apperr.ErrInvalidIdentity
	}
	m, err := u.members.GetByAddress(ctx, addr)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &StatusDTO{Address: addr, Status: string(member.StatusNotVerified)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &StatusDTO{Address: addr, Registered: m.Registered, Status: string(m.Status)}, nil
}

func toDTO(m *member.Member) *MemberDTO {
	return &MemberDTO{
		Address:      m.Address,
		Registered:   m.Registered,
		Status:       string(m.Status),
		RegisteredBy: m.RegisteredBy,
		CreatedAt:    m.CreatedAt,
	}
}
