package wallet

import (
	"context"
	"log/slog"

	"github.com/kefkio/bloc-sacco/internal/domain/access"
	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
	"github.com/kefkio/bloc-sacco/internal/domain/event"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/settlement"
	"github.com/kefkio/bloc-sacco/internal/domain/uow"
	"github.com/kefkio/bloc-sacco/internal/infrastructure/metrics"
	"github.com/kefkio/bloc-sacco/pkg/id"
)

type BalanceDTO struct {
	Holder string `json:"holder"`
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

// Usecase exposes the custodial vault's wallet side: operator-recorded
// deposits, custody funding and balance reads.
type Usecase struct {
	uow    uow.UnitOfWork
	access access.Checker
	log    *slog.Logger
}

func NewUsecase(u uow.UnitOfWork, c access.Checker, logger *slog.Logger) *Usecase {
	if logger == nil {
		logger = slog.Default()
	}
	return &Usecase{uow: u, access: c, log: logger.With("module", "wallet", "layer", "usecase")}
}

// RecordDeposit credits holder's wallet with value received outside the service.
func (u *Usecase) RecordDeposit(ctx context.Context, operator, holder, asset string, amount int64) (dto *BalanceDTO, err error) {
	defer func() { metrics.ObserveLoanOp("record_deposit", err) }()
	return u.move(ctx, operator, holder, asset, amount, event.WalletDeposited,
		func(ctx context.Context, f settlement.Funding, holder, asset string) error {
			return f.RecordDeposit(ctx, holder, asset, amount)
		})
}

// FundCustody moves funder's wallet balance into custody so loans can be disbursed.
func (u *Usecase) FundCustody(ctx context.Context, operator, funder, asset string, amount int64) (dto *BalanceDTO, err error) {
	defer func() { metrics.ObserveLoanOp("fund_custody", err) }()
	return u.move(ctx, operator, funder, asset, amount, event.CustodyFunded,
		func(ctx context.Context, f settlement.Funding, holder, asset string) error {
			return f.FundCustody(ctx, holder, asset, amount)
		})
}

func (u *Usecase) move(ctx context.Context, operator, holder, asset string, amount int64, typ event.Type,
	fn func(context.Context, settlement.Funding, string, string) error) (*BalanceDTO, error) {
	if err := access.Require(ctx, u.access, operator, access.RoleOperator); err != nil {
		return nil, err
	}
	holder = id.NormalizeAddress(holder)
	if !id.ValidAddress(holder) {
		return nil, apperr.ErrInvalidIdentity
	}
	asset, err := normalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperr.ErrInvalidAmount
	}

	var dto *BalanceDTO
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		f, ok := r.Settlement.(settlement.Funding)
		if !ok {
			return settlement.ErrFundingUnsupported
		}
		if err := fn(ctx, f, holder, asset); err != nil {
			return err
		}
		if err := r.Events.Append(ctx, event.New(typ, 0, holder, amount, map[string]string{"asset": asset})); err != nil {
			return err
		}
		bal, err := f.WalletBalance(ctx, holder, asset)
		if err != nil {
			return err
		}
		dto = &BalanceDTO{Holder: holder, Asset: asset, Amount: bal}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.InfoContext(ctx, "vault movement recorded", "operation", string(typ), "outcome", "success",
		"holder", holder, "asset", asset, "amount", amount)
	return dto, nil
}

func (u *Usecase) WalletBalance(ctx context.Context, holder, asset string) (*BalanceDTO, error) {
	holder = id.NormalizeAddress(holder)
	if !id.ValidAddress(holder) {
		return nil, apperr.ErrInvalidIdentity
	}
	asset, err := normalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	var dto *BalanceDTO
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		f, ok := r.Settlement.(settlement.Funding)
		if !ok {
			return settlement.ErrFundingUnsupported
		}
		bal, err := f.WalletBalance(ctx, holder, asset)
		dto = &BalanceDTO{Holder: holder, Asset: asset, Amount: bal}
		return err
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func (u *Usecase) CustodyBalance(ctx context.Context, asset string) (*BalanceDTO, error) {
	asset, err := normalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	var dto *BalanceDTO
	err = u.uow.WithinTx(ctx, func(r uow.Repos) error {
		bal, err := r.Settlement.CustodyBalance(ctx, asset)
		dto = &BalanceDTO{Holder: settlement.Custody, Asset: asset, Amount: bal}
		return err
	})
	if err != nil {
		return nil, err
	}
	return dto, nil
}

func normalizeAsset(asset string) (string, error) {
	asset = id.NormalizeAddress(asset)
	if asset == "" {
		return loan.NativeAsset, nil
	}
	if !loan.ValidAsset(asset) {
		return "", loan.ErrInvalidAsset
	}
	return asset, nil
}
