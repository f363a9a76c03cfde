package settlement

import (
	"context"

	"github.com/kefkio/bloc-sacco/internal/domain/apperr"
)

// Custody is the holder name of the service's custody account.
const Custody = "custody"

var (
	ErrInsufficientFunds = apperr.New(apperr.KindResource, "insufficient funds")
	ErrTransferFailed    = apperr.New(apperr.KindResource, "transfer failed")
	ErrInvalidAsset      = apperr.New(apperr.KindPrecondition, "invalid asset")
)

// Adapter moves value between external parties and custody. Every call either
// completes or returns an error; there are no partial transfers.
type Adapter interface {
	TransferIn(ctx context.Context, asset, source string, amount int64) error
	TransferOut(ctx context.Context, asset, destination string, amount int64) error
	CustodyBalance(ctx context.Context, asset string) (int64, error)
}

// Funding is implemented by custodial adapters that also hold member wallets.
type Funding interface {
	RecordDeposit(ctx context.Context, holder, asset string, amount int64) error
	FundCustody(ctx context.Context, funder, asset string, amount int64) error
	WalletBalance(ctx context.Context, holder, asset string) (int64, error)
}

var ErrFundingUnsupported = apperr.New(apperr.KindPrecondition, "settlement adapter does not hold wallets")
