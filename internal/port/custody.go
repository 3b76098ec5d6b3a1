package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// Custody is the external asset-custody collaborator. Transfers fail
// atomically (all or nothing) and are called exactly once per logical
// movement; the core never assumes idempotent retries.
type Custody interface {
	// TransferIn escrows amount of asset from the account into the engine.
	TransferIn(ctx context.Context, asset, from string, amount decimal.Decimal) error
	// TransferOut releases amount of asset from the engine to the account.
	TransferOut(ctx context.Context, asset, to string, amount decimal.Decimal) error
}
