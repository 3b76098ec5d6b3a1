package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceFeed is the injected external oracle. Implementations must surface
// stale or missing prices as errors; the risk engine treats that as "value
// unknown" and skips evaluation rather than assuming zero.
type PriceFeed interface {
	// GetPrice returns the asset price on a 1e18-style abstract scale.
	GetPrice(ctx context.Context, asset string) (decimal.Decimal, error)
}
