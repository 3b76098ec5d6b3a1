package port

import (
	"context"

	"github.com/olyamironova/lending-engine/internal/domain"
)

type Repository interface {
	SaveOrder(ctx context.Context, o *domain.Order) error
	SaveLoan(ctx context.Context, l *domain.Loan) error
	SaveLiquidation(ctx context.Context, liq *domain.Liquidation) error
	// LoadOpenOrders returns non-terminal orders for an asset ordered by
	// created_at ASC (FIFO), used to rebuild the book on startup.
	LoadOpenOrders(ctx context.Context, asset string) ([]*domain.Order, error)
	LoadActiveLoans(ctx context.Context) ([]*domain.Loan, error)
}
