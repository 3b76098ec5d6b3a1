package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string
type OrderStatus string

const (
	Lend   Side = "LEND"
	Borrow Side = "BORROW"

	OrderPending         OrderStatus = "PENDING"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
	OrderExpired         OrderStatus = "EXPIRED"
)

// LendTerms is the side-specific payload of a LEND order.
type LendTerms struct {
	MaxLTV          int64 `json:"max_ltv"` // bps
	CollateralToken string `json:"collateral_token"`
}

// BorrowTerms is the side-specific payload of a BORROW order.
// CollateralAmount is the total offered at placement and never changes;
// CollateralLocked is the portion already moved into loans by partial fills.
type BorrowTerms struct {
	CollateralToken  string          `json:"collateral_token"`
	CollateralAmount decimal.Decimal `json:"collateral_amount"`
	CollateralLocked decimal.Decimal `json:"collateral_locked"`
}

type Order struct {
	ID        uint64          `json:"id"`
	Owner     string          `json:"owner"`
	Asset     string          `json:"asset"`
	Side      Side            `json:"side"`
	Status    OrderStatus     `json:"status"`
	Principal decimal.Decimal `json:"principal"`
	Remaining decimal.Decimal `json:"remaining"`
	Rate      int64           `json:"rate"` // bps, 0-10000
	Duration  time.Duration   `json:"duration"`
	Lend      *LendTerms      `json:"lend,omitempty"`
	Borrow    *BorrowTerms    `json:"borrow,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Terminal reports whether the order can no longer change.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderFilled, OrderCancelled, OrderExpired:
		return true
	}
	return false
}

// Live reports whether the order may still participate in matching.
func (o *Order) Live(now time.Time) bool {
	if o.Terminal() || !o.Remaining.IsPositive() {
		return false
	}
	return now.Before(o.ExpiresAt)
}

// UnlockedCollateral returns the escrowed collateral not yet bound to loans.
// Zero for lend orders.
func (o *Order) UnlockedCollateral() decimal.Decimal {
	if o.Borrow == nil {
		return decimal.Zero
	}
	return o.Borrow.CollateralAmount.Sub(o.Borrow.CollateralLocked)
}
