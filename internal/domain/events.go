package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is the one-way notification surface consumed by dashboards.
// No core behavior depends on subscribers.
type Event interface {
	EventName() string
}

type OrderPlacedEvent struct {
	OrderID   uint64          `json:"order_id"`
	Owner     string          `json:"owner"`
	Asset     string          `json:"asset"`
	Side      Side            `json:"side"`
	Principal decimal.Decimal `json:"principal"`
	Rate      int64           `json:"rate"`
	Timestamp time.Time       `json:"timestamp"`
}

func (OrderPlacedEvent) EventName() string { return "order_placed" }

type OrderCancelledEvent struct {
	OrderID     uint64          `json:"order_id"`
	Owner       string          `json:"owner"`
	Refund      decimal.Decimal `json:"refund"`
	RefundToken string          `json:"refund_token"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (OrderCancelledEvent) EventName() string { return "order_cancelled" }

type OrderExpiredEvent struct {
	OrderID   uint64    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (OrderExpiredEvent) EventName() string { return "order_expired" }

type OrderMatchedEvent struct {
	MatchID       string          `json:"match_id"`
	LendOrderID   uint64          `json:"lend_order"`
	BorrowOrderID uint64          `json:"borrow_order"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	Rate          int64           `json:"rate"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (OrderMatchedEvent) EventName() string { return "order_matched" }

type LoanCreatedEvent struct {
	LoanID           uint64          `json:"loan_id"`
	Borrower         string          `json:"borrower"`
	Lender           string          `json:"lender"`
	Asset            string          `json:"asset"`
	Principal        decimal.Decimal `json:"principal"`
	Rate             int64           `json:"rate"`
	CollateralToken  string          `json:"collateral_token"`
	CollateralAmount decimal.Decimal `json:"collateral_amount"`
	Timestamp        time.Time       `json:"timestamp"`
}

func (LoanCreatedEvent) EventName() string { return "loan_created" }

type LoanRepaidEvent struct {
	LoanID        uint64          `json:"loan_id"`
	Amount        decimal.Decimal `json:"amount"`
	RemainingDebt decimal.Decimal `json:"remaining_debt"`
	Closed        bool            `json:"closed"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (LoanRepaidEvent) EventName() string { return "loan_repaid" }

type LiquidationExecutedEvent struct {
	LoanID           uint64          `json:"loan_id"`
	Liquidator       string          `json:"liquidator"`
	DebtCovered      decimal.Decimal `json:"debt_covered"`
	CollateralSeized decimal.Decimal `json:"collateral_seized"`
	Reward           decimal.Decimal `json:"reward"`
	Timestamp        time.Time       `json:"timestamp"`
}

func (LiquidationExecutedEvent) EventName() string { return "liquidation_executed" }

type HealthFactorUpdatedEvent struct {
	LoanID       uint64          `json:"loan_id"`
	HealthFactor decimal.Decimal `json:"health_factor"` // 1e18 scale
	Timestamp    time.Time       `json:"timestamp"`
}

func (HealthFactorUpdatedEvent) EventName() string { return "health_factor_updated" }

type PoolRateUpdatedEvent struct {
	Asset       string          `json:"asset"`
	Utilization int64           `json:"utilization"` // bps
	Rate        int64           `json:"rate"`        // bps
	Available   decimal.Decimal `json:"available"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (PoolRateUpdatedEvent) EventName() string { return "pool_rate_updated" }
