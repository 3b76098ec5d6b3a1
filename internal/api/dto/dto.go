package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Lend   Side = "LEND"
	Borrow Side = "BORROW"
)

type PlaceLendOrderRequest struct {
	Owner           string          `json:"owner" binding:"required"`
	Asset           string          `json:"asset" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	RateBps         int64           `json:"rate_bps"`
	DurationSeconds int64           `json:"duration_seconds" binding:"required"`
	MaxLTVBps       int64           `json:"max_ltv_bps" binding:"required"`
	CollateralToken string          `json:"collateral_token" binding:"required"`
	ExpiresAt       time.Time       `json:"expires_at" binding:"required"`
}

type PlaceBorrowOrderRequest struct {
	Owner            string          `json:"owner" binding:"required"`
	Asset            string          `json:"asset" binding:"required"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	RateBps          int64           `json:"rate_bps"`
	DurationSeconds  int64           `json:"duration_seconds" binding:"required"`
	CollateralToken  string          `json:"collateral_token" binding:"required"`
	CollateralAmount decimal.Decimal `json:"collateral_amount" binding:"required"`
	ExpiresAt        time.Time       `json:"expires_at" binding:"required"`
}

type PlaceOrderResponse struct {
	Order   Order   `json:"order"`
	Matches []Match `json:"matches"`
}

type MarketOrderRequest struct {
	Owner            string          `json:"owner" binding:"required"`
	Asset            string          `json:"asset" binding:"required"`
	Side             Side            `json:"side" binding:"required"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	MaxSlippageBps   int64           `json:"max_slippage_bps"`
	DurationSeconds  int64           `json:"duration_seconds" binding:"required"`
	MaxLTVBps        int64           `json:"max_ltv_bps,omitempty"`
	CollateralToken  string          `json:"collateral_token"`
	CollateralAmount decimal.Decimal `json:"collateral_amount,omitempty"`
}

type MarketOrderResponse struct {
	Filled     decimal.Decimal `json:"filled"`
	AvgRateBps decimal.Decimal `json:"avg_rate_bps"`
	Matches    []Match         `json:"matches"`
}

type CancelOrderRequest struct {
	OrderID uint64 `json:"order_id" binding:"required"`
	Owner   string `json:"owner" binding:"required"`
}

type CancelOrderResponse struct {
	OrderID   uint64 `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

type RepayRequest struct {
	Payer  string          `json:"payer" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

type RepayResponse struct {
	LoanID        uint64          `json:"loan_id"`
	Applied       decimal.Decimal `json:"applied"`
	InterestPaid  decimal.Decimal `json:"interest_paid"`
	PrincipalPaid decimal.Decimal `json:"principal_paid"`
	RemainingDebt decimal.Decimal `json:"remaining_debt"`
	Closed        bool            `json:"closed"`
}

type LiquidateRequest struct {
	Liquidator  string          `json:"liquidator" binding:"required"`
	DebtToCover decimal.Decimal `json:"debt_to_cover" binding:"required"`
}

type LiquidateResponse struct {
	ID               string          `json:"id"`
	LoanID           uint64          `json:"loan_id"`
	DebtCovered      decimal.Decimal `json:"debt_covered"`
	CollateralSeized decimal.Decimal `json:"collateral_seized"`
	Reward           decimal.Decimal `json:"reward"`
}

type PoolDepositRequest struct {
	Account string          `json:"account" binding:"required"`
	Amount  decimal.Decimal `json:"amount" binding:"required"`
}

type PoolDepositResponse struct {
	Asset  string          `json:"asset"`
	Shares decimal.Decimal `json:"shares"`
}

type PoolWithdrawRequest struct {
	Account string          `json:"account" binding:"required"`
	Shares  decimal.Decimal `json:"shares" binding:"required"`
}

type PoolWithdrawResponse struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

type RiskParametersRequest struct {
	MaxLTVBps               int64 `json:"max_ltv_bps" binding:"required"`
	LiquidationThresholdBps int64 `json:"liquidation_threshold_bps" binding:"required"`
	LiquidationPenaltyBps   int64 `json:"liquidation_penalty_bps"`
	MinCollateralRatioBps   int64 `json:"min_collateral_ratio_bps" binding:"required"`
	Enabled                 bool  `json:"enabled"`
}

type DepthLevel struct {
	RateBps int64           `json:"rate_bps"`
	Amount  decimal.Decimal `json:"amount"`
}

type DepthResponse struct {
	Asset     string       `json:"asset"`
	Side      Side         `json:"side"`
	Levels    []DepthLevel `json:"levels"`
	Timestamp time.Time    `json:"timestamp"`
}

type BestRatesResponse struct {
	Asset           string `json:"asset"`
	BestLendRateBps *int64 `json:"best_lend_rate_bps,omitempty"`
	BestBorrowBps   *int64 `json:"best_borrow_rate_bps,omitempty"`
}

type HealthFactorResponse struct {
	LoanID       uint64          `json:"loan_id"`
	HealthFactor decimal.Decimal `json:"health_factor"`
}

type Order struct {
	ID               uint64          `json:"id"`
	Owner            string          `json:"owner"`
	Asset            string          `json:"asset"`
	Side             Side            `json:"side"`
	Status           string          `json:"status"`
	Principal        decimal.Decimal `json:"principal"`
	Remaining        decimal.Decimal `json:"remaining"`
	RateBps          int64           `json:"rate_bps"`
	DurationSeconds  int64           `json:"duration_seconds"`
	MaxLTVBps        int64           `json:"max_ltv_bps,omitempty"`
	CollateralToken  string          `json:"collateral_token,omitempty"`
	CollateralAmount decimal.Decimal `json:"collateral_amount,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	ExpiresAt        time.Time       `json:"expires_at"`
}

type Match struct {
	ID            string          `json:"id"`
	LendOrderID   uint64          `json:"lend_order_id"`
	BorrowOrderID uint64          `json:"borrow_order_id"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	RateBps       int64           `json:"rate_bps"`
	LoanID        uint64          `json:"loan_id"`
	Timestamp     time.Time       `json:"timestamp"`
}

type Loan struct {
	ID                 uint64          `json:"id"`
	Borrower           string          `json:"borrower"`
	Lender             string          `json:"lender"`
	Asset              string          `json:"asset"`
	Principal          decimal.Decimal `json:"principal"`
	RemainingPrincipal decimal.Decimal `json:"remaining_principal"`
	RateBps            int64           `json:"rate_bps"`
	StartTime          time.Time       `json:"start_time"`
	DurationSeconds    int64           `json:"duration_seconds"`
	CollateralToken    string          `json:"collateral_token"`
	CollateralAmount   decimal.Decimal `json:"collateral_amount"`
	AccruedInterest    decimal.Decimal `json:"accrued_interest"`
	TotalDebt          decimal.Decimal `json:"total_debt"`
	Status             string          `json:"status"`
}

type PoolStats struct {
	Asset          string          `json:"asset"`
	TotalAssets    decimal.Decimal `json:"total_assets"`
	Borrowed       decimal.Decimal `json:"borrowed"`
	Available      decimal.Decimal `json:"available"`
	UtilizationBps int64           `json:"utilization_bps"`
	CurrentRateBps int64           `json:"current_rate_bps"`
}
