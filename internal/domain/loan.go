package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanActive     LoanStatus = "ACTIVE"
	LoanRepaid     LoanStatus = "REPAID"
	LoanLiquidated LoanStatus = "LIQUIDATED"
	LoanDefaulted  LoanStatus = "DEFAULTED"
)

// Loan is created from one match between a lend and a borrow order.
// A single order may spawn many loans across partial fills.
type Loan struct {
	ID                 uint64          `json:"id"`
	Borrower           string          `json:"borrower"`
	Lender             string          `json:"lender"`
	Asset              string          `json:"asset"`
	Principal          decimal.Decimal `json:"principal"`
	RemainingPrincipal decimal.Decimal `json:"remaining_principal"`
	Rate               int64           `json:"rate"` // bps, fixed at match time = lender's rate
	StartTime          time.Time       `json:"start_time"`
	Duration           time.Duration   `json:"duration"`
	CollateralToken    string          `json:"collateral_token"`
	CollateralAmount   decimal.Decimal `json:"collateral_amount"`
	AccruedInterest    decimal.Decimal `json:"accrued_interest"`
	Status             LoanStatus      `json:"status"`
	LastAccrual        time.Time       `json:"last_accrual"`
}

// TotalDebt is remaining principal plus interest accrued so far.
func (l *Loan) TotalDebt() decimal.Decimal {
	return l.RemainingPrincipal.Add(l.AccruedInterest)
}

func (l *Loan) Terminal() bool {
	return l.Status != LoanActive
}

// Match records one pairwise fill between a lend and a borrow order.
type Match struct {
	ID            string          `json:"id"`
	LendOrderID   uint64          `json:"lend_order"`
	BorrowOrderID uint64          `json:"borrow_order"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	Rate          int64           `json:"rate"` // bps the loan is created at
	LoanID        uint64          `json:"loan_id,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Liquidation is the persisted audit record of one liquidation call.
type Liquidation struct {
	ID               string          `json:"id"`
	LoanID           uint64          `json:"loan_id"`
	Liquidator       string          `json:"liquidator"`
	DebtCovered      decimal.Decimal `json:"debt_covered"`
	CollateralSeized decimal.Decimal `json:"collateral_seized"`
	Reward           decimal.Decimal `json:"reward"`
	Timestamp        time.Time       `json:"timestamp"`
}
