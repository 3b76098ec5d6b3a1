package core

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/ratemath"
)

// LoanRegistry owns the loans produced by matches. Ids are monotonic per
// instance. Like the order book it relies on the Engine for serialization
// and for the custody transfers that accompany its state changes.
type LoanRegistry struct {
	nextID uint64
	loans  map[uint64]*domain.Loan
	now    func() time.Time
}

func NewLoanRegistry(now func() time.Time) *LoanRegistry {
	if now == nil {
		now = time.Now
	}
	return &LoanRegistry{
		nextID: 1,
		loans:  make(map[uint64]*domain.Loan),
		now:    now,
	}
}

func (r *LoanRegistry) Loan(id uint64) (*domain.Loan, bool) {
	l, ok := r.loans[id]
	return l, ok
}

// ActiveLoans returns the current ACTIVE set; order is unspecified.
func (r *LoanRegistry) ActiveLoans() []*domain.Loan {
	var res []*domain.Loan
	for _, l := range r.loans {
		if l.Status == domain.LoanActive {
			res = append(res, l)
		}
	}
	return res
}

// CreateLoan builds one loan from a matched fragment. The borrow order hands
// over a proportional share of its total offered collateral
// (collateralAmount * matched / principal); the loan runs at the lender's
// rate for the shorter of the two durations.
func (r *LoanRegistry) CreateLoan(lendOrder, borrowOrder *domain.Order, matched decimal.Decimal, asset string) *domain.Loan {
	share := ratemath.ProportionalShare(
		borrowOrder.Borrow.CollateralAmount,
		matched,
		borrowOrder.Principal,
	)
	borrowOrder.Borrow.CollateralLocked = borrowOrder.Borrow.CollateralLocked.Add(share)

	duration := lendOrder.Duration
	if borrowOrder.Duration < duration {
		duration = borrowOrder.Duration
	}

	now := r.now()
	l := &domain.Loan{
		ID:                 r.nextID,
		Borrower:           borrowOrder.Owner,
		Lender:             lendOrder.Owner,
		Asset:              asset,
		Principal:          matched,
		RemainingPrincipal: matched,
		Rate:               lendOrder.Rate,
		StartTime:          now,
		Duration:           duration,
		CollateralToken:    borrowOrder.Borrow.CollateralToken,
		CollateralAmount:   share,
		AccruedInterest:    decimal.Zero,
		Status:             domain.LoanActive,
		LastAccrual:        now,
	}
	r.nextID++
	r.loans[l.ID] = l
	return l
}

// AccrueInterest adds simple interest on the remaining principal since the
// last accrual. Compounding is deliberately reserved for pool-level index
// updates; per-loan accrual stays linear.
func (r *LoanRegistry) AccrueInterest(loanID uint64, asOf time.Time) error {
	l, ok := r.loans[loanID]
	if !ok {
		return ErrLoanNotFound
	}
	if l.Terminal() {
		return ErrLoanTerminal
	}
	elapsed := int64(asOf.Sub(l.LastAccrual) / time.Second)
	if elapsed <= 0 {
		return nil
	}
	interest := ratemath.SimpleInterest(l.RemainingPrincipal, l.Rate, elapsed)
	l.AccruedInterest = l.AccruedInterest.Add(interest)
	l.LastAccrual = asOf
	return nil
}

// RepayResult reports what one repayment did.
type RepayResult struct {
	Applied       decimal.Decimal
	InterestPaid  decimal.Decimal
	PrincipalPaid decimal.Decimal
	RemainingDebt decimal.Decimal
	Closed        bool
}

// Repay applies a payment, interest first, capped at the outstanding debt.
// Full repayment marks the loan REPAID; the engine releases collateral.
func (r *LoanRegistry) Repay(loanID uint64, amount decimal.Decimal, asOf time.Time) (*RepayResult, error) {
	l, ok := r.loans[loanID]
	if !ok {
		return nil, ErrLoanNotFound
	}
	if l.Terminal() {
		return nil, ErrLoanTerminal
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := r.AccrueInterest(loanID, asOf); err != nil {
		return nil, err
	}

	debt := l.TotalDebt()
	applied := decimal.Min(amount, debt)

	interestPart := decimal.Min(applied, l.AccruedInterest)
	l.AccruedInterest = l.AccruedInterest.Sub(interestPart)
	l.RemainingPrincipal = l.RemainingPrincipal.Sub(applied.Sub(interestPart))

	res := &RepayResult{
		Applied:       applied,
		InterestPaid:  interestPart,
		PrincipalPaid: applied.Sub(interestPart),
		RemainingDebt: l.TotalDebt(),
	}
	if !res.RemainingDebt.IsPositive() {
		l.Status = domain.LoanRepaid
		res.Closed = true
	}
	return res, nil
}

// Restore reinserts a persisted loan on startup.
func (r *LoanRegistry) Restore(l *domain.Loan) {
	if l.ID >= r.nextID {
		r.nextID = l.ID + 1
	}
	r.loans[l.ID] = l
}
