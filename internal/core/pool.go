package core

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/lending-engine/internal/ratemath"
)

// LendingPool is the passive auto-strategy: deposited liquidity is offered on
// the book as a single resting lend order at the utilization-derived rate.
// The pool owns share accounting and the compound-interest liquidity index;
// the Engine drives custody movements and the cancel-and-replace cycle.
type LendingPool struct {
	Asset   string
	Account string // custody identity the pool's orders run under

	curve ratemath.CurveParams

	index       decimal.Decimal // liquidity index, starts at 1
	accrualRate int64           // bps earned by suppliers since last rebalance
	currentRate int64           // bps the resting order is priced at
	lastUpdate  time.Time

	totalShares   decimal.Decimal
	shares        map[string]decimal.Decimal
	totalBorrowed decimal.Decimal

	RestingOrderID uint64 // 0 = none

	// Terms the pool's resting orders carry.
	OrderDuration   time.Duration
	OrderMaxLTV     int64
	CollateralToken string
	OrderTTL        time.Duration

	now func() time.Time
}

// PoolConfig carries the static per-asset pool settings.
type PoolConfig struct {
	Asset           string
	Account         string
	Curve           ratemath.CurveParams
	OrderDuration   time.Duration
	OrderMaxLTV     int64
	CollateralToken string
	OrderTTL        time.Duration
}

func NewLendingPool(cfg PoolConfig, now func() time.Time) *LendingPool {
	if now == nil {
		now = time.Now
	}
	return &LendingPool{
		Asset:           cfg.Asset,
		Account:         cfg.Account,
		curve:           cfg.Curve,
		index:           decimal.NewFromInt(1),
		lastUpdate:      now(),
		totalShares:     decimal.Zero,
		shares:          make(map[string]decimal.Decimal),
		totalBorrowed:   decimal.Zero,
		OrderDuration:   cfg.OrderDuration,
		OrderMaxLTV:     cfg.OrderMaxLTV,
		CollateralToken: cfg.CollateralToken,
		OrderTTL:        cfg.OrderTTL,
		now:             now,
	}
}

// Accrue compounds the liquidity index over the time since the last update.
// With zero elapsed time the index is untouched, so a deposit followed by an
// immediate withdrawal round-trips exactly.
func (p *LendingPool) Accrue() {
	now := p.now()
	elapsed := int64(now.Sub(p.lastUpdate) / time.Second)
	if elapsed > 0 && p.accrualRate > 0 {
		p.index = p.index.Mul(ratemath.CompoundFactor(p.accrualRate, elapsed))
	}
	p.lastUpdate = now
}

// TotalAssets is the index-grown value of all shares.
func (p *LendingPool) TotalAssets() decimal.Decimal {
	return p.totalShares.Mul(p.index)
}

// Available is the liquidity not currently lent out.
func (p *LendingPool) Available() decimal.Decimal {
	return p.TotalAssets().Sub(p.totalBorrowed)
}

// Utilization in bps.
func (p *LendingPool) Utilization() int64 {
	return ratemath.UtilizationRate(p.totalBorrowed, p.TotalAssets())
}

// Reprice recomputes the resting-order rate and the supplier accrual rate
// from current utilization. Suppliers earn the borrow rate scaled by
// utilization; idle liquidity earns nothing.
func (p *LendingPool) Reprice() int64 {
	u := p.Utilization()
	p.currentRate = p.curve.BorrowRate(u)
	p.accrualRate = p.currentRate * u / ratemath.BpsDenominator
	return p.currentRate
}

// CurrentRate is the rate of the pool's resting order, bps.
func (p *LendingPool) CurrentRate() int64 { return p.currentRate }

// Deposit converts an amount into shares at the current index.
func (p *LendingPool) Deposit(account string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	sharesOut := amount.Div(p.index)
	p.shares[account] = p.shares[account].Add(sharesOut)
	p.totalShares = p.totalShares.Add(sharesOut)
	return sharesOut, nil
}

// Withdraw burns shares for the index-grown amount. Fails when the caller
// holds fewer shares or the pool's unlent liquidity cannot cover the amount.
func (p *LendingPool) Withdraw(account string, sharesIn decimal.Decimal) (decimal.Decimal, error) {
	if !sharesIn.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	held := p.shares[account]
	if held.LessThan(sharesIn) {
		return decimal.Zero, ErrNoShares
	}
	amount := sharesIn.Mul(p.index)
	if amount.GreaterThan(p.Available()) {
		return decimal.Zero, ErrInsufficientLiquidity
	}
	p.shares[account] = held.Sub(sharesIn)
	p.totalShares = p.totalShares.Sub(sharesIn)
	return amount, nil
}

// Shares returns an account's share balance.
func (p *LendingPool) Shares(account string) decimal.Decimal {
	return p.shares[account]
}

// OnFilled records that part of the resting order was matched into a loan.
func (p *LendingPool) OnFilled(amount decimal.Decimal) {
	p.totalBorrowed = p.totalBorrowed.Add(amount)
}

// OnRepaid records principal coming back from a pool-originated loan.
func (p *LendingPool) OnRepaid(principal decimal.Decimal) {
	p.totalBorrowed = p.totalBorrowed.Sub(principal)
	if p.totalBorrowed.IsNegative() {
		p.totalBorrowed = decimal.Zero
	}
}
