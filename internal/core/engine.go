package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/port"
	"github.com/olyamironova/lending-engine/internal/ratemath"
)

// Engine is the serialization boundary around the order book, the loan
// registry, the risk engine and the pools. Every public operation runs under
// one mutex, so a matching walk can never interleave with a concurrent
// cancellation (single-writer semantics). Repository and cache writes
// happen best-effort after the in-memory mutation; custody transfers abort
// the operation on failure.
type Engine struct {
	mu sync.Mutex

	book     *OrderBook
	registry *LoanRegistry
	risk     *RiskEngine
	pools    map[string]*LendingPool

	custody port.Custody
	prices  port.PriceFeed
	repo    port.Repository
	cache   port.Cache
	events  port.EventSink

	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// EngineParams collects the collaborators; Repo, Cache, Events, Metrics and
// Now may be nil.
type EngineParams struct {
	MinOrderSize        decimal.Decimal
	ProtocolAccount     string
	HealthCheckInterval time.Duration

	Custody port.Custody
	Prices  port.PriceFeed
	Repo    port.Repository
	Cache   port.Cache
	Events  port.EventSink

	Logger  *zap.Logger
	Metrics *Metrics
	Now     func() time.Time
}

func NewEngine(p EngineParams) *Engine {
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	registry := NewLoanRegistry(p.Now)
	return &Engine{
		book:     NewOrderBook(p.MinOrderSize, p.Now),
		registry: registry,
		risk:     NewRiskEngine(registry, p.Prices, p.Custody, p.ProtocolAccount, p.HealthCheckInterval, p.Logger, p.Now),
		pools:    make(map[string]*LendingPool),
		custody:  p.Custody,
		prices:   p.Prices,
		repo:     p.Repo,
		cache:    p.Cache,
		events:   p.Events,
		logger:   p.Logger,
		metrics:  p.Metrics,
		now:      p.Now,
	}
}

// SetAssetRiskParameters registers or updates per-asset risk limits.
func (e *Engine) SetAssetRiskParameters(asset string, p domain.RiskParameters) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.risk.SetAssetRiskParameters(asset, p)
}

// CreatePool sets up the passive liquidity pool for an asset.
func (e *Engine) CreatePool(cfg PoolConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pools[cfg.Asset]; ok {
		return fmt.Errorf("pool for %s already exists", cfg.Asset)
	}
	e.pools[cfg.Asset] = NewLendingPool(cfg, e.now)
	return nil
}

// LoadState rebuilds the book and the registry from the repository on
// startup. Active loans re-enter the risk monitoring set.
func (e *Engine) LoadState(ctx context.Context, assets []string) error {
	if e.repo == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, asset := range assets {
		orders, err := e.repo.LoadOpenOrders(ctx, asset)
		if err != nil {
			return fmt.Errorf("load open orders for %s: %w", asset, err)
		}
		for _, o := range orders {
			e.book.Restore(o)
		}
	}
	loans, err := e.repo.LoadActiveLoans(ctx)
	if err != nil {
		return fmt.Errorf("load active loans: %w", err)
	}
	for _, l := range loans {
		e.registry.Restore(l)
		e.risk.RegisterForMonitoring(l.ID)
	}
	return nil
}

// PlaceLendOrder escrows the principal and submits a lend order; matching
// runs before the call returns.
func (e *Engine) PlaceLendOrder(ctx context.Context, owner, asset string, amount decimal.Decimal, rate int64, duration time.Duration, maxLTV int64, collateralToken string, expiry time.Time) (*PlaceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.book.validateCommon(amount, rate, duration, expiry); err != nil {
		return nil, err
	}
	if maxLTV <= 0 || maxLTV > ratemath.BpsDenominator {
		return nil, ErrInvalidLTV
	}
	if _, err := e.risk.Parameters(asset); err != nil {
		return nil, err
	}
	if err := e.custody.TransferIn(ctx, asset, owner, amount); err != nil {
		return nil, fmt.Errorf("escrow principal: %w", err)
	}
	res, err := e.book.PlaceLendOrder(owner, asset, amount, rate, duration, maxLTV, collateralToken, expiry)
	if err != nil {
		return nil, err
	}
	if err := e.afterPlacement(ctx, res); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.OrdersPlaced.WithLabelValues(string(domain.Lend)).Inc()
	}
	return res, nil
}

// PlaceBorrowOrder runs the oracle-based collateral sufficiency check,
// escrows the collateral and submits a borrow order. The check uses the same
// price feed the risk engine reads, so placement and health evaluation share
// one collateral model.
func (e *Engine) PlaceBorrowOrder(ctx context.Context, owner, asset string, amount decimal.Decimal, rate int64, duration time.Duration, collateralToken string, collateralAmount decimal.Decimal, expiry time.Time) (*PlaceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.book.validateCommon(amount, rate, duration, expiry); err != nil {
		return nil, err
	}
	if err := e.checkCollateralRatio(ctx, asset, amount, collateralToken, collateralAmount); err != nil {
		return nil, err
	}
	if err := e.custody.TransferIn(ctx, collateralToken, owner, collateralAmount); err != nil {
		return nil, fmt.Errorf("escrow collateral: %w", err)
	}
	res, err := e.book.PlaceBorrowOrder(owner, asset, amount, rate, duration, collateralToken, collateralAmount, expiry)
	if err != nil {
		return nil, err
	}
	if err := e.afterPlacement(ctx, res); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.OrdersPlaced.WithLabelValues(string(domain.Borrow)).Inc()
	}
	return res, nil
}

// checkCollateralRatio requires collateralValue >= principalValue *
// minCollateralRatio / 10000, valued through the price feed. A stale price
// rejects the placement; it is never treated as zero value.
func (e *Engine) checkCollateralRatio(ctx context.Context, asset string, amount decimal.Decimal, collateralToken string, collateralAmount decimal.Decimal) error {
	params, err := e.risk.Parameters(asset)
	if err != nil {
		return err
	}
	if _, err := e.risk.Parameters(collateralToken); err != nil {
		return err
	}
	assetPrice, err := e.risk.price(ctx, asset)
	if err != nil {
		return err
	}
	collPrice, err := e.risk.price(ctx, collateralToken)
	if err != nil {
		return err
	}
	principalValue := amount.Mul(assetPrice)
	collateralValue := collateralAmount.Mul(collPrice)
	required := principalValue.
		Mul(decimal.NewFromInt(params.MinCollateralRatio)).
		Div(decimal.NewFromInt(ratemath.BpsDenominator))
	if collateralValue.LessThan(required) {
		return ErrInsufficientCollateral
	}
	return nil
}

// afterPlacement settles what the matching walk produced: refunds for lazily
// expired makers, one loan per match, monitoring registration, persistence,
// events and the refreshed depth cache.
func (e *Engine) afterPlacement(ctx context.Context, res *PlaceResult) error {
	if err := e.settleExpired(ctx, res.Expired); err != nil {
		return err
	}

	for _, m := range res.Matches {
		lendOrder, _ := e.book.Order(m.LendOrderID)
		borrowOrder, _ := e.book.Order(m.BorrowOrderID)
		loan := e.registry.CreateLoan(lendOrder, borrowOrder, m.Amount, m.Asset)
		m.LoanID = loan.ID

		// Matched principal leaves escrow for the borrower; the collateral
		// share stays in custody, now bound to the loan.
		if err := e.custody.TransferOut(ctx, m.Asset, borrowOrder.Owner, m.Amount); err != nil {
			return fmt.Errorf("disburse principal: %w", err)
		}

		if pool := e.poolByAccount(lendOrder.Owner); pool != nil {
			pool.OnFilled(m.Amount)
		}
		e.risk.RegisterForMonitoring(loan.ID)
		e.persistLoan(ctx, loan)
		e.persistOrder(ctx, lendOrder)
		e.persistOrder(ctx, borrowOrder)

		e.publish(ctx, domain.OrderMatchedEvent{
			MatchID:       m.ID,
			LendOrderID:   m.LendOrderID,
			BorrowOrderID: m.BorrowOrderID,
			Asset:         m.Asset,
			Amount:        m.Amount,
			Rate:          m.Rate,
			Timestamp:     m.Timestamp,
		})
		e.publish(ctx, domain.LoanCreatedEvent{
			LoanID:           loan.ID,
			Borrower:         loan.Borrower,
			Lender:           loan.Lender,
			Asset:            loan.Asset,
			Principal:        loan.Principal,
			Rate:             loan.Rate,
			CollateralToken:  loan.CollateralToken,
			CollateralAmount: loan.CollateralAmount,
			Timestamp:        loan.StartTime,
		})
		if e.metrics != nil {
			e.metrics.Matches.Inc()
			e.metrics.LoansCreated.Inc()
		}
	}

	o := res.Order
	e.persistOrder(ctx, o)
	e.publish(ctx, domain.OrderPlacedEvent{
		OrderID:   o.ID,
		Owner:     o.Owner,
		Asset:     o.Asset,
		Side:      o.Side,
		Principal: o.Principal,
		Rate:      o.Rate,
		Timestamp: o.CreatedAt,
	})
	e.refreshDepth(ctx, o.Asset)
	return nil
}

// settleExpired refunds and finalizes orders the book evicted as expired,
// whether the matching walk or a best-rate scan found them.
func (e *Engine) settleExpired(ctx context.Context, expired []*domain.Order) error {
	now := e.now()
	for _, o := range expired {
		if err := e.refundOrder(ctx, o); err != nil {
			return err
		}
		e.book.MarkExpired(o)
		e.persistOrder(ctx, o)
		e.publish(ctx, domain.OrderExpiredEvent{OrderID: o.ID, Timestamp: now})
		if e.metrics != nil {
			e.metrics.OrdersExpired.Inc()
		}
	}
	return nil
}

// refundOrder returns the escrow still held for an order: the unfilled
// principal for lend orders, the not-yet-locked collateral for borrow orders.
// Pool-owned lend escrow stays in custody for the pool's suppliers.
func (e *Engine) refundOrder(ctx context.Context, o *domain.Order) error {
	switch o.Side {
	case domain.Lend:
		if e.poolByAccount(o.Owner) != nil {
			return nil
		}
		if o.Remaining.IsPositive() {
			return e.custody.TransferOut(ctx, o.Asset, o.Owner, o.Remaining)
		}
	case domain.Borrow:
		if refund := o.UnlockedCollateral(); refund.IsPositive() {
			return e.custody.TransferOut(ctx, o.Borrow.CollateralToken, o.Owner, refund)
		}
	}
	return nil
}

// CancelOrder cancels an owner's resting order and refunds its escrow.
// Cancelling a terminal order is an error, not a no-op.
func (e *Engine) CancelOrder(ctx context.Context, orderID uint64, owner string) (*domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelLocked(ctx, orderID, owner)
}

func (e *Engine) cancelLocked(ctx context.Context, orderID uint64, owner string) (*domain.Order, error) {
	o, err := e.book.CancelOrder(orderID, owner)
	if err != nil {
		return nil, err
	}
	if err := e.refundOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("refund escrow: %w", err)
	}
	refund := o.Remaining
	refundToken := o.Asset
	if o.Side == domain.Borrow {
		refund = o.UnlockedCollateral()
		refundToken = o.Borrow.CollateralToken
	}
	o.Remaining = decimal.Zero

	e.persistOrder(ctx, o)
	e.publish(ctx, domain.OrderCancelledEvent{
		OrderID:     o.ID,
		Owner:       o.Owner,
		Refund:      refund,
		RefundToken: refundToken,
		Timestamp:   e.now(),
	})
	if e.metrics != nil {
		e.metrics.OrdersCancelled.Inc()
	}
	e.refreshDepth(ctx, o.Asset)
	return o, nil
}

// ExecuteMarketOrder escrows, walks the opposite side within the slippage
// bound, settles the fills and refunds whatever could not execute.
func (e *Engine) ExecuteMarketOrder(ctx context.Context, p MarketParams) (*MarketResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.risk.Parameters(p.Asset); err != nil {
		return nil, err
	}
	if p.Side == domain.Lend {
		if err := e.custody.TransferIn(ctx, p.Asset, p.Owner, p.Amount); err != nil {
			return nil, fmt.Errorf("escrow principal: %w", err)
		}
	} else {
		if err := e.checkCollateralRatio(ctx, p.Asset, p.Amount, p.CollateralToken, p.CollateralAmount); err != nil {
			return nil, err
		}
		if err := e.custody.TransferIn(ctx, p.CollateralToken, p.Owner, p.CollateralAmount); err != nil {
			return nil, fmt.Errorf("escrow collateral: %w", err)
		}
	}

	res, err := e.book.ExecuteMarketOrder(p)
	if err != nil {
		// Validation failed after escrow only when the book is empty;
		// return the escrow before surfacing the error. The best-rate scan
		// may still have evicted expired orders that need refunds.
		if p.Side == domain.Lend {
			_ = e.custody.TransferOut(ctx, p.Asset, p.Owner, p.Amount)
		} else {
			_ = e.custody.TransferOut(ctx, p.CollateralToken, p.Owner, p.CollateralAmount)
		}
		if res != nil {
			if settleErr := e.settleExpired(ctx, res.Expired); settleErr != nil {
				return nil, settleErr
			}
		}
		return nil, err
	}
	if err := e.afterPlacement(ctx, &PlaceResult{Order: res.Order, Matches: res.Matches, Expired: res.Expired}); err != nil {
		return nil, err
	}
	// Market orders never rest: refund the unfilled remainder.
	if res.Order.Remaining.IsPositive() || res.Order.UnlockedCollateral().IsPositive() {
		if err := e.refundOrder(ctx, res.Order); err != nil {
			return nil, fmt.Errorf("refund remainder: %w", err)
		}
	}
	res.Order.Remaining = decimal.Zero
	e.persistOrder(ctx, res.Order)
	return res, nil
}

// Repay pays down a loan. The payment is capped at outstanding debt; full
// repayment releases the collateral back to the borrower.
func (e *Engine) Repay(ctx context.Context, loanID uint64, payer string, amount decimal.Decimal) (*RepayResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.registry.Loan(loanID)
	if !ok {
		return nil, ErrLoanNotFound
	}
	if l.Terminal() {
		return nil, ErrLoanTerminal
	}
	now := e.now()
	if err := e.registry.AccrueInterest(loanID, now); err != nil {
		return nil, err
	}
	applied := decimal.Min(amount, l.TotalDebt())
	if !applied.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := e.custody.TransferIn(ctx, l.Asset, payer, applied); err != nil {
		return nil, fmt.Errorf("collect repayment: %w", err)
	}

	res, err := e.registry.Repay(loanID, applied, now)
	if err != nil {
		return nil, err
	}

	if pool := e.poolByAccount(l.Lender); pool != nil {
		pool.OnRepaid(res.PrincipalPaid)
		e.rebalancePool(ctx, pool)
	} else if err := e.custody.TransferOut(ctx, l.Asset, l.Lender, res.Applied); err != nil {
		return nil, fmt.Errorf("pay lender: %w", err)
	}

	if res.Closed {
		if l.CollateralAmount.IsPositive() {
			if err := e.custody.TransferOut(ctx, l.CollateralToken, l.Borrower, l.CollateralAmount); err != nil {
				return nil, fmt.Errorf("release collateral: %w", err)
			}
			l.CollateralAmount = decimal.Zero
		}
		if e.metrics != nil {
			e.metrics.LoansRepaid.Inc()
		}
	}

	e.persistLoan(ctx, l)
	e.publish(ctx, domain.LoanRepaidEvent{
		LoanID:        loanID,
		Amount:        res.Applied,
		RemainingDebt: res.RemainingDebt,
		Closed:        res.Closed,
		Timestamp:     now,
	})
	return res, nil
}

// LiquidateLoan is the user-callable liquidation path.
func (e *Engine) LiquidateLoan(ctx context.Context, loanID uint64, liquidator string, debtToCover decimal.Decimal) (*domain.Liquidation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	liq, err := e.risk.LiquidateLoan(ctx, loanID, liquidator, debtToCover)
	if err != nil {
		return nil, err
	}
	e.settleLiquidation(ctx, liq)
	return liq, nil
}

func (e *Engine) settleLiquidation(ctx context.Context, liq *domain.Liquidation) {
	l, _ := e.registry.Loan(liq.LoanID)
	if l != nil {
		// The covered debt the liquidator paid in belongs to the lender,
		// same as a repayment.
		if pool := e.poolByAccount(l.Lender); pool != nil {
			pool.OnRepaid(liq.DebtCovered)
		} else if err := e.custody.TransferOut(ctx, l.Asset, l.Lender, liq.DebtCovered); err != nil {
			e.logger.Error("pay lender after liquidation",
				zap.Uint64("loan_id", liq.LoanID),
				zap.String("lender", l.Lender),
				zap.Error(err),
			)
		}
		e.persistLoan(ctx, l)
	}
	if e.repo != nil {
		_ = e.repo.SaveLiquidation(ctx, liq)
	}
	e.publish(ctx, domain.LiquidationExecutedEvent{
		LoanID:           liq.LoanID,
		Liquidator:       liq.Liquidator,
		DebtCovered:      liq.DebtCovered,
		CollateralSeized: liq.CollateralSeized,
		Reward:           liq.Reward,
		Timestamp:        liq.Timestamp,
	})
	if e.metrics != nil {
		e.metrics.Liquidations.Inc()
	}
}

// CalculateHealthFactor exposes the risk engine's computation.
func (e *Engine) CalculateHealthFactor(ctx context.Context, loanID uint64) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.risk.CalculateHealthFactor(ctx, loanID)
}

// RunHealthCheck performs one sweep over the risk-monitoring set.
func (e *Engine) RunHealthCheck(ctx context.Context) *HealthCheckReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := e.risk.PerformHealthCheck(ctx)
	for _, ev := range report.Checked {
		e.publish(ctx, ev)
	}
	for _, liq := range report.Liquidations {
		e.settleLiquidation(ctx, liq)
	}
	if e.metrics != nil {
		e.metrics.HealthChecks.Inc()
	}
	return report
}

// StartRiskMonitor runs health-check sweeps on a timer until the context is
// cancelled.
func (e *Engine) StartRiskMonitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.RunHealthCheck(ctx)
			}
		}
	}()
}

// PoolDeposit adds liquidity to an asset's pool and re-places its resting
// order at the recomputed rate.
func (e *Engine) PoolDeposit(ctx context.Context, asset, account string, amount decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, ok := e.pools[asset]
	if !ok {
		return decimal.Zero, ErrPoolNotFound
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := e.custody.TransferIn(ctx, asset, account, amount); err != nil {
		return decimal.Zero, fmt.Errorf("escrow deposit: %w", err)
	}
	pool.Accrue()
	shares, err := pool.Deposit(account, amount)
	if err != nil {
		return decimal.Zero, err
	}
	e.rebalancePool(ctx, pool)
	if e.metrics != nil {
		e.metrics.PoolDeposits.Inc()
	}
	return shares, nil
}

// PoolWithdraw burns shares and pays out the index-grown amount.
func (e *Engine) PoolWithdraw(ctx context.Context, asset, account string, shares decimal.Decimal) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, ok := e.pools[asset]
	if !ok {
		return decimal.Zero, ErrPoolNotFound
	}
	pool.Accrue()
	amount, err := pool.Withdraw(account, shares)
	if err != nil {
		return decimal.Zero, err
	}
	if err := e.custody.TransferOut(ctx, asset, account, amount); err != nil {
		return decimal.Zero, fmt.Errorf("pay out withdrawal: %w", err)
	}
	e.rebalancePool(ctx, pool)
	if e.metrics != nil {
		e.metrics.PoolWithdrawals.Inc()
	}
	return amount, nil
}

// rebalancePool is the cancel-and-replace cycle: drop the pool's resting
// order, reprice from utilization, and offer the free liquidity at the new
// rate. Cancel/place failures are logged and skipped; they never fail the
// deposit, withdrawal or repayment that triggered the rebalance.
func (e *Engine) rebalancePool(ctx context.Context, pool *LendingPool) {
	if pool.RestingOrderID != 0 {
		if _, err := e.cancelLocked(ctx, pool.RestingOrderID, pool.Account); err != nil {
			e.logger.Debug("pool order cancel skipped",
				zap.String("asset", pool.Asset),
				zap.Uint64("order_id", pool.RestingOrderID),
				zap.Error(err),
			)
		}
		pool.RestingOrderID = 0
	}

	rate := pool.Reprice()
	available := pool.Available()
	if available.GreaterThanOrEqual(e.book.minOrderSize) && rate > 0 {
		res, err := e.book.PlaceLendOrder(
			pool.Account, pool.Asset, available, rate,
			pool.OrderDuration, pool.OrderMaxLTV, pool.CollateralToken,
			e.now().Add(pool.OrderTTL),
		)
		if err != nil {
			e.logger.Warn("pool order placement failed",
				zap.String("asset", pool.Asset),
				zap.Error(err),
			)
		} else {
			pool.RestingOrderID = res.Order.ID
			if err := e.afterPlacement(ctx, res); err != nil {
				e.logger.Warn("pool order settlement failed",
					zap.String("asset", pool.Asset),
					zap.Error(err),
				)
			}
		}
	}

	e.publish(ctx, domain.PoolRateUpdatedEvent{
		Asset:       pool.Asset,
		Utilization: pool.Utilization(),
		Rate:        rate,
		Available:   pool.Available(),
		Timestamp:   e.now(),
	})
}

// PoolStats is the read-model for one pool.
type PoolStats struct {
	Asset       string          `json:"asset"`
	TotalAssets decimal.Decimal `json:"total_assets"`
	Borrowed    decimal.Decimal `json:"borrowed"`
	Available   decimal.Decimal `json:"available"`
	Utilization int64           `json:"utilization"` // bps
	CurrentRate int64           `json:"current_rate"`
}

func (e *Engine) GetPoolStats(asset string) (*PoolStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, ok := e.pools[asset]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return &PoolStats{
		Asset:       asset,
		TotalAssets: pool.TotalAssets(),
		Borrowed:    pool.totalBorrowed,
		Available:   pool.Available(),
		Utilization: pool.Utilization(),
		CurrentRate: pool.CurrentRate(),
	}, nil
}

func (e *Engine) GetOrder(orderID uint64) (*domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.book.Order(orderID)
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (e *Engine) GetLoan(loanID uint64) (*domain.Loan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.registry.Loan(loanID)
	if !ok {
		return nil, ErrLoanNotFound
	}
	return l, nil
}

// BestLendingRate returns the lowest live lend rate for an asset. Expired
// orders the scan evicted are refunded before the rate is returned.
func (e *Engine) BestLendingRate(ctx context.Context, asset string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rate, expired, err := e.book.BestLendingRate(asset)
	if settleErr := e.settleExpired(ctx, expired); settleErr != nil {
		return 0, settleErr
	}
	if len(expired) > 0 {
		e.refreshDepth(ctx, asset)
	}
	return rate, err
}

// BestBorrowingRate returns the highest live borrow rate for an asset.
func (e *Engine) BestBorrowingRate(ctx context.Context, asset string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rate, expired, err := e.book.BestBorrowingRate(asset)
	if settleErr := e.settleExpired(ctx, expired); settleErr != nil {
		return 0, settleErr
	}
	if len(expired) > 0 {
		e.refreshDepth(ctx, asset)
	}
	return rate, err
}

// GetDepth serves the cached depth snapshot when available and falls back to
// the live book.
func (e *Engine) GetDepth(ctx context.Context, asset string, side domain.Side) (*domain.DepthSnapshot, error) {
	if e.cache != nil {
		if snap, err := e.cache.GetDepth(ctx, asset, side); err == nil && snap != nil {
			return snap, nil
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Depth(asset, side), nil
}

func (e *Engine) refreshDepth(ctx context.Context, asset string) {
	if e.cache == nil {
		return
	}
	_ = e.cache.SetDepth(ctx, e.book.Depth(asset, domain.Lend))
	_ = e.cache.SetDepth(ctx, e.book.Depth(asset, domain.Borrow))
}

func (e *Engine) poolByAccount(account string) *LendingPool {
	for _, p := range e.pools {
		if p.Account == account {
			return p
		}
	}
	return nil
}

func (e *Engine) persistOrder(ctx context.Context, o *domain.Order) {
	if e.repo != nil {
		_ = e.repo.SaveOrder(ctx, o)
	}
}

func (e *Engine) persistLoan(ctx context.Context, l *domain.Loan) {
	if e.repo != nil {
		_ = e.repo.SaveLoan(ctx, l)
	}
}

func (e *Engine) publish(ctx context.Context, ev domain.Event) {
	if e.events != nil {
		_ = e.events.Publish(ctx, ev)
	}
}
