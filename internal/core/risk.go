package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/port"
	"github.com/olyamironova/lending-engine/internal/ratemath"
)

// autoLiquidationThreshold is 80% of the eligibility line: the health-check
// sweep liquidates below it as a protective backstop, distinct from the
// user-callable path which works anywhere under 100%.
var autoLiquidationThreshold = decimal.New(8, 17)

// RiskEngine computes health factors from loan state plus the external price
// feed, and executes liquidations. It keeps an explicit monitoring working
// set: loans are checked only after being registered.
type RiskEngine struct {
	registry *LoanRegistry
	prices   port.PriceFeed
	custody  port.Custody
	logger   *zap.Logger

	params          map[string]domain.RiskParameters
	monitored       map[uint64]time.Time // loan id -> last check
	checkInterval   time.Duration
	protocolAccount string
	now             func() time.Time
}

func NewRiskEngine(registry *LoanRegistry, prices port.PriceFeed, custody port.Custody, protocolAccount string, checkInterval time.Duration, logger *zap.Logger, now func() time.Time) *RiskEngine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskEngine{
		registry:        registry,
		prices:          prices,
		custody:         custody,
		logger:          logger,
		params:          make(map[string]domain.RiskParameters),
		monitored:       make(map[uint64]time.Time),
		checkInterval:   checkInterval,
		protocolAccount: protocolAccount,
		now:             now,
	}
}

// SetAssetRiskParameters validates and stores per-asset limits. Invariants
// are enforced here, at write time, never at read time.
func (e *RiskEngine) SetAssetRiskParameters(asset string, p domain.RiskParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.params[asset] = p
	return nil
}

// Parameters returns the risk parameters for an asset.
func (e *RiskEngine) Parameters(asset string) (domain.RiskParameters, error) {
	p, ok := e.params[asset]
	if !ok {
		return domain.RiskParameters{}, ErrUnknownAsset
	}
	if !p.Enabled {
		return domain.RiskParameters{}, ErrAssetDisabled
	}
	return p, nil
}

// RegisterForMonitoring adds a loan to the health-check working set.
func (e *RiskEngine) RegisterForMonitoring(loanID uint64) {
	if _, ok := e.monitored[loanID]; !ok {
		e.monitored[loanID] = time.Time{}
	}
}

func (e *RiskEngine) price(ctx context.Context, asset string) (decimal.Decimal, error) {
	p, err := e.prices.GetPrice(ctx, asset)
	if err != nil {
		return decimal.Zero, ErrPriceUnavailable
	}
	if !p.IsPositive() {
		return decimal.Zero, ErrPriceUnavailable
	}
	return p, nil
}

// CalculateHealthFactor returns the 1e18-scaled health factor of a loan:
// (collateralValue * liquidationThreshold / 10000) * 1e18 / totalDebt.
// Zero debt yields the max sentinel. A stale or missing price is an error,
// never a silent zero collateral value.
func (e *RiskEngine) CalculateHealthFactor(ctx context.Context, loanID uint64) (decimal.Decimal, error) {
	l, ok := e.registry.Loan(loanID)
	if !ok {
		return decimal.Zero, ErrLoanNotFound
	}
	p, ok := e.params[l.CollateralToken]
	if !ok {
		return decimal.Zero, ErrUnknownAsset
	}
	collPrice, err := e.price(ctx, l.CollateralToken)
	if err != nil {
		return decimal.Zero, err
	}
	assetPrice, err := e.price(ctx, l.Asset)
	if err != nil {
		return decimal.Zero, err
	}
	collateralValue := l.CollateralAmount.Mul(collPrice)
	debtValue := l.TotalDebt().Mul(assetPrice)
	return ratemath.HealthFactor(collateralValue, p.LiquidationThreshold, debtValue), nil
}

// IsLiquidationEligible reports health factor strictly below the 100% line.
func (e *RiskEngine) IsLiquidationEligible(ctx context.Context, loanID uint64) (bool, error) {
	hf, err := e.CalculateHealthFactor(ctx, loanID)
	if err != nil {
		return false, err
	}
	return hf.LessThan(ratemath.HealthFactorOne), nil
}

// LiquidateLoan covers part of an unhealthy loan's debt in exchange for
// discounted collateral. debtToCover is clamped to the close factor, and the
// seized collateral is the hard constraint: when the penalty-inflated seize
// amount exceeds what the loan holds, the covered debt is recomputed downward
// from the available collateral, not vice versa.
func (e *RiskEngine) LiquidateLoan(ctx context.Context, loanID uint64, liquidator string, debtToCover decimal.Decimal) (*domain.Liquidation, error) {
	l, ok := e.registry.Loan(loanID)
	if !ok {
		return nil, ErrLoanNotFound
	}
	if l.Terminal() {
		return nil, ErrLoanTerminal
	}
	if !debtToCover.IsPositive() {
		return nil, ErrInvalidAmount
	}
	eligible, err := e.IsLiquidationEligible(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, ErrLoanHealthy
	}
	if err := e.registry.AccrueInterest(loanID, e.now()); err != nil {
		return nil, err
	}

	p := e.params[l.CollateralToken]
	assetPrice, err := e.price(ctx, l.Asset)
	if err != nil {
		return nil, err
	}
	collPrice, err := e.price(ctx, l.CollateralToken)
	if err != nil {
		return nil, err
	}

	maxClose := ratemath.MaxCloseAmount(l.TotalDebt())
	if debtToCover.GreaterThan(maxClose) {
		debtToCover = maxClose
	}

	debtValue := debtToCover.Mul(assetPrice)
	seizeValue := ratemath.CollateralToSeize(debtValue, p.LiquidationPenalty)
	seizeAmount := seizeValue.Div(collPrice)
	if seizeAmount.GreaterThan(l.CollateralAmount) {
		seizeAmount = l.CollateralAmount
		seizeValue = seizeAmount.Mul(collPrice)
		debtValue = ratemath.DebtFromCollateral(seizeValue, p.LiquidationPenalty)
		debtToCover = debtValue.Div(assetPrice)
	}

	// Liquidator pays the covered debt into custody, then receives the
	// seized collateral. Either transfer failing aborts the liquidation.
	if err := e.custody.TransferIn(ctx, l.Asset, liquidator, debtToCover); err != nil {
		return nil, err
	}
	if err := e.custody.TransferOut(ctx, l.CollateralToken, liquidator, seizeAmount); err != nil {
		// Return the payment; the loan has not been touched yet.
		if refundErr := e.custody.TransferOut(ctx, l.Asset, liquidator, debtToCover); refundErr != nil {
			e.logger.Error("liquidation payment refund failed",
				zap.Uint64("loan_id", l.ID),
				zap.String("liquidator", liquidator),
				zap.Error(refundErr),
			)
		}
		return nil, err
	}

	interestPart := decimal.Min(debtToCover, l.AccruedInterest)
	l.AccruedInterest = l.AccruedInterest.Sub(interestPart)
	l.RemainingPrincipal = l.RemainingPrincipal.Sub(debtToCover.Sub(interestPart))
	l.CollateralAmount = l.CollateralAmount.Sub(seizeAmount)

	switch {
	case !l.TotalDebt().IsPositive():
		l.Status = domain.LoanLiquidated
	case !l.CollateralAmount.IsPositive():
		// Debt remains but nothing is left to seize.
		l.Status = domain.LoanDefaulted
	}

	return &domain.Liquidation{
		ID:               uuid.NewString(),
		LoanID:           l.ID,
		Liquidator:       liquidator,
		DebtCovered:      debtToCover,
		CollateralSeized: seizeAmount,
		Reward:           seizeValue.Sub(debtValue),
		Timestamp:        e.now(),
	}, nil
}

// HealthCheckReport is what one sweep over the monitoring set produced.
type HealthCheckReport struct {
	Checked      []domain.HealthFactorUpdatedEvent
	Liquidations []*domain.Liquidation
}

// PerformHealthCheck walks the monitoring working set, recomputes health
// factors for loans whose per-loan interval has elapsed, and auto-liquidates
// below the backstop threshold on behalf of the protocol account. Price
// unavailability skips the loan; it never counts as zero collateral.
func (e *RiskEngine) PerformHealthCheck(ctx context.Context) *HealthCheckReport {
	now := e.now()
	report := &HealthCheckReport{}
	for id, last := range e.monitored {
		l, ok := e.registry.Loan(id)
		if !ok || l.Terminal() {
			delete(e.monitored, id)
			continue
		}
		if !last.IsZero() && now.Sub(last) < e.checkInterval {
			continue
		}
		e.monitored[id] = now

		hf, err := e.CalculateHealthFactor(ctx, id)
		if err != nil {
			e.logger.Warn("health check skipped",
				zap.Uint64("loan_id", id),
				zap.Error(err),
			)
			continue
		}
		report.Checked = append(report.Checked, domain.HealthFactorUpdatedEvent{
			LoanID:       id,
			HealthFactor: hf,
			Timestamp:    now,
		})

		if hf.LessThan(autoLiquidationThreshold) {
			liq, err := e.LiquidateLoan(ctx, id, e.protocolAccount, ratemath.MaxCloseAmount(l.TotalDebt()))
			if err != nil {
				e.logger.Warn("auto-liquidation failed",
					zap.Uint64("loan_id", id),
					zap.Error(err),
				)
				continue
			}
			report.Liquidations = append(report.Liquidations, liq)
		}
	}
	return report
}
