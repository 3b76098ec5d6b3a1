package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olyamironova/lending-engine/internal/adapter/in_memory"
	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/ratemath"
)

type riskFixture struct {
	registry *RiskEngine
	loans    *LoanRegistry
	prices   *in_memory.StaticPriceFeed
	custody  *in_memory.LedgerCustody
	clock    *testClock
}

func newRiskFixture(t *testing.T) *riskFixture {
	t.Helper()
	clock := &testClock{t: testStart}
	loans := NewLoanRegistry(clock.Now)
	prices := in_memory.NewStaticPriceFeed()
	custody := in_memory.NewLedgerCustody()
	re := NewRiskEngine(loans, prices, custody, "protocol", time.Minute, nil, clock.Now)

	require.NoError(t, re.SetAssetRiskParameters("USDC", domain.RiskParameters{
		MaxLTV:               8000,
		LiquidationThreshold: 8500,
		LiquidationPenalty:   500,
		MinCollateralRatio:   12500,
		Enabled:              true,
	}))
	require.NoError(t, re.SetAssetRiskParameters("ETH", domain.RiskParameters{
		MaxLTV:               7500,
		LiquidationThreshold: 8000,
		LiquidationPenalty:   500,
		MinCollateralRatio:   12500,
		Enabled:              true,
	}))
	prices.SetPrice("USDC", dec("1"))
	prices.SetPrice("ETH", dec("2000"))

	return &riskFixture{registry: re, loans: loans, prices: prices, custody: custody, clock: clock}
}

// newLoan creates an active loan directly in the registry: debt in USDC
// against ETH collateral.
func (f *riskFixture) newLoan(principal, collateral string) *domain.Loan {
	lend := &domain.Order{
		ID: 1, Owner: "lender", Asset: "USDC", Side: domain.Lend,
		Principal: dec(principal), Remaining: dec(principal), Rate: 800,
		Duration: 30 * 24 * time.Hour,
		Lend:     &domain.LendTerms{MaxLTV: 8000, CollateralToken: "ETH"},
	}
	borrow := &domain.Order{
		ID: 2, Owner: "borrower", Asset: "USDC", Side: domain.Borrow,
		Principal: dec(principal), Remaining: dec(principal), Rate: 900,
		Duration: 30 * 24 * time.Hour,
		Borrow: &domain.BorrowTerms{
			CollateralToken:  "ETH",
			CollateralAmount: dec(collateral),
		},
	}
	return f.loans.CreateLoan(lend, borrow, dec(principal), "USDC")
}

func TestRiskParameterValidation(t *testing.T) {
	f := newRiskFixture(t)

	err := f.registry.SetAssetRiskParameters("BAD", domain.RiskParameters{
		MaxLTV:               9000,
		LiquidationThreshold: 8000, // below maxLTV
	})
	assert.Error(t, err)

	err = f.registry.SetAssetRiskParameters("BAD", domain.RiskParameters{
		MaxLTV:               8000,
		LiquidationThreshold: 10001,
	})
	assert.Error(t, err)

	_, err = f.registry.Parameters("UNKNOWN")
	assert.ErrorIs(t, err, ErrUnknownAsset)

	require.NoError(t, f.registry.SetAssetRiskParameters("OFF", domain.RiskParameters{
		MaxLTV: 1, LiquidationThreshold: 1, MinCollateralRatio: 1, Enabled: false,
	}))
	_, err = f.registry.Parameters("OFF")
	assert.ErrorIs(t, err, ErrAssetDisabled)
}

func TestHealthFactorComputation(t *testing.T) {
	f := newRiskFixture(t)
	// Debt 1000 USDC, collateral 1 ETH @ 2000, threshold 80%:
	// HF = 2000*0.8/1000 = 1.6e18.
	l := f.newLoan("1000", "1")

	hf, err := f.registry.CalculateHealthFactor(context.Background(), l.ID)
	require.NoError(t, err)
	assert.True(t, hf.Equal(dec("1.6").Mul(ratemath.HealthFactorOne)), "got %s", hf)
}

// Exactly 1e18 is the boundary: not eligible, strict less-than.
func TestLiquidationEligibilityBoundary(t *testing.T) {
	f := newRiskFixture(t)
	l := f.newLoan("1600", "1") // HF = 2000*0.8/1600 = 1.0 exactly

	eligible, err := f.registry.IsLiquidationEligible(context.Background(), l.ID)
	require.NoError(t, err)
	assert.False(t, eligible)

	_, err = f.registry.LiquidateLoan(context.Background(), l.ID, "liquidator", dec("100"))
	assert.ErrorIs(t, err, ErrLoanHealthy)
}

func TestHealthFactorStalePrice(t *testing.T) {
	f := newRiskFixture(t)
	l := f.newLoan("1000", "1")
	f.prices.MarkStale("ETH")

	_, err := f.registry.CalculateHealthFactor(context.Background(), l.ID)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
}

func TestLiquidateCloseFactorClamp(t *testing.T) {
	f := newRiskFixture(t)
	// HF = 2000*0.8/1800 = 0.888..., eligible.
	l := f.newLoan("1800", "1")
	f.custody.Fund("USDC", "liquidator", dec("10000"))
	f.custody.Fund("ETH", "engine-seed", dec("10"))
	require.NoError(t, f.custody.TransferIn(context.Background(), "ETH", "engine-seed", dec("10")))

	liq, err := f.registry.LiquidateLoan(context.Background(), l.ID, "liquidator", dec("1800"))
	require.NoError(t, err)

	// Close factor caps coverage at 50% of debt.
	assert.True(t, liq.DebtCovered.Equal(dec("900")), "got %s", liq.DebtCovered)
	// Seize = 900 * 1.05 / 2000 ETH.
	wantSeize := dec("945").Div(dec("2000"))
	assert.True(t, liq.CollateralSeized.Equal(wantSeize), "got %s", liq.CollateralSeized)
	// Reward is the 5% discount in value terms.
	assert.True(t, liq.Reward.Equal(dec("45")), "got %s", liq.Reward)

	assert.True(t, l.RemainingPrincipal.Equal(dec("900")))
	assert.Equal(t, domain.LoanActive, l.Status)

	// The liquidator ends holding the seized ETH.
	assert.True(t, f.custody.Balance("ETH", "liquidator").Equal(wantSeize))
}

// When the penalty-inflated seize amount exceeds the loan's collateral, the
// covered debt is recomputed downward from what is actually available.
func TestLiquidateCollateralIsHardConstraint(t *testing.T) {
	f := newRiskFixture(t)
	// Debt 1000, collateral 0.2 ETH = 400 value. HF = 400*0.8/1000 = 0.32.
	l := f.newLoan("1000", "0.2")
	f.custody.Fund("USDC", "liquidator", dec("10000"))
	f.custody.Fund("ETH", "engine-seed", dec("10"))
	require.NoError(t, f.custody.TransferIn(context.Background(), "ETH", "engine-seed", dec("10")))

	liq, err := f.registry.LiquidateLoan(context.Background(), l.ID, "liquidator", dec("500"))
	require.NoError(t, err)

	// All 0.2 ETH is seized; covered debt = 400/1.05.
	assert.True(t, liq.CollateralSeized.Equal(dec("0.2")), "got %s", liq.CollateralSeized)
	wantDebt := dec("400").Mul(dec("10000")).Div(dec("10500"))
	assert.True(t, liq.DebtCovered.Equal(wantDebt), "got %s", liq.DebtCovered)

	// Debt remains but collateral is gone: the loan defaults.
	assert.Equal(t, domain.LoanDefaulted, l.Status)
	assert.True(t, l.CollateralAmount.IsZero())
}

// A failed collateral payout must hand the liquidator's payment back instead
// of leaving it in escrow with the loan untouched.
func TestLiquidateRefundsPaymentOnSeizeFailure(t *testing.T) {
	f := newRiskFixture(t)
	l := f.newLoan("1800", "1") // HF 0.888..., eligible
	f.custody.Fund("USDC", "liquidator", dec("10000"))
	// No ETH in escrow, so the collateral payout cannot be honored.

	_, err := f.registry.LiquidateLoan(context.Background(), l.ID, "liquidator", dec("900"))
	require.ErrorIs(t, err, in_memory.ErrInsufficientBalance)

	// The payment came back and the loan is exactly as it was.
	assert.True(t, f.custody.Balance("USDC", "liquidator").Equal(dec("10000")))
	assert.True(t, f.custody.Escrowed("USDC").IsZero())
	assert.True(t, l.RemainingPrincipal.Equal(dec("1800")))
	assert.True(t, l.CollateralAmount.Equal(dec("1")))
	assert.Equal(t, domain.LoanActive, l.Status)
}

func TestLiquidateValidation(t *testing.T) {
	f := newRiskFixture(t)
	l := f.newLoan("1800", "1")

	_, err := f.registry.LiquidateLoan(context.Background(), 999, "liq", dec("1"))
	assert.ErrorIs(t, err, ErrLoanNotFound)

	_, err = f.registry.LiquidateLoan(context.Background(), l.ID, "liq", decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPerformHealthCheckSweep(t *testing.T) {
	f := newRiskFixture(t)
	healthy := f.newLoan("1000", "1")  // HF 1.6
	doomed := f.newLoan("1000", "0.4") // HF = 800*0.8/1000 = 0.64 < 0.8 backstop
	f.registry.RegisterForMonitoring(healthy.ID)
	f.registry.RegisterForMonitoring(doomed.ID)
	f.custody.Fund("USDC", "protocol", dec("100000"))
	f.custody.Fund("ETH", "engine-seed", dec("10"))
	require.NoError(t, f.custody.TransferIn(context.Background(), "ETH", "engine-seed", dec("10")))

	report := f.registry.PerformHealthCheck(context.Background())
	assert.Len(t, report.Checked, 2)
	require.Len(t, report.Liquidations, 1)
	assert.Equal(t, doomed.ID, report.Liquidations[0].LoanID)
	assert.Equal(t, "protocol", report.Liquidations[0].Liquidator)

	// Within the per-loan interval the sweep skips everything.
	report = f.registry.PerformHealthCheck(context.Background())
	assert.Empty(t, report.Checked)

	// After the interval elapses the loans are checked again.
	f.clock.Advance(2 * time.Minute)
	report = f.registry.PerformHealthCheck(context.Background())
	assert.NotEmpty(t, report.Checked)
}

func TestPerformHealthCheckSkipsOnStalePrice(t *testing.T) {
	f := newRiskFixture(t)
	l := f.newLoan("1000", "0.4")
	f.registry.RegisterForMonitoring(l.ID)
	f.prices.MarkStale("ETH")

	report := f.registry.PerformHealthCheck(context.Background())
	assert.Empty(t, report.Checked)
	assert.Empty(t, report.Liquidations)
	assert.Equal(t, domain.LoanActive, l.Status)
}
