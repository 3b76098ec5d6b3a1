// Package ratemath holds the pure interest, ratio and liquidation arithmetic.
// All rates and ratios are basis points (10000 bps = 100%); amounts and values
// are decimals. Nothing here carries state.
package ratemath

import "github.com/shopspring/decimal"

const (
	// BpsDenominator is the basis-point scale: 10000 bps = 100%.
	BpsDenominator int64 = 10000

	// SecondsPerYear for APR-style rates (365 days).
	SecondsPerYear int64 = 31536000

	// MaxRateBps bounds posted order rates.
	MaxRateBps int64 = 10000

	// CloseFactorBps caps the debt fraction one liquidation call may cover.
	CloseFactorBps int64 = 5000
)

var (
	bpsDen  = decimal.NewFromInt(BpsDenominator)
	yearSec = decimal.NewFromInt(SecondsPerYear)

	// HealthFactorOne is the 100% line on the 1e18 health-factor scale.
	HealthFactorOne = decimal.New(1, 18)

	// HealthFactorMax is the sentinel for zero-debt positions.
	HealthFactorMax = decimal.New(1, 27)
)

// SimpleInterest returns principal * rate * elapsedSeconds / (10000 * secondsPerYear).
// Used for per-loan accrual; compounding is reserved for pool indices.
func SimpleInterest(principal decimal.Decimal, rateBps int64, elapsedSeconds int64) decimal.Decimal {
	if elapsedSeconds <= 0 || rateBps <= 0 || !principal.IsPositive() {
		return decimal.Zero
	}
	num := principal.
		Mul(decimal.NewFromInt(rateBps)).
		Mul(decimal.NewFromInt(elapsedSeconds))
	return num.Div(bpsDen.Mul(yearSec))
}

// CompoundFactor returns the growth factor (1+r/year)^elapsed approximated by
// the truncated binomial series 1 + rt + rt^2/2 + rt^3/6 with rt = rate*elapsed/year.
// A general-exponent power is numerically expensive; the cubic series is the
// standard pool-index approximation. Exactly 1 when no time has elapsed.
func CompoundFactor(rateBps int64, elapsedSeconds int64) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if elapsedSeconds <= 0 || rateBps <= 0 {
		return one
	}
	rt := decimal.NewFromInt(rateBps).
		Mul(decimal.NewFromInt(elapsedSeconds)).
		Div(bpsDen.Mul(yearSec))
	rt2 := rt.Mul(rt).Div(decimal.NewFromInt(2))
	rt3 := rt.Mul(rt).Mul(rt).Div(decimal.NewFromInt(6))
	return one.Add(rt).Add(rt2).Add(rt3)
}

// UtilizationRate returns borrowed/supplied in bps, capped at 10000.
// Zero supply means zero utilization.
func UtilizationRate(totalBorrowed, totalSupplied decimal.Decimal) int64 {
	if !totalSupplied.IsPositive() || !totalBorrowed.IsPositive() {
		return 0
	}
	u := totalBorrowed.Mul(bpsDen).Div(totalSupplied).IntPart()
	if u > BpsDenominator {
		return BpsDenominator
	}
	return u
}

// CurveParams is the piecewise-linear "kink" rate model, all in bps.
type CurveParams struct {
	BaseRate           int64 `json:"base_rate" yaml:"base_rate"`
	Slope1             int64 `json:"slope1" yaml:"slope1"`
	Slope2             int64 `json:"slope2" yaml:"slope2"`
	OptimalUtilization int64 `json:"optimal_utilization" yaml:"optimal_utilization"`
}

// BorrowRate evaluates the kink curve at a utilization (bps).
// Below and at the optimal point: base + u*slope1/U*.
// Above: base + slope1 + (u-U*)*slope2/(10000-U*).
// The boundary at U* belongs to the lower branch.
func (c CurveParams) BorrowRate(utilizationBps int64) int64 {
	if utilizationBps < 0 {
		utilizationBps = 0
	}
	if utilizationBps > BpsDenominator {
		utilizationBps = BpsDenominator
	}
	if c.OptimalUtilization <= 0 || c.OptimalUtilization >= BpsDenominator {
		return c.BaseRate
	}
	if utilizationBps <= c.OptimalUtilization {
		return c.BaseRate + utilizationBps*c.Slope1/c.OptimalUtilization
	}
	excess := utilizationBps - c.OptimalUtilization
	return c.BaseRate + c.Slope1 + excess*c.Slope2/(BpsDenominator-c.OptimalUtilization)
}

// LTV returns debt/collateral in bps; max bps sentinel when collateral is zero.
func LTV(debtValue, collateralValue decimal.Decimal) int64 {
	if !collateralValue.IsPositive() {
		if debtValue.IsPositive() {
			return BpsDenominator
		}
		return 0
	}
	return debtValue.Mul(bpsDen).Div(collateralValue).IntPart()
}

// HealthFactor returns (collateralValue * threshold / 10000) * 1e18 / totalDebt.
// Zero debt yields HealthFactorMax; division by zero never happens.
func HealthFactor(collateralValue decimal.Decimal, liquidationThresholdBps int64, totalDebt decimal.Decimal) decimal.Decimal {
	if !totalDebt.IsPositive() {
		return HealthFactorMax
	}
	adjusted := collateralValue.
		Mul(decimal.NewFromInt(liquidationThresholdBps)).
		Div(bpsDen)
	return adjusted.Mul(HealthFactorOne).Div(totalDebt)
}

// CollateralToSeize returns debtToCover * (10000 + penalty) / 10000, in value terms.
func CollateralToSeize(debtToCover decimal.Decimal, penaltyBps int64) decimal.Decimal {
	return debtToCover.
		Mul(decimal.NewFromInt(BpsDenominator + penaltyBps)).
		Div(bpsDen)
}

// DebtFromCollateral inverts CollateralToSeize: collateral * 10000 / (10000 + penalty).
// Used when available collateral is the binding constraint and debt coverage
// must be recomputed from it.
func DebtFromCollateral(collateralValue decimal.Decimal, penaltyBps int64) decimal.Decimal {
	return collateralValue.
		Mul(bpsDen).
		Div(decimal.NewFromInt(BpsDenominator + penaltyBps))
}

// MaxCloseAmount caps a single liquidation at the close factor of total debt.
func MaxCloseAmount(totalDebt decimal.Decimal) decimal.Decimal {
	return totalDebt.Mul(decimal.NewFromInt(CloseFactorBps)).Div(bpsDen)
}

// ProportionalShare returns total * part / whole, the collateral fraction a
// partial fill carries into its loan.
func ProportionalShare(total, part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return total.Mul(part).Div(whole)
}
