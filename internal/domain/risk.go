package domain

import "errors"

// RiskParameters are the per-asset limits the risk engine enforces.
// All ratios are basis points.
type RiskParameters struct {
	MaxLTV               int64 `json:"max_ltv" yaml:"max_ltv"`
	LiquidationThreshold int64 `json:"liquidation_threshold" yaml:"liquidation_threshold"`
	LiquidationPenalty   int64 `json:"liquidation_penalty" yaml:"liquidation_penalty"`
	MinCollateralRatio   int64 `json:"min_collateral_ratio" yaml:"min_collateral_ratio"`
	Enabled              bool  `json:"enabled" yaml:"enabled"`
}

// Validate enforces the write-time invariants:
// maxLTV <= liquidationThreshold <= 10000, penalty <= 10000.
func (p RiskParameters) Validate() error {
	if p.MaxLTV < 0 || p.LiquidationThreshold < 0 || p.LiquidationPenalty < 0 || p.MinCollateralRatio < 0 {
		return errors.New("risk parameters must not be negative")
	}
	if p.MaxLTV > 10000 {
		return errors.New("max LTV exceeds 10000 bps")
	}
	if p.LiquidationThreshold > 10000 {
		return errors.New("liquidation threshold exceeds 10000 bps")
	}
	if p.MaxLTV > p.LiquidationThreshold {
		return errors.New("max LTV exceeds liquidation threshold")
	}
	if p.LiquidationPenalty > 10000 {
		return errors.New("liquidation penalty exceeds 10000 bps")
	}
	return nil
}
