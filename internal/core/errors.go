package core

import "errors"

// Sentinel errors, grouped by the taxonomy the API layer maps onto HTTP codes.
var (
	// Validation errors: rejected before any state change.
	ErrAmountTooSmall  = errors.New("amount below minimum order size")
	ErrInvalidRate     = errors.New("rate out of range")
	ErrInvalidLTV      = errors.New("max LTV out of range")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrExpiryInPast    = errors.New("expiry must be in the future")
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidSlippage = errors.New("max slippage must not be negative")

	// Authorization errors.
	ErrNotOrderOwner = errors.New("caller does not own the order")

	// State errors: "already terminal" is distinct from "not eligible".
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderTerminal  = errors.New("order already terminal")
	ErrLoanNotFound   = errors.New("loan not found")
	ErrLoanTerminal   = errors.New("loan already terminal")
	ErrLoanHealthy    = errors.New("loan not eligible for liquidation")
	ErrAssetDisabled  = errors.New("asset not enabled for lending")
	ErrUnknownAsset   = errors.New("no risk parameters for asset")
	ErrPoolNotFound   = errors.New("no pool for asset")
	ErrNoShares       = errors.New("insufficient pool shares")

	// External-dependency errors: abort the enclosing operation, or skip
	// the evaluation when computing would mislead.
	ErrPriceUnavailable = errors.New("price unavailable or stale")

	// Resource errors.
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrInsufficientLiquidity  = errors.New("insufficient liquidity")
	ErrNoLiquidity            = errors.New("no live orders on this side")
)
