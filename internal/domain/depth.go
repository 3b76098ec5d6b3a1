package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepthLevel aggregates live remaining amounts at one rate.
type DepthLevel struct {
	Rate   int64           `json:"rate"` // bps
	Amount decimal.Decimal `json:"amount"`
}

// DepthSnapshot is the per-asset, per-side view of the book, best rate first.
type DepthSnapshot struct {
	Asset     string       `json:"asset"`
	Side      Side         `json:"side"`
	Levels    []DepthLevel `json:"levels"`
	Timestamp time.Time    `json:"timestamp"`
}

func (s *DepthSnapshot) DeepCopy() *DepthSnapshot {
	cp := *s
	cp.Levels = make([]DepthLevel, len(s.Levels))
	copy(cp.Levels, s.Levels)
	return &cp
}
