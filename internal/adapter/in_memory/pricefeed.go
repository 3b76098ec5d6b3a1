package in_memory

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/lending-engine/internal/port"
)

var _ port.PriceFeed = (*StaticPriceFeed)(nil)

var ErrNoPrice = errors.New("no price for asset")

// StaticPriceFeed serves operator-set prices. An asset without a price, or
// one explicitly marked stale, returns an error rather than zero.
type StaticPriceFeed struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	stale  map[string]bool
}

func NewStaticPriceFeed() *StaticPriceFeed {
	return &StaticPriceFeed{
		prices: make(map[string]decimal.Decimal),
		stale:  make(map[string]bool),
	}
}

func (f *StaticPriceFeed) SetPrice(asset string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[asset] = price
	f.stale[asset] = false
}

// MarkStale makes subsequent GetPrice calls for the asset fail.
func (f *StaticPriceFeed) MarkStale(asset string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stale[asset] = true
}

func (f *StaticPriceFeed) GetPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.stale[asset] {
		return decimal.Zero, ErrNoPrice
	}
	p, ok := f.prices[asset]
	if !ok {
		return decimal.Zero, ErrNoPrice
	}
	return p, nil
}
