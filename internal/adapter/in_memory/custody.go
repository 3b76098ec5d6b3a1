package in_memory

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/olyamironova/lending-engine/internal/port"
)

var _ port.Custody = (*LedgerCustody)(nil)

var ErrInsufficientBalance = errors.New("insufficient balance")

type balanceKey struct {
	asset   string
	account string
}

// LedgerCustody is a double-entry toy custodian: account balances on one
// side, a single engine escrow per asset on the other. TransferIn debits the
// account and credits the escrow, TransferOut the reverse. Used by tests and
// by deployments where settlement is simulated.
type LedgerCustody struct {
	mu       sync.Mutex
	balances map[balanceKey]decimal.Decimal
	escrow   map[string]decimal.Decimal
}

func NewLedgerCustody() *LedgerCustody {
	return &LedgerCustody{
		balances: make(map[balanceKey]decimal.Decimal),
		escrow:   make(map[string]decimal.Decimal),
	}
}

// Fund seeds an account balance; test setup helper.
func (c *LedgerCustody) Fund(asset, account string, amount decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := balanceKey{asset, account}
	c.balances[k] = c.balances[k].Add(amount)
}

func (c *LedgerCustody) TransferIn(ctx context.Context, asset, from string, amount decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := balanceKey{asset, from}
	if c.balances[k].LessThan(amount) {
		return ErrInsufficientBalance
	}
	c.balances[k] = c.balances[k].Sub(amount)
	c.escrow[asset] = c.escrow[asset].Add(amount)
	return nil
}

func (c *LedgerCustody) TransferOut(ctx context.Context, asset, to string, amount decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.escrow[asset].LessThan(amount) {
		return ErrInsufficientBalance
	}
	c.escrow[asset] = c.escrow[asset].Sub(amount)
	k := balanceKey{asset, to}
	c.balances[k] = c.balances[k].Add(amount)
	return nil
}

// Balance returns an account's free balance.
func (c *LedgerCustody) Balance(asset, account string) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[balanceKey{asset, account}]
}

// Escrowed returns the engine's escrow for an asset.
func (c *LedgerCustody) Escrowed(asset string) decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.escrow[asset]
}
