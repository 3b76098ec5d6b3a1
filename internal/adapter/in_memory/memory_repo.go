package in_memory

import (
	"context"
	"sort"
	"sync"

	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/port"
)

var _ port.Repository = (*MemoryRepo)(nil)

// MemoryRepo is the repository used in tests and single-node deployments
// without postgres. It stores copies so later in-memory mutation of live
// objects does not retroactively change what was "persisted".
type MemoryRepo struct {
	mu           sync.Mutex
	orders       map[uint64]*domain.Order
	loans        map[uint64]*domain.Loan
	liquidations map[string]*domain.Liquidation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orders:       make(map[uint64]*domain.Order),
		loans:        make(map[uint64]*domain.Loan),
		liquidations: make(map[string]*domain.Liquidation),
	}
}

func (r *MemoryRepo) SaveOrder(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	if o.Lend != nil {
		lt := *o.Lend
		cp.Lend = &lt
	}
	if o.Borrow != nil {
		bt := *o.Borrow
		cp.Borrow = &bt
	}
	r.orders[o.ID] = &cp
	return nil
}

func (r *MemoryRepo) SaveLoan(ctx context.Context, l *domain.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.loans[l.ID] = &cp
	return nil
}

func (r *MemoryRepo) SaveLiquidation(ctx context.Context, liq *domain.Liquidation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *liq
	r.liquidations[liq.ID] = &cp
	return nil
}

func (r *MemoryRepo) LoadOpenOrders(ctx context.Context, asset string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Order
	for _, o := range r.orders {
		if o.Asset == asset && !o.Terminal() {
			cp := *o
			res = append(res, &cp)
		}
	}
	// FIFO order, same contract as the postgres query.
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (r *MemoryRepo) LoadActiveLoans(ctx context.Context) ([]*domain.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Loan
	for _, l := range r.loans {
		if l.Status == domain.LoanActive {
			cp := *l
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// Liquidations returns saved liquidation records, for inspection in tests.
func (r *MemoryRepo) Liquidations() []*domain.Liquidation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Liquidation
	for _, liq := range r.liquidations {
		cp := *liq
		res = append(res, &cp)
	}
	return res
}

func (r *MemoryRepo) Close(ctx context.Context) {}
