package core

import (
	"container/list"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/ratemath"
)

// rateLevel is one rate bucket: a FIFO queue of resting orders plus an
// id -> element index so removal is O(1) within the level.
type rateLevel struct {
	rate  int64
	queue *list.List
	elems map[uint64]*list.Element
}

func newRateLevel(rate int64) *rateLevel {
	return &rateLevel{
		rate:  rate,
		queue: list.New(),
		elems: make(map[uint64]*list.Element),
	}
}

func (l *rateLevel) push(o *domain.Order) {
	l.elems[o.ID] = l.queue.PushBack(o)
}

func (l *rateLevel) remove(orderID uint64) {
	if el, ok := l.elems[orderID]; ok {
		l.queue.Remove(el)
		delete(l.elems, orderID)
	}
}

// bookSide indexes the rate levels of one (asset, side) pair. The B-tree keeps
// levels ordered by rate so best-rate scans cost O(active rates), and the map
// gives direct access for cancellation.
type bookSide struct {
	levels *btree.BTreeG[*rateLevel]
	byRate map[int64]*rateLevel
}

func newBookSide() *bookSide {
	return &bookSide{
		levels: btree.NewG(8, func(a, b *rateLevel) bool { return a.rate < b.rate }),
		byRate: make(map[int64]*rateLevel),
	}
}

func (s *bookSide) level(rate int64) *rateLevel {
	if l, ok := s.byRate[rate]; ok {
		return l
	}
	l := newRateLevel(rate)
	s.byRate[rate] = l
	s.levels.ReplaceOrInsert(l)
	return l
}

func (s *bookSide) dropIfEmpty(l *rateLevel) {
	if l.queue.Len() == 0 {
		s.levels.Delete(l)
		delete(s.byRate, l.rate)
	}
}

type sideKey struct {
	asset string
	side  domain.Side
}

// OrderBook owns all orders keyed by id plus the per (asset, side) rate
// indices and the matching algorithm. It is not safe for concurrent use;
// the Engine serializes access.
type OrderBook struct {
	minOrderSize decimal.Decimal
	nextID       uint64
	orders       map[uint64]*domain.Order
	sides        map[sideKey]*bookSide
	now          func() time.Time
}

func NewOrderBook(minOrderSize decimal.Decimal, now func() time.Time) *OrderBook {
	if now == nil {
		now = time.Now
	}
	return &OrderBook{
		minOrderSize: minOrderSize,
		nextID:       1,
		orders:       make(map[uint64]*domain.Order),
		sides:        make(map[sideKey]*bookSide),
		now:          now,
	}
}

func (b *OrderBook) side(asset string, side domain.Side) *bookSide {
	k := sideKey{asset: asset, side: side}
	s, ok := b.sides[k]
	if !ok {
		s = newBookSide()
		b.sides[k] = s
	}
	return s
}

func (b *OrderBook) Order(id uint64) (*domain.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// PlaceResult is what one placement produced: the resting/filled order, the
// pairwise matches executed against the book, and any resting orders that
// were discovered expired during the walk (the engine refunds those).
type PlaceResult struct {
	Order   *domain.Order
	Matches []*domain.Match
	Expired []*domain.Order
}

func (b *OrderBook) validateCommon(amount decimal.Decimal, rate int64, duration time.Duration, expiry time.Time) error {
	if amount.LessThan(b.minOrderSize) {
		return ErrAmountTooSmall
	}
	if rate <= 0 || rate > ratemath.MaxRateBps {
		return ErrInvalidRate
	}
	if duration <= 0 {
		return ErrInvalidDuration
	}
	if !expiry.After(b.now()) {
		return ErrExpiryInPast
	}
	return nil
}

// PlaceLendOrder validates, inserts into the LEND index and immediately
// attempts matching against resting borrow orders. Escrow is the caller's
// responsibility and happens before insertion.
func (b *OrderBook) PlaceLendOrder(owner, asset string, amount decimal.Decimal, rate int64, duration time.Duration, maxLTV int64, collateralToken string, expiry time.Time) (*PlaceResult, error) {
	if err := b.validateCommon(amount, rate, duration, expiry); err != nil {
		return nil, err
	}
	if maxLTV <= 0 || maxLTV > ratemath.BpsDenominator {
		return nil, ErrInvalidLTV
	}
	o := b.newOrder(owner, asset, domain.Lend, amount, rate, duration, expiry)
	o.Lend = &domain.LendTerms{MaxLTV: maxLTV, CollateralToken: collateralToken}
	res := &PlaceResult{Order: o}
	b.matchTaker(o, res)
	b.restOrFinish(o)
	return res, nil
}

// PlaceBorrowOrder validates, inserts into the BORROW index and immediately
// attempts matching against resting lend orders. The oracle-based collateral
// sufficiency check runs in the engine before escrow and before this call.
func (b *OrderBook) PlaceBorrowOrder(owner, asset string, amount decimal.Decimal, rate int64, duration time.Duration, collateralToken string, collateralAmount decimal.Decimal, expiry time.Time) (*PlaceResult, error) {
	if err := b.validateCommon(amount, rate, duration, expiry); err != nil {
		return nil, err
	}
	if !collateralAmount.IsPositive() {
		return nil, ErrInsufficientCollateral
	}
	o := b.newOrder(owner, asset, domain.Borrow, amount, rate, duration, expiry)
	o.Borrow = &domain.BorrowTerms{
		CollateralToken:  collateralToken,
		CollateralAmount: collateralAmount,
		CollateralLocked: decimal.Zero,
	}
	res := &PlaceResult{Order: o}
	b.matchTaker(o, res)
	b.restOrFinish(o)
	return res, nil
}

func (b *OrderBook) newOrder(owner, asset string, side domain.Side, amount decimal.Decimal, rate int64, duration time.Duration, expiry time.Time) *domain.Order {
	o := &domain.Order{
		ID:        b.nextID,
		Owner:     owner,
		Asset:     asset,
		Side:      side,
		Status:    domain.OrderPending,
		Principal: amount,
		Remaining: amount,
		Rate:      rate,
		Duration:  duration,
		CreatedAt: b.now(),
		ExpiresAt: expiry,
	}
	b.nextID++
	b.orders[o.ID] = o
	return o
}

func (b *OrderBook) restOrFinish(o *domain.Order) {
	if !o.Remaining.IsPositive() {
		o.Status = domain.OrderFilled
		return
	}
	b.side(o.Asset, o.Side).level(o.Rate).push(o)
}

// matchTaker runs the taker-initiated walk. A lend taker scans borrow levels
// in descending rate order (borrower willing to pay the most, first) down to
// its own rate; a borrow taker scans lend levels ascending (cheapest lender
// first) up to its own rate. Within a level fills are FIFO. Every loan is
// created at the lender's posted rate.
func (b *OrderBook) matchTaker(taker *domain.Order, res *PlaceResult) {
	if taker.Side == domain.Lend {
		b.walk(taker, domain.Borrow, taker.Rate, true, res, nil)
	} else {
		b.walk(taker, domain.Lend, taker.Rate, false, res, nil)
	}
}

// walk consumes counter-side liquidity. bound is inclusive: for a descending
// walk levels with rate >= bound are eligible, for an ascending walk levels
// with rate <= bound. rateOf overrides the per-fill loan rate; when nil the
// limit-order rule applies (lender's posted rate).
func (b *OrderBook) walk(taker *domain.Order, opposite domain.Side, bound int64, descending bool, res *PlaceResult, rateOf func(maker *domain.Order) int64) {
	side := b.side(taker.Asset, opposite)
	now := b.now()

	var eligible []*rateLevel
	collect := func(l *rateLevel) bool {
		if descending {
			if l.rate < bound {
				return false
			}
		} else if l.rate > bound {
			return false
		}
		eligible = append(eligible, l)
		return true
	}
	if descending {
		side.levels.Descend(collect)
	} else {
		side.levels.Ascend(collect)
	}

	for _, lvl := range eligible {
		if !taker.Remaining.IsPositive() {
			break
		}
		for el := lvl.queue.Front(); el != nil && taker.Remaining.IsPositive(); {
			next := el.Next()
			maker := el.Value.(*domain.Order)

			// Re-validate before every fill step; cancelled or filled
			// orders may linger until lazily skipped here.
			if maker.Terminal() || !maker.Remaining.IsPositive() {
				lvl.remove(maker.ID)
				el = next
				continue
			}
			if !now.Before(maker.ExpiresAt) {
				maker.Status = domain.OrderExpired
				lvl.remove(maker.ID)
				res.Expired = append(res.Expired, maker)
				el = next
				continue
			}

			amt := decimal.Min(taker.Remaining, maker.Remaining)
			rate := lvl.rate
			if rateOf != nil {
				rate = rateOf(maker)
			} else if taker.Side == domain.Lend {
				rate = taker.Rate
			}

			taker.Remaining = taker.Remaining.Sub(amt)
			maker.Remaining = maker.Remaining.Sub(amt)
			b.fillStatus(taker)
			b.fillStatus(maker)
			if !maker.Remaining.IsPositive() {
				lvl.remove(maker.ID)
			}

			m := &domain.Match{
				ID:        uuid.NewString(),
				Asset:     taker.Asset,
				Amount:    amt,
				Rate:      rate,
				Timestamp: now,
			}
			if taker.Side == domain.Lend {
				m.LendOrderID, m.BorrowOrderID = taker.ID, maker.ID
			} else {
				m.LendOrderID, m.BorrowOrderID = maker.ID, taker.ID
			}
			res.Matches = append(res.Matches, m)
			el = next
		}
		side.dropIfEmpty(lvl)
	}
}

func (b *OrderBook) fillStatus(o *domain.Order) {
	if !o.Remaining.IsPositive() {
		o.Status = domain.OrderFilled
	} else if o.Remaining.LessThan(o.Principal) {
		o.Status = domain.OrderPartiallyFilled
	}
}

// CancelOrder removes the order from its rate bucket and marks it CANCELLED.
// Only the owner may cancel, and only while the order is PENDING or
// PARTIALLY_FILLED. The caller refunds escrow and then zeroes Remaining.
func (b *OrderBook) CancelOrder(orderID uint64, owner string) (*domain.Order, error) {
	o, ok := b.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if o.Owner != owner {
		return nil, ErrNotOrderOwner
	}
	if o.Terminal() {
		return nil, ErrOrderTerminal
	}
	side := b.side(o.Asset, o.Side)
	if lvl, ok := side.byRate[o.Rate]; ok {
		lvl.remove(o.ID)
		side.dropIfEmpty(lvl)
	}
	o.Status = domain.OrderCancelled
	return o, nil
}

// MarkExpired finalizes an expired order after the engine refunded it.
func (b *OrderBook) MarkExpired(o *domain.Order) {
	o.Status = domain.OrderExpired
	o.Remaining = decimal.Zero
}

// BestLendingRate returns the lowest rate with at least one live lend order.
// Dead orders found along the way are evicted from their level; expired ones
// come back for the caller to refund, as in the matching walk.
func (b *OrderBook) BestLendingRate(asset string) (int64, []*domain.Order, error) {
	return b.bestRate(asset, domain.Lend, false)
}

// BestBorrowingRate returns the highest rate with at least one live borrow order.
func (b *OrderBook) BestBorrowingRate(asset string) (int64, []*domain.Order, error) {
	return b.bestRate(asset, domain.Borrow, true)
}

func (b *OrderBook) bestRate(asset string, side domain.Side, descending bool) (int64, []*domain.Order, error) {
	s := b.side(asset, side)
	now := b.now()

	var levels []*rateLevel
	collect := func(l *rateLevel) bool {
		levels = append(levels, l)
		return true
	}
	if descending {
		s.levels.Descend(collect)
	} else {
		s.levels.Ascend(collect)
	}

	var expired []*domain.Order
	best := int64(-1)
	for _, lvl := range levels {
		for el := lvl.queue.Front(); el != nil && best < 0; {
			next := el.Next()
			o := el.Value.(*domain.Order)
			switch {
			case o.Terminal() || !o.Remaining.IsPositive():
				lvl.remove(o.ID)
			case !now.Before(o.ExpiresAt):
				// Evict instead of skipping; a level of expired leftovers
				// is scanned once, not on every query.
				o.Status = domain.OrderExpired
				lvl.remove(o.ID)
				expired = append(expired, o)
			default:
				best = lvl.rate
			}
			el = next
		}
		s.dropIfEmpty(lvl)
		if best >= 0 {
			break
		}
	}
	if best < 0 {
		return 0, expired, ErrNoLiquidity
	}
	return best, expired, nil
}

// Depth sums live remaining amounts per active rate, best rate first.
func (b *OrderBook) Depth(asset string, side domain.Side) *domain.DepthSnapshot {
	s := b.side(asset, side)
	now := b.now()
	snap := &domain.DepthSnapshot{Asset: asset, Side: side, Timestamp: now}
	scan := func(l *rateLevel) bool {
		total := decimal.Zero
		for el := l.queue.Front(); el != nil; el = el.Next() {
			if o := el.Value.(*domain.Order); o.Live(now) {
				total = total.Add(o.Remaining)
			}
		}
		if total.IsPositive() {
			snap.Levels = append(snap.Levels, domain.DepthLevel{Rate: l.rate, Amount: total})
		}
		return true
	}
	if side == domain.Lend {
		s.levels.Ascend(scan)
	} else {
		s.levels.Descend(scan)
	}
	return snap
}

// MarketParams describes a market order: consume counter-side liquidity at
// whatever rates the book offers, bounded by MaxSlippageBps away from the
// best rate available when the walk starts.
type MarketParams struct {
	Owner          string
	Asset          string
	Side           domain.Side
	Amount         decimal.Decimal
	MaxSlippageBps int64
	Duration       time.Duration

	// Lend-side taker terms.
	MaxLTV          int64
	CollateralToken string

	// Borrow-side taker terms.
	CollateralAmount decimal.Decimal
}

type MarketResult struct {
	Order    *domain.Order
	Executed decimal.Decimal
	AvgRate  decimal.Decimal // volume-weighted, bps
	Matches  []*domain.Match
	Expired  []*domain.Order
}

// ExecuteMarketOrder walks the opposite side in favorable order until the
// amount is filled, the book is exhausted, or the slippage bound is hit.
// The slippage bound is enforced as a hard cap: levels past best±maxSlippage
// are never consumed and the remainder is left unfilled for the engine to
// refund. Fills happen at the resting order's posted rate. On ErrNoLiquidity
// the returned result still carries any orders the best-rate scan evicted as
// expired; the engine refunds those too.
func (b *OrderBook) ExecuteMarketOrder(p MarketParams) (*MarketResult, error) {
	if !p.Amount.IsPositive() || p.Amount.LessThan(b.minOrderSize) {
		return nil, ErrAmountTooSmall
	}
	if p.MaxSlippageBps < 0 {
		return nil, ErrInvalidSlippage
	}
	if p.Duration <= 0 {
		return nil, ErrInvalidDuration
	}

	var (
		bound      int64
		descending bool
		expired    []*domain.Order
	)
	if p.Side == domain.Lend {
		best, evicted, err := b.BestBorrowingRate(p.Asset)
		if err != nil {
			return &MarketResult{Expired: evicted}, err
		}
		expired = evicted
		descending = true
		bound = best - p.MaxSlippageBps
		if bound < 0 {
			bound = 0
		}
	} else {
		best, evicted, err := b.BestLendingRate(p.Asset)
		if err != nil {
			return &MarketResult{Expired: evicted}, err
		}
		expired = evicted
		descending = false
		bound = best + p.MaxSlippageBps
		if bound > ratemath.MaxRateBps {
			bound = ratemath.MaxRateBps
		}
	}

	// Market orders never rest: give the taker a synthetic order that is
	// finalized as soon as the walk completes.
	now := b.now()
	o := &domain.Order{
		ID:        b.nextID,
		Owner:     p.Owner,
		Asset:     p.Asset,
		Side:      p.Side,
		Status:    domain.OrderPending,
		Principal: p.Amount,
		Remaining: p.Amount,
		Duration:  p.Duration,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Second), // consumed within this call
	}
	b.nextID++
	b.orders[o.ID] = o
	if p.Side == domain.Lend {
		o.Lend = &domain.LendTerms{MaxLTV: p.MaxLTV, CollateralToken: p.CollateralToken}
	} else {
		o.Borrow = &domain.BorrowTerms{
			CollateralToken:  p.CollateralToken,
			CollateralAmount: p.CollateralAmount,
			CollateralLocked: decimal.Zero,
		}
	}

	res := &PlaceResult{Order: o, Expired: expired}
	b.walk(o, oppositeOf(p.Side), bound, descending, res, func(maker *domain.Order) int64 {
		return maker.Rate
	})

	executed := p.Amount.Sub(o.Remaining)
	out := &MarketResult{
		Order:    o,
		Executed: executed,
		Matches:  res.Matches,
		Expired:  res.Expired,
	}
	if executed.IsPositive() {
		weighted := decimal.Zero
		for _, m := range res.Matches {
			weighted = weighted.Add(m.Amount.Mul(decimal.NewFromInt(m.Rate)))
		}
		out.AvgRate = weighted.Div(executed)
	}
	// Finalize: the unfilled portion is refunded by the engine, never rested.
	if o.Remaining.IsPositive() {
		o.Status = domain.OrderCancelled
	} else {
		o.Status = domain.OrderFilled
	}
	return out, nil
}

func oppositeOf(s domain.Side) domain.Side {
	if s == domain.Lend {
		return domain.Borrow
	}
	return domain.Lend
}

// Restore reinserts a persisted order on startup without triggering matching.
func (b *OrderBook) Restore(o *domain.Order) {
	if o.ID >= b.nextID {
		b.nextID = o.ID + 1
	}
	b.orders[o.ID] = o
	if !o.Terminal() && o.Remaining.IsPositive() {
		b.side(o.Asset, o.Side).level(o.Rate).push(o)
	}
}
