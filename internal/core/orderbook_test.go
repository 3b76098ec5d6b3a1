package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olyamironova/lending-engine/internal/domain"
)

var testStart = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testClock is a settable clock for deterministic expiry behavior.
type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBook() (*OrderBook, *testClock) {
	clock := &testClock{t: testStart}
	return NewOrderBook(dec("0.01"), clock.Now), clock
}

func placeLend(t *testing.T, b *OrderBook, owner, amount string, rate int64) *PlaceResult {
	t.Helper()
	res, err := b.PlaceLendOrder(owner, "USDC", dec(amount), rate, 30*24*time.Hour, 8000, "ETH", testStart.Add(24*time.Hour))
	require.NoError(t, err)
	return res
}

func placeBorrow(t *testing.T, b *OrderBook, owner, amount string, rate int64, collateral string) *PlaceResult {
	t.Helper()
	res, err := b.PlaceBorrowOrder(owner, "USDC", dec(amount), rate, 30*24*time.Hour, "ETH", dec(collateral), testStart.Add(24*time.Hour))
	require.NoError(t, err)
	return res
}

func TestPlaceOrderValidation(t *testing.T) {
	b, _ := newTestBook()
	expiry := testStart.Add(time.Hour)

	_, err := b.PlaceLendOrder("alice", "USDC", dec("0.001"), 500, time.Hour, 8000, "ETH", expiry)
	assert.ErrorIs(t, err, ErrAmountTooSmall)

	_, err = b.PlaceLendOrder("alice", "USDC", dec("100"), 0, time.Hour, 8000, "ETH", expiry)
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = b.PlaceLendOrder("alice", "USDC", dec("100"), 10001, time.Hour, 8000, "ETH", expiry)
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = b.PlaceLendOrder("alice", "USDC", dec("100"), 500, 0, 8000, "ETH", expiry)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = b.PlaceLendOrder("alice", "USDC", dec("100"), 500, time.Hour, 8000, "ETH", testStart.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrExpiryInPast)

	_, err = b.PlaceLendOrder("alice", "USDC", dec("100"), 500, time.Hour, 0, "ETH", expiry)
	assert.ErrorIs(t, err, ErrInvalidLTV)

	_, err = b.PlaceBorrowOrder("bob", "USDC", dec("100"), 500, time.Hour, "ETH", decimal.Zero, expiry)
	assert.ErrorIs(t, err, ErrInsufficientCollateral)
}

func TestOrderIDsAreMonotonic(t *testing.T) {
	b, _ := newTestBook()
	first := placeLend(t, b, "alice", "100", 500)
	second := placeLend(t, b, "alice", "100", 600)
	assert.Equal(t, first.Order.ID+1, second.Order.ID)
}

func TestNoMatchRestsPending(t *testing.T) {
	b, _ := newTestBook()
	res := placeLend(t, b, "alice", "100", 700)
	assert.Empty(t, res.Matches)
	assert.Equal(t, domain.OrderPending, res.Order.Status)
	assert.True(t, res.Order.Remaining.Equal(dec("100")))
}

// A lend taker must consume the highest-rate borrow level first.
func TestLendTakerDescendingPriority(t *testing.T) {
	b, _ := newTestBook()
	placeBorrow(t, b, "low", "100", 600, "1")
	placeBorrow(t, b, "high", "100", 700, "1")

	res := placeLend(t, b, "lender", "100", 500)
	require.Len(t, res.Matches, 1)
	high, _ := b.Order(res.Matches[0].BorrowOrderID)
	assert.Equal(t, "high", high.Owner)
	assert.Equal(t, domain.OrderFilled, high.Status)

	// The 600 level is untouched.
	low, _ := b.Order(1)
	assert.True(t, low.Remaining.Equal(dec("100")))
}

// A borrow taker must consume the cheapest lend level first.
func TestBorrowTakerAscendingPriority(t *testing.T) {
	b, _ := newTestBook()
	placeLend(t, b, "pricey", "100", 800)
	placeLend(t, b, "cheap", "100", 400)

	res := placeBorrow(t, b, "borrower", "100", 900, "1")
	require.Len(t, res.Matches, 1)
	cheap, _ := b.Order(res.Matches[0].LendOrderID)
	assert.Equal(t, "cheap", cheap.Owner)
}

func TestFIFOWithinRateLevel(t *testing.T) {
	b, _ := newTestBook()
	placeBorrow(t, b, "first", "50", 700, "1")
	placeBorrow(t, b, "second", "50", 700, "1")

	res := placeLend(t, b, "lender", "60", 500)
	require.Len(t, res.Matches, 2)

	m0, _ := b.Order(res.Matches[0].BorrowOrderID)
	assert.Equal(t, "first", m0.Owner)
	assert.True(t, res.Matches[0].Amount.Equal(dec("50")))

	m1, _ := b.Order(res.Matches[1].BorrowOrderID)
	assert.Equal(t, "second", m1.Owner)
	assert.True(t, res.Matches[1].Amount.Equal(dec("10")))
	assert.Equal(t, domain.OrderPartiallyFilled, m1.Status)
}

// Rates cross when borrow rate >= lend rate; the loan runs at the lender's
// posted rate.
func TestMatchUsesLenderRate(t *testing.T) {
	b, _ := newTestBook()
	placeBorrow(t, b, "borrower", "100", 800, "1")
	res := placeLend(t, b, "lender", "100", 600)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, int64(600), res.Matches[0].Rate)
}

func TestNoMatchWhenRatesDoNotCross(t *testing.T) {
	b, _ := newTestBook()
	placeBorrow(t, b, "borrower", "100", 500, "1")
	res := placeLend(t, b, "lender", "100", 700)
	assert.Empty(t, res.Matches)
	assert.Equal(t, domain.OrderPending, res.Order.Status)
}

func TestPartialFillRemainderRests(t *testing.T) {
	b, _ := newTestBook()
	placeBorrow(t, b, "borrower", "40", 800, "1")
	res := placeLend(t, b, "lender", "100", 800)
	require.Len(t, res.Matches, 1)
	assert.True(t, res.Order.Remaining.Equal(dec("60")))
	assert.Equal(t, domain.OrderPartiallyFilled, res.Order.Status)

	// The rested remainder matches a later borrow taker.
	res2 := placeBorrow(t, b, "late", "60", 800, "1")
	require.Len(t, res2.Matches, 1)
	lender, _ := b.Order(res.Order.ID)
	assert.Equal(t, domain.OrderFilled, lender.Status)
}

func TestRemainingNeverExceedsPrincipal(t *testing.T) {
	b, _ := newTestBook()
	placeBorrow(t, b, "borrower", "100", 800, "1")
	res := placeLend(t, b, "lender", "30", 500)
	for _, id := range []uint64{res.Order.ID, res.Matches[0].BorrowOrderID} {
		o, _ := b.Order(id)
		assert.True(t, o.Remaining.LessThanOrEqual(o.Principal))
		assert.False(t, o.Remaining.IsNegative())
	}
}

func TestCancelOrder(t *testing.T) {
	b, _ := newTestBook()
	res := placeLend(t, b, "alice", "100", 500)

	_, err := b.CancelOrder(res.Order.ID, "mallory")
	assert.ErrorIs(t, err, ErrNotOrderOwner)

	_, err = b.CancelOrder(9999, "alice")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	o, err := b.CancelOrder(res.Order.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, o.Status)

	// Cancelling twice is an error, not a no-op.
	_, err = b.CancelOrder(res.Order.ID, "alice")
	assert.ErrorIs(t, err, ErrOrderTerminal)

	// The cancelled order no longer matches.
	res2 := placeBorrow(t, b, "bob", "100", 800, "1")
	assert.Empty(t, res2.Matches)
}

func TestLazyExpiryDuringMatching(t *testing.T) {
	b, clock := newTestBook()
	res, err := b.PlaceBorrowOrder("early", "USDC", dec("100"), 700, time.Hour, "ETH", dec("1"), testStart.Add(time.Minute))
	require.NoError(t, err)
	expiredID := res.Order.ID

	clock.Advance(2 * time.Minute)

	res2, err := b.PlaceLendOrder("lender", "USDC", dec("100"), 500, time.Hour, 8000, "ETH", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.Empty(t, res2.Matches)
	require.Len(t, res2.Expired, 1)
	assert.Equal(t, expiredID, res2.Expired[0].ID)
	assert.Equal(t, domain.OrderExpired, res2.Expired[0].Status)
}

func TestBestRates(t *testing.T) {
	b, _ := newTestBook()

	_, _, err := b.BestLendingRate("USDC")
	assert.ErrorIs(t, err, ErrNoLiquidity)

	placeLend(t, b, "a", "100", 700)
	placeLend(t, b, "b", "100", 400)
	placeBorrow(t, b, "c", "100", 300, "1") // does not cross 400
	placeBorrow(t, b, "d", "100", 200, "1")

	lend, _, err := b.BestLendingRate("USDC")
	require.NoError(t, err)
	assert.Equal(t, int64(400), lend)

	borrow, _, err := b.BestBorrowingRate("USDC")
	require.NoError(t, err)
	assert.Equal(t, int64(300), borrow)
}

// A level holding only expired orders is drained by the first best-rate scan
// so later scans skip straight to the live levels.
func TestBestRateEvictsExpiredOrders(t *testing.T) {
	b, clock := newTestBook()
	for i := 0; i < 3; i++ {
		_, err := b.PlaceLendOrder("maker", "USDC", dec("100"), 400, time.Hour, 8000, "ETH", testStart.Add(time.Minute))
		require.NoError(t, err)
	}
	placeLend(t, b, "live", "100", 600)

	clock.Advance(2 * time.Minute)

	rate, expired, err := b.BestLendingRate("USDC")
	require.NoError(t, err)
	assert.Equal(t, int64(600), rate)
	require.Len(t, expired, 3)
	for _, o := range expired {
		assert.Equal(t, domain.OrderExpired, o.Status)
	}

	// The drained level is gone: nothing left to evict on the next scan.
	rate, expired, err = b.BestLendingRate("USDC")
	require.NoError(t, err)
	assert.Equal(t, int64(600), rate)
	assert.Empty(t, expired)
}

func TestDepthAggregation(t *testing.T) {
	b, _ := newTestBook()
	placeLend(t, b, "a", "100", 500)
	placeLend(t, b, "b", "40", 500)
	placeLend(t, b, "c", "10", 700)

	snap := b.Depth("USDC", domain.Lend)
	require.Len(t, snap.Levels, 2)
	// Best (lowest) lend rate first.
	assert.Equal(t, int64(500), snap.Levels[0].Rate)
	assert.True(t, snap.Levels[0].Amount.Equal(dec("140")))
	assert.Equal(t, int64(700), snap.Levels[1].Rate)
}

func TestMarketOrderSlippageBound(t *testing.T) {
	b, _ := newTestBook()
	placeLend(t, b, "cheap", "50", 400)
	placeLend(t, b, "mid", "50", 450)
	placeLend(t, b, "far", "50", 900)

	// Borrow market order: bound = best(400) + 100 = 500; the 900 level is
	// out of reach and the remainder stays unfilled.
	res, err := b.ExecuteMarketOrder(MarketParams{
		Owner:            "taker",
		Asset:            "USDC",
		Side:             domain.Borrow,
		Amount:           dec("120"),
		MaxSlippageBps:   100,
		Duration:         time.Hour,
		CollateralToken:  "ETH",
		CollateralAmount: dec("1"),
	})
	require.NoError(t, err)

	assert.True(t, res.Executed.Equal(dec("100")), "got %s", res.Executed)
	require.Len(t, res.Matches, 2)
	// Fills happen at the makers' posted rates.
	assert.Equal(t, int64(400), res.Matches[0].Rate)
	assert.Equal(t, int64(450), res.Matches[1].Rate)
	// Volume-weighted average: (50*400 + 50*450) / 100 = 425.
	assert.True(t, res.AvgRate.Equal(dec("425")), "got %s", res.AvgRate)

	// Market orders never rest.
	assert.Equal(t, domain.OrderCancelled, res.Order.Status)
	far, _ := b.Order(3)
	assert.True(t, far.Remaining.Equal(dec("50")))
}

func TestMarketOrderEmptyBook(t *testing.T) {
	b, _ := newTestBook()
	_, err := b.ExecuteMarketOrder(MarketParams{
		Owner:          "taker",
		Asset:          "USDC",
		Side:           domain.Lend,
		Amount:         dec("100"),
		MaxSlippageBps: 100,
		Duration:       time.Hour,
		MaxLTV:         8000,
	})
	assert.ErrorIs(t, err, ErrNoLiquidity)
}

func TestMarketOrderFullFill(t *testing.T) {
	b, _ := newTestBook()
	placeBorrow(t, b, "borrower", "100", 700, "1")

	res, err := b.ExecuteMarketOrder(MarketParams{
		Owner:           "lender",
		Asset:           "USDC",
		Side:            domain.Lend,
		Amount:          dec("100"),
		MaxSlippageBps:  50,
		Duration:        time.Hour,
		MaxLTV:          8000,
		CollateralToken: "ETH",
	})
	require.NoError(t, err)
	assert.True(t, res.Executed.Equal(dec("100")))
	assert.Equal(t, domain.OrderFilled, res.Order.Status)
	// Lend taker fills at the borrower's posted rate.
	assert.Equal(t, int64(700), res.Matches[0].Rate)
}

func TestRestoreRebuildsBook(t *testing.T) {
	b, _ := newTestBook()
	res := placeLend(t, b, "alice", "100", 500)
	orig := res.Order

	b2, _ := newTestBook()
	b2.Restore(orig)

	// Ids continue after the restored maximum.
	res2 := placeBorrow(t, b2, "bob", "100", 700, "1")
	assert.Greater(t, res2.Order.ID, orig.ID)
	require.Len(t, res2.Matches, 1)
	assert.Equal(t, orig.ID, res2.Matches[0].LendOrderID)
}
