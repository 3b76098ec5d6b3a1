package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olyamironova/lending-engine/internal/api/dto"
	"github.com/olyamironova/lending-engine/internal/core"
	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/middleware"
)

type HTTPServer struct {
	Eng       *core.Engine
	Registry  *prometheus.Registry
	RateLimit time.Duration
}

func NewHTTPServer(eng *core.Engine, registry *prometheus.Registry, rateLimit time.Duration) *HTTPServer {
	return &HTTPServer{Eng: eng, Registry: registry, RateLimit: rateLimit}
}

func (s *HTTPServer) Router() *gin.Engine {
	r := gin.Default()

	if s.RateLimit > 0 {
		rl := middleware.NewRateLimiter(s.RateLimit)
		r.Use(rl.Middleware())
	}

	r.POST("/orders/lend", s.placeLendOrder)
	r.POST("/orders/borrow", s.placeBorrowOrder)
	r.POST("/orders/market", s.marketOrder)
	r.POST("/orders/cancel", s.cancelOrder)
	r.GET("/orders/:id", s.getOrder)
	r.GET("/orderbook/depth", s.getDepth)
	r.GET("/orderbook/rates", s.getBestRates)
	r.GET("/loans/:id", s.getLoan)
	r.GET("/loans/:id/health", s.getHealthFactor)
	r.POST("/loans/:id/repay", s.repay)
	r.POST("/loans/:id/liquidate", s.liquidate)
	r.GET("/pools/:asset", s.getPool)
	r.POST("/pools/:asset/deposit", s.poolDeposit)
	r.POST("/pools/:asset/withdraw", s.poolWithdraw)
	r.PUT("/risk/:asset", s.setRiskParameters)

	if s.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})))
	}
	return r
}

func (s *HTTPServer) Run(addr string) error {
	return s.Router().Run(addr)
}

// statusFor maps core sentinels onto HTTP statuses; anything unrecognized is
// a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrOrderNotFound),
		errors.Is(err, core.ErrLoanNotFound),
		errors.Is(err, core.ErrPoolNotFound),
		errors.Is(err, core.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, core.ErrNotOrderOwner):
		return http.StatusForbidden
	case errors.Is(err, core.ErrOrderTerminal),
		errors.Is(err, core.ErrLoanTerminal),
		errors.Is(err, core.ErrLoanHealthy),
		errors.Is(err, core.ErrAssetDisabled),
		errors.Is(err, core.ErrNoShares),
		errors.Is(err, core.ErrInsufficientLiquidity),
		errors.Is(err, core.ErrInsufficientCollateral),
		errors.Is(err, core.ErrNoLiquidity):
		return http.StatusConflict
	case errors.Is(err, core.ErrAmountTooSmall),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidRate),
		errors.Is(err, core.ErrInvalidLTV),
		errors.Is(err, core.ErrInvalidDuration),
		errors.Is(err, core.ErrInvalidSlippage),
		errors.Is(err, core.ErrExpiryInPast):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrPriceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (s *HTTPServer) placeLendOrder(c *gin.Context) {
	var req dto.PlaceLendOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.Eng.PlaceLendOrder(c.Request.Context(),
		req.Owner, req.Asset, req.Amount, req.RateBps,
		time.Duration(req.DurationSeconds)*time.Second,
		req.MaxLTVBps, req.CollateralToken, req.ExpiresAt)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PlaceOrderResponse{
		Order:   convertOrder(res.Order),
		Matches: convertMatches(res.Matches),
	})
}

func (s *HTTPServer) placeBorrowOrder(c *gin.Context) {
	var req dto.PlaceBorrowOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.Eng.PlaceBorrowOrder(c.Request.Context(),
		req.Owner, req.Asset, req.Amount, req.RateBps,
		time.Duration(req.DurationSeconds)*time.Second,
		req.CollateralToken, req.CollateralAmount, req.ExpiresAt)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PlaceOrderResponse{
		Order:   convertOrder(res.Order),
		Matches: convertMatches(res.Matches),
	})
}

func (s *HTTPServer) marketOrder(c *gin.Context) {
	var req dto.MarketOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch req.Side {
	case dto.Lend, dto.Borrow:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid side: " + string(req.Side)})
		return
	}
	res, err := s.Eng.ExecuteMarketOrder(c.Request.Context(), core.MarketParams{
		Owner:            req.Owner,
		Asset:            req.Asset,
		Side:             domain.Side(req.Side),
		Amount:           req.Amount,
		MaxSlippageBps:   req.MaxSlippageBps,
		Duration:         time.Duration(req.DurationSeconds) * time.Second,
		MaxLTV:           req.MaxLTVBps,
		CollateralToken:  req.CollateralToken,
		CollateralAmount: req.CollateralAmount,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MarketOrderResponse{
		Filled:     res.Executed,
		AvgRateBps: res.AvgRate,
		Matches:    convertMatches(res.Matches),
	})
}

func (s *HTTPServer) cancelOrder(c *gin.Context) {
	var req dto.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	o, err := s.Eng.CancelOrder(c.Request.Context(), req.OrderID, req.Owner)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CancelOrderResponse{OrderID: o.ID, Cancelled: true})
}

func (s *HTTPServer) getOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	o, err := s.Eng.GetOrder(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": convertOrder(o)})
}

func (s *HTTPServer) getDepth(c *gin.Context) {
	asset := c.Query("asset")
	side := domain.Side(c.Query("side"))
	if asset == "" || (side != domain.Lend && side != domain.Borrow) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset and side=LEND|BORROW required"})
		return
	}
	snap, err := s.Eng.GetDepth(c.Request.Context(), asset, side)
	if err != nil {
		fail(c, err)
		return
	}
	levels := make([]dto.DepthLevel, len(snap.Levels))
	for i, lv := range snap.Levels {
		levels[i] = dto.DepthLevel{RateBps: lv.Rate, Amount: lv.Amount}
	}
	c.JSON(http.StatusOK, dto.DepthResponse{
		Asset:     snap.Asset,
		Side:      dto.Side(snap.Side),
		Levels:    levels,
		Timestamp: snap.Timestamp,
	})
}

func (s *HTTPServer) getBestRates(c *gin.Context) {
	asset := c.Query("asset")
	if asset == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset required"})
		return
	}
	res := dto.BestRatesResponse{Asset: asset}
	if rate, err := s.Eng.BestLendingRate(c.Request.Context(), asset); err == nil {
		res.BestLendRateBps = &rate
	}
	if rate, err := s.Eng.BestBorrowingRate(c.Request.Context(), asset); err == nil {
		res.BestBorrowBps = &rate
	}
	c.JSON(http.StatusOK, res)
}

func (s *HTTPServer) getLoan(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan id"})
		return
	}
	l, err := s.Eng.GetLoan(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loan": convertLoan(l)})
}

func (s *HTTPServer) getHealthFactor(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan id"})
		return
	}
	hf, err := s.Eng.CalculateHealthFactor(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.HealthFactorResponse{LoanID: id, HealthFactor: hf})
}

func (s *HTTPServer) repay(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan id"})
		return
	}
	var req dto.RepayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := s.Eng.Repay(c.Request.Context(), id, req.Payer, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RepayResponse{
		LoanID:        id,
		Applied:       res.Applied,
		InterestPaid:  res.InterestPaid,
		PrincipalPaid: res.PrincipalPaid,
		RemainingDebt: res.RemainingDebt,
		Closed:        res.Closed,
	})
}

func (s *HTTPServer) liquidate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan id"})
		return
	}
	var req dto.LiquidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	liq, err := s.Eng.LiquidateLoan(c.Request.Context(), id, req.Liquidator, req.DebtToCover)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.LiquidateResponse{
		ID:               liq.ID,
		LoanID:           liq.LoanID,
		DebtCovered:      liq.DebtCovered,
		CollateralSeized: liq.CollateralSeized,
		Reward:           liq.Reward,
	})
}

func (s *HTTPServer) getPool(c *gin.Context) {
	stats, err := s.Eng.GetPoolStats(c.Param("asset"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PoolStats{
		Asset:          stats.Asset,
		TotalAssets:    stats.TotalAssets,
		Borrowed:       stats.Borrowed,
		Available:      stats.Available,
		UtilizationBps: stats.Utilization,
		CurrentRateBps: stats.CurrentRate,
	})
}

func (s *HTTPServer) poolDeposit(c *gin.Context) {
	asset := c.Param("asset")
	var req dto.PoolDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	shares, err := s.Eng.PoolDeposit(c.Request.Context(), asset, req.Account, req.Amount)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PoolDepositResponse{Asset: asset, Shares: shares})
}

func (s *HTTPServer) poolWithdraw(c *gin.Context) {
	asset := c.Param("asset")
	var req dto.PoolWithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := s.Eng.PoolWithdraw(c.Request.Context(), asset, req.Account, req.Shares)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PoolWithdrawResponse{Asset: asset, Amount: amount})
}

func (s *HTTPServer) setRiskParameters(c *gin.Context) {
	asset := c.Param("asset")
	var req dto.RiskParametersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := s.Eng.SetAssetRiskParameters(asset, domain.RiskParameters{
		MaxLTV:               req.MaxLTVBps,
		LiquidationThreshold: req.LiquidationThresholdBps,
		LiquidationPenalty:   req.LiquidationPenaltyBps,
		MinCollateralRatio:   req.MinCollateralRatioBps,
		Enabled:              req.Enabled,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "updated": true})
}

func convertOrder(o *domain.Order) dto.Order {
	out := dto.Order{
		ID:              o.ID,
		Owner:           o.Owner,
		Asset:           o.Asset,
		Side:            dto.Side(o.Side),
		Status:          string(o.Status),
		Principal:       o.Principal,
		Remaining:       o.Remaining,
		RateBps:         o.Rate,
		DurationSeconds: int64(o.Duration / time.Second),
		CreatedAt:       o.CreatedAt,
		ExpiresAt:       o.ExpiresAt,
	}
	if o.Lend != nil {
		out.MaxLTVBps = o.Lend.MaxLTV
		out.CollateralToken = o.Lend.CollateralToken
	}
	if o.Borrow != nil {
		out.CollateralToken = o.Borrow.CollateralToken
		out.CollateralAmount = o.Borrow.CollateralAmount
	}
	return out
}

func convertMatches(matches []*domain.Match) []dto.Match {
	res := make([]dto.Match, len(matches))
	for i, m := range matches {
		res[i] = dto.Match{
			ID:            m.ID,
			LendOrderID:   m.LendOrderID,
			BorrowOrderID: m.BorrowOrderID,
			Asset:         m.Asset,
			Amount:        m.Amount,
			RateBps:       m.Rate,
			LoanID:        m.LoanID,
			Timestamp:     m.Timestamp,
		}
	}
	return res
}

func convertLoan(l *domain.Loan) dto.Loan {
	return dto.Loan{
		ID:                 l.ID,
		Borrower:           l.Borrower,
		Lender:             l.Lender,
		Asset:              l.Asset,
		Principal:          l.Principal,
		RemainingPrincipal: l.RemainingPrincipal,
		RateBps:            l.Rate,
		StartTime:          l.StartTime,
		DurationSeconds:    int64(l.Duration / time.Second),
		CollateralToken:    l.CollateralToken,
		CollateralAmount:   l.CollateralAmount,
		AccruedInterest:    l.AccruedInterest,
		TotalDebt:          l.TotalDebt(),
		Status:             string(l.Status),
	}
}
