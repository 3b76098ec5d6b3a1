package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/olyamironova/lending-engine/internal/adapter/cache"
	"github.com/olyamironova/lending-engine/internal/adapter/in_memory"
	"github.com/olyamironova/lending-engine/internal/adapter/pg"
	httpapi "github.com/olyamironova/lending-engine/internal/api/http"
	"github.com/olyamironova/lending-engine/internal/config"
	"github.com/olyamironova/lending-engine/internal/core"
	"github.com/olyamironova/lending-engine/internal/domain"
	"github.com/olyamironova/lending-engine/internal/port"
	"github.com/olyamironova/lending-engine/internal/ratemath"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	var repo port.Repository
	if cfg.Postgres.DSN != "" {
		pgRepo, err := pg.NewPgRepo(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Fatal("connect postgres", zap.Error(err))
		}
		defer pgRepo.Close(ctx)
		repo = pgRepo
	} else {
		logger.Warn("no postgres dsn configured, using in-memory repository")
		repo = in_memory.NewMemoryRepo()
	}

	var depthCache port.Cache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL.Std())
		defer func() { _ = redisCache.Close() }()
		depthCache = redisCache
	} else {
		depthCache = in_memory.NewMemoryCache()
	}

	// Custody and prices are external systems; the ledger and static feed
	// stand in until those integrations are configured.
	custody := in_memory.NewLedgerCustody()
	prices := in_memory.NewStaticPriceFeed()

	minOrderSize, err := cfg.Engine.MinOrderSizeDecimal()
	if err != nil {
		logger.Fatal("engine config", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	eng := core.NewEngine(core.EngineParams{
		MinOrderSize:        minOrderSize,
		ProtocolAccount:     cfg.Engine.ProtocolAccount,
		HealthCheckInterval: cfg.Engine.HealthCheckInterval.Std(),
		Custody:             custody,
		Prices:              prices,
		Repo:                repo,
		Cache:               depthCache,
		Events:              in_memory.NewLogSink(logger),
		Logger:              logger,
		Metrics:             core.NewMetrics(registry),
	})

	var assets []string
	for _, a := range cfg.Assets {
		assets = append(assets, a.Symbol)
		err := eng.SetAssetRiskParameters(a.Symbol, domain.RiskParameters{
			MaxLTV:               a.Risk.MaxLTVBps,
			LiquidationThreshold: a.Risk.LiquidationThresholdBps,
			LiquidationPenalty:   a.Risk.LiquidationPenaltyBps,
			MinCollateralRatio:   a.Risk.MinCollateralRatioBps,
			Enabled:              a.Risk.Enabled,
		})
		if err != nil {
			logger.Fatal("risk parameters", zap.String("asset", a.Symbol), zap.Error(err))
		}
		if a.Pool != nil {
			err := eng.CreatePool(core.PoolConfig{
				Asset:   a.Symbol,
				Account: a.Pool.Account,
				Curve: ratemath.CurveParams{
					BaseRate:           a.Pool.BaseRateBps,
					Slope1:             a.Pool.Slope1Bps,
					Slope2:             a.Pool.Slope2Bps,
					OptimalUtilization: a.Pool.OptimalUtilization,
				},
				OrderDuration:   a.Pool.OrderDuration.Std(),
				OrderMaxLTV:     a.Pool.OrderMaxLTVBps,
				CollateralToken: a.Pool.CollateralToken,
				OrderTTL:        a.Pool.OrderTTL.Std(),
			})
			if err != nil {
				logger.Fatal("create pool", zap.String("asset", a.Symbol), zap.Error(err))
			}
		}
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := eng.LoadState(loadCtx, assets); err != nil {
		cancel()
		logger.Fatal("restore state", zap.Error(err))
	}
	cancel()

	eng.StartRiskMonitor(ctx, cfg.Engine.MonitorInterval.Std())

	server := httpapi.NewHTTPServer(eng, registry, cfg.Server.RateLimit.Std())
	logger.Info("starting http server", zap.String("addr", cfg.Server.Addr))
	if err := server.Run(cfg.Server.Addr); err != nil {
		logger.Fatal("http server", zap.Error(err))
	}
}
