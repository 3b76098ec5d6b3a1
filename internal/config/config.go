package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Duration parses yaml scalars like "30s" or "5m" via time.ParseDuration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Engine   EngineConfig   `yaml:"engine"`
	Assets   []AssetConfig  `yaml:"assets"`
}

type ServerConfig struct {
	Addr      string   `yaml:"addr"`
	RateLimit Duration `yaml:"rate_limit"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"` // empty = in-memory repository
}

type RedisConfig struct {
	Addr     string   `yaml:"addr"` // empty = in-memory cache
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	TTL      Duration `yaml:"ttl"`
}

type EngineConfig struct {
	// MinOrderSize is a decimal string; yaml has no decimal scalar.
	MinOrderSize        string   `yaml:"min_order_size"`
	ProtocolAccount     string   `yaml:"protocol_account"`
	HealthCheckInterval Duration `yaml:"health_check_interval"`
	MonitorInterval     Duration `yaml:"monitor_interval"`
}

// MinOrderSizeDecimal parses the configured minimum order size.
func (c EngineConfig) MinOrderSizeDecimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.MinOrderSize)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: invalid min_order_size %q: %w", c.MinOrderSize, err)
	}
	return d, nil
}

type AssetConfig struct {
	Symbol string     `yaml:"symbol"`
	Risk   RiskConfig `yaml:"risk"`
	Pool   *PoolYAML  `yaml:"pool"` // nil = no pool for this asset
}

type RiskConfig struct {
	MaxLTVBps               int64 `yaml:"max_ltv_bps"`
	LiquidationThresholdBps int64 `yaml:"liquidation_threshold_bps"`
	LiquidationPenaltyBps   int64 `yaml:"liquidation_penalty_bps"`
	MinCollateralRatioBps   int64 `yaml:"min_collateral_ratio_bps"`
	Enabled                 bool  `yaml:"enabled"`
}

type PoolYAML struct {
	Account            string   `yaml:"account"`
	BaseRateBps        int64    `yaml:"base_rate_bps"`
	Slope1Bps          int64    `yaml:"slope1_bps"`
	Slope2Bps          int64    `yaml:"slope2_bps"`
	OptimalUtilization int64    `yaml:"optimal_utilization_bps"`
	OrderDuration      Duration `yaml:"order_duration"`
	OrderMaxLTVBps     int64    `yaml:"order_max_ltv_bps"`
	CollateralToken    string   `yaml:"collateral_token"`
	OrderTTL           Duration `yaml:"order_ttl"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: Duration(100 * time.Millisecond),
		},
		Redis: RedisConfig{
			TTL: Duration(5 * time.Minute),
		},
		Engine: EngineConfig{
			MinOrderSize:        "0.0001",
			ProtocolAccount:     "protocol",
			HealthCheckInterval: Duration(time.Minute),
			MonitorInterval:     Duration(30 * time.Second),
		},
	}
}

// Load reads a yaml config; an empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
