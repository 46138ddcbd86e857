package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full backtester configuration.
type Config struct {
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Book      BookConfig      `yaml:"book"`
	Slippage  SlippageConfig  `yaml:"slippage"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	API       APIConfig       `yaml:"api"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
}

// PortfolioConfig controls capital and bookkeeping cadence.
type PortfolioConfig struct {
	InitialCapital          float64 `yaml:"initial_capital"`
	FeeRate                 float64 `yaml:"fee_rate"` // taker fee as a fraction, 0 disables fees
	SnapshotIntervalMinutes int     `yaml:"snapshot_interval_minutes"`
}

// BookConfig shapes the synthetic order books.
type BookConfig struct {
	DepthLevels        int     `yaml:"depth_levels"`
	BaseSpreadPct      float64 `yaml:"base_spread_pct"`
	SizeDecay          float64 `yaml:"size_decay"`
	MinLevelSize       float64 `yaml:"min_level_size"`
	VolumeSpreadImpact float64 `yaml:"volume_spread_impact"` // 24h volume at which the spread is nominal
	Seed               int64   `yaml:"seed"`
}

// SlippageConfig selects and tunes the execution cost model.
type SlippageConfig struct {
	Model        string  `yaml:"model"` // fixed | proportional | orderbook
	FixedRate    float64 `yaml:"fixed_rate"`
	BaseRate     float64 `yaml:"base_rate"`
	ImpactFactor float64 `yaml:"impact_factor"`
	ImpactLambda float64 `yaml:"impact_lambda"`
}

// StrategyConfig tunes the built-in threshold strategy.
type StrategyConfig struct {
	BuyBelow     float64 `yaml:"buy_below"`
	SellAbove    float64 `yaml:"sell_above"`
	OrderSize    float64 `yaml:"order_size"`
	MaxPositions int     `yaml:"max_positions"`
}

// APIConfig holds the market data base URLs.
type APIConfig struct {
	CLOBBase string `yaml:"clob_base"`
}

// OptimizerConfig points at the parameter optimization service.
type OptimizerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// StorageConfig controls where run results persist.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config file plus an optional .env file. Env
// values override the YAML for the keys they cover.
func Load(path string) (*Config, error) {
	// Load .env when present; its absence is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// SnapshotInterval returns the equity snapshot cadence as a Duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Portfolio.SnapshotIntervalMinutes) * time.Minute
}

// applyEnvOverrides replaces values with environment variables when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("OPTIMIZER_BASE_URL"); v != "" {
		cfg.Optimizer.BaseURL = v
	}
}

// setDefaults fills in sane values for anything left unset.
func setDefaults(cfg *Config) {
	if cfg.Portfolio.InitialCapital <= 0 {
		cfg.Portfolio.InitialCapital = 1000
	}
	if cfg.Portfolio.SnapshotIntervalMinutes <= 0 {
		cfg.Portfolio.SnapshotIntervalMinutes = 15
	}
	if cfg.Book.DepthLevels <= 0 {
		cfg.Book.DepthLevels = 5
	}
	if cfg.Book.BaseSpreadPct <= 0 {
		cfg.Book.BaseSpreadPct = 2
	}
	if cfg.Book.SizeDecay <= 0 {
		cfg.Book.SizeDecay = 0.8
	}
	if cfg.Book.MinLevelSize <= 0 {
		cfg.Book.MinLevelSize = 10
	}
	if cfg.Book.VolumeSpreadImpact <= 0 {
		cfg.Book.VolumeSpreadImpact = 10000
	}
	if cfg.Slippage.Model == "" {
		cfg.Slippage.Model = "orderbook"
	}
	if cfg.Slippage.FixedRate <= 0 {
		cfg.Slippage.FixedRate = 0.005
	}
	if cfg.Slippage.BaseRate <= 0 {
		cfg.Slippage.BaseRate = 0.002
	}
	if cfg.Slippage.ImpactFactor <= 0 {
		cfg.Slippage.ImpactFactor = 1.0
	}
	if cfg.Slippage.ImpactLambda <= 0 {
		cfg.Slippage.ImpactLambda = 0.1
	}
	if cfg.Strategy.BuyBelow <= 0 {
		cfg.Strategy.BuyBelow = 0.35
	}
	if cfg.Strategy.SellAbove <= 0 {
		cfg.Strategy.SellAbove = 0.65
	}
	if cfg.Strategy.OrderSize <= 0 {
		cfg.Strategy.OrderSize = 10
	}
	if cfg.Strategy.MaxPositions <= 0 {
		cfg.Strategy.MaxPositions = 5
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.Optimizer.BaseURL == "" {
		cfg.Optimizer.BaseURL = "http://localhost:8001"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "predictlab.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
