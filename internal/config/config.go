// Package config loads the orchestrator's configuration (spec.md §6.4)
// from a YAML file, environment variables and in-code defaults, using the
// the same viper layering convention as the reference internal/config.Load:
// defaults first, then config file, then CHAINARB_-prefixed environment
// overrides, then structural validation before the value is handed to the
// rest of the process.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the root configuration object, mirroring spec.md §6.4's
// recognized option groups.
type Config struct {
	App       AppConfig              `mapstructure:"app"`
	Scanner   ScannerConfig          `mapstructure:"scanner"`
	Gates     GatesConfig            `mapstructure:"gates"`
	Risk      RiskConfig             `mapstructure:"risk"`
	Queue     QueueConfig            `mapstructure:"queue"`
	Timeouts  TimeoutsConfig         `mapstructure:"timeouts"`
	Blacklist BlacklistConfig        `mapstructure:"blacklist"`
	Chains    map[string]ChainConfig `mapstructure:"chains"`
	API       APIConfig              `mapstructure:"api"`
	Notify    NotifyConfig           `mapstructure:"notify"`
	Vault     VaultConfig            `mapstructure:"vault"`
	Redis     RedisConfig            `mapstructure:"redis"`
}

// AppConfig contains process-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ScannerConfig configures the per-chain scan cadence (C1/C5).
type ScannerConfig struct {
	IntervalMs       map[string]int64 `mapstructure:"interval_ms"`
	HealthIntervalMs int64            `mapstructure:"health_interval_ms"`
	JitterFraction   float64          `mapstructure:"jitter_fraction"`
}

// PairConfig is a token pair as loaded from YAML/env.
type PairConfig struct {
	TokenA string `mapstructure:"token_a"`
	TokenB string `mapstructure:"token_b"`
}

// LoanProviderConfig is one flash-loan source as loaded from config.
type LoanProviderConfig struct {
	ID              string  `mapstructure:"id"`
	MaxLiquidityUSD float64 `mapstructure:"max_liquidity_usd"`
	FeeBps          int64   `mapstructure:"fee_bps"`
}

// ChainConfig holds one chain's scanner wiring: which pairs/cycles to
// watch, which venues it trades on, and its flash-loan catalog.
type ChainConfig struct {
	NativeToken         string               `mapstructure:"native_token"`
	Venues              []string             `mapstructure:"venues"`
	Pairs               []PairConfig         `mapstructure:"pairs"`
	TriangularCycles    [][]string           `mapstructure:"paths_triangular"`
	FlashLoanPairs      []PairConfig         `mapstructure:"flash_loan_pairs"`
	LoanProviders       []LoanProviderConfig `mapstructure:"loan_providers"`
	LoanCapFraction     float64              `mapstructure:"loan_cap_fraction"`
	FlashLoanCapUSD     float64              `mapstructure:"flash_loan_cap_usd"`
	EnableCrossExchange bool                 `mapstructure:"enable_cross_exchange"`
	EnableTriangular    bool                 `mapstructure:"enable_triangular"`
	EnableFlashLoan     bool                 `mapstructure:"enable_flash_loan"`
	WalletAddress       string               `mapstructure:"wallet_address"`
	BalanceTokens       []string             `mapstructure:"balance_tokens"`
}

// GatesConfig mirrors spec.md §4.3's validation gates.
type GatesConfig struct {
	MinProfitPct       float64       `mapstructure:"min_profit_pct"`
	MinProfitUSD       float64       `mapstructure:"min_profit_usd"`
	MinLiquidityUSD    float64       `mapstructure:"min_liquidity_usd"`
	MaxGasCostFraction float64       `mapstructure:"max_gas_cost_fraction"`
	MaxPriceImpact     float64       `mapstructure:"max_price_impact"`
	OpportunityTTL     time.Duration `mapstructure:"opportunity_ttl"`
}

// RiskConfig mirrors spec.md §3's PortfolioLimits.
type RiskConfig struct {
	MaxSingleTradeUSD   float64            `mapstructure:"max_single_trade_usd"`
	MaxDailyVolumeUSD   map[string]float64 `mapstructure:"max_daily_volume_usd"`
	MaxGasCostPct       float64            `mapstructure:"max_gas_cost_pct"`
	MaxConcurrentTrades int                `mapstructure:"max_concurrent_trades"`
	MinLiquidityRatio   float64            `mapstructure:"min_liquidity_ratio"`
}

// QueueConfig mirrors spec.md §4.5: per-kind capacity and round-robin weight.
type QueueConfig struct {
	Capacity map[string]int `mapstructure:"capacity"`
	Weights  map[string]int `mapstructure:"weights"`
}

// TimeoutsConfig mirrors every timeout named in spec.md §5.
type TimeoutsConfig struct {
	QuoteDeadline         time.Duration `mapstructure:"quote_deadline"`
	StepDeadline          time.Duration `mapstructure:"step_deadline"`
	ExecutionTimeout      time.Duration `mapstructure:"execution_timeout"`
	ShutdownGrace         time.Duration `mapstructure:"shutdown_grace"`
	OpportunityTTL        time.Duration `mapstructure:"opportunity_ttl"`
	ExecutionFreshnessTTL time.Duration `mapstructure:"execution_freshness_ttl"`
	PriceFreshnessTTL     time.Duration `mapstructure:"price_freshness_ttl"`
}

// BlacklistConfig mirrors spec.md §6.4's blacklist.tokens[]/venues[].
type BlacklistConfig struct {
	Tokens []string `mapstructure:"tokens"`
	Venues []string `mapstructure:"venues"`
}

// APIConfig configures the HTTP surface of spec.md §6.3.
type APIConfig struct {
	Port           int           `mapstructure:"port"`
	MetricsPort    int           `mapstructure:"metrics_port"`
	AuthToken      string        `mapstructure:"auth_token"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	BalanceTimeout time.Duration `mapstructure:"balance_timeout"`
}

// TelegramConfig configures the Telegram notification sink.
type TelegramConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	BotToken string  `mapstructure:"bot_token"`
	ChatIDs  []int64 `mapstructure:"chat_ids"`
}

// NATSNotifyConfig configures the fan-out broadcast sink (SPEC_FULL.md §9).
type NATSNotifyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
	Embed   bool   `mapstructure:"embed"` // run an in-process nats-server instead of dialing URL
}

// NotifyConfig configures the notification fan-out (C10/§9).
type NotifyConfig struct {
	Telegram TelegramConfig   `mapstructure:"telegram"`
	NATS     NATSNotifyConfig `mapstructure:"nats"`
	Timeout  time.Duration    `mapstructure:"timeout"`
}

// VaultConfig configures the optional HashiCorp Vault secret source.
type VaultConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	MountPath  string `mapstructure:"mount_path"`
	SecretPath string `mapstructure:"secret_path"`
}

// RedisConfig configures the optional cross-instance price-cache mirror
// and distributed execution lock (SPEC_FULL.md §10), used only when
// running more than one orchestrator instance against a shared view.
type RedisConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	MirrorPrefix   string        `mapstructure:"mirror_prefix"`
	MirrorTTL      time.Duration `mapstructure:"mirror_ttl"`
	DistLockPrefix string        `mapstructure:"dist_lock_prefix"`
}

// Load reads configuration from configPath (if non-empty) or ./configs
// and ./., layered under environment variables prefixed CHAINARB_ and
// in-code defaults, then validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("orchestrator")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CHAINARB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chainarb")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("scanner.health_interval_ms", 5_000)
	v.SetDefault("scanner.jitter_fraction", 0.2)

	v.SetDefault("gates.min_profit_usd", 10.0)
	v.SetDefault("gates.min_liquidity_usd", 10_000.0)
	v.SetDefault("gates.max_gas_cost_fraction", 0.3)
	v.SetDefault("gates.max_price_impact", 0.02)
	v.SetDefault("gates.opportunity_ttl", "60s")

	v.SetDefault("risk.max_single_trade_usd", 5_000.0)
	v.SetDefault("risk.max_gas_cost_pct", 0.3)
	v.SetDefault("risk.max_concurrent_trades", 3)
	v.SetDefault("risk.min_liquidity_ratio", 0.1)

	v.SetDefault("queue.capacity.cross_exchange", 256)
	v.SetDefault("queue.capacity.triangular", 128)
	v.SetDefault("queue.capacity.flash_loan", 64)
	v.SetDefault("queue.capacity.backrun", 64)
	v.SetDefault("queue.weights.cross_exchange", 2)
	v.SetDefault("queue.weights.triangular", 2)
	v.SetDefault("queue.weights.flash_loan", 3)
	v.SetDefault("queue.weights.backrun", 1)

	v.SetDefault("timeouts.quote_deadline", "2s")
	v.SetDefault("timeouts.step_deadline", "30s")
	v.SetDefault("timeouts.execution_timeout", "5m")
	v.SetDefault("timeouts.shutdown_grace", "30s")
	v.SetDefault("timeouts.opportunity_ttl", "60s")
	v.SetDefault("timeouts.execution_freshness_ttl", "10s")
	v.SetDefault("timeouts.price_freshness_ttl", "120s")

	v.SetDefault("api.port", 8090)
	v.SetDefault("api.metrics_port", 9090)
	v.SetDefault("api.balance_timeout", "5s")
	v.SetDefault("notify.timeout", "5s")
	v.SetDefault("notify.nats.subject", "chainarb.execution.result")

	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_path", "chainarb")

	v.SetDefault("redis.mirror_prefix", "chainarb:quote")
	v.SetDefault("redis.mirror_ttl", "30s")
	v.SetDefault("redis.dist_lock_prefix", "chainarb:lock")
}

// Validate enforces spec.md §6.4's one required key and the structural
// constraints the rest of the pipeline assumes hold.
func (c *Config) Validate() error {
	if c.Gates.MinProfitPct <= 0 {
		return fmt.Errorf("config: gates.min_profit_pct is required and must be > 0")
	}
	if c.Risk.MaxConcurrentTrades <= 0 {
		return fmt.Errorf("config: risk.max_concurrent_trades must be > 0")
	}
	for name, cc := range c.Chains {
		if len(cc.Venues) == 0 {
			return fmt.Errorf("config: chain %q declares no venues", name)
		}
	}
	if c.API.AuthToken == "" && c.App.Environment == "production" {
		return fmt.Errorf("config: api.auth_token is required in production")
	}
	return nil
}

// MinProfitPctDecimal returns Gates.MinProfitPct as a fixed-point decimal
// for the scanner, which does all price arithmetic in decimal.Decimal per
// spec.md §4.2.
func (g GatesConfig) MinProfitPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(g.MinProfitPct)
}
