package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full startup configuration for the trading agent.
type Config struct {
	Decision DecisionConfig `yaml:"decision"`
	Broker   BrokerConfig   `yaml:"broker"`
	Signal   SignalConfig   `yaml:"signal"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// DecisionConfig holds the tick cadence and every tunable named in
// spec.md §6. Most field names are the CamelCase form of the BOT_*
// environment variable that overrides them, without the BOT_ prefix;
// DefaultProfile is set by BOT_PROFILE and AccountPollSeconds has no
// environment override.
type DecisionConfig struct {
	DefaultProfile string `yaml:"default_profile"`

	DecisionSeconds          int     `yaml:"decision_seconds"`
	SignalStaleSeconds       int     `yaml:"signal_stale_seconds"`
	MissingSymbolGraceSeconds int    `yaml:"missing_symbol_grace_seconds"`
	SafeReduceStepSeconds    int     `yaml:"safe_reduce_step_seconds"`
	SafeReducePerStep        int     `yaml:"safe_reduce_per_step"`
	SafeStaleEscalateSeconds int     `yaml:"safe_stale_escalate_seconds"`
	CooldownSeconds          int     `yaml:"cooldown_seconds"`
	AccountPollSeconds       int     `yaml:"account_poll_seconds"`

	CashBuffer          float64 `yaml:"cash_buffer"`
	MinWeightPerPos     float64 `yaml:"min_weight_per_pos"`
	ScorePointValueBps  float64 `yaml:"score_point_value_bps"`
	CommissionPerTrade  float64 `yaml:"commission_per_trade"`
	SlippageBps         float64 `yaml:"slippage_bps"`
	SwitchCostMultiplier float64 `yaml:"switch_cost_multiplier"`
}

// BrokerConfig is the Alpaca-style credential/endpoint set.
type BrokerConfig struct {
	APIKey         string `yaml:"api_key"`
	APISecret      string `yaml:"api_secret"`
	TradingBaseURL string `yaml:"trading_base_url"`
	DataBaseURL    string `yaml:"data_base_url"`
}

// SignalConfig points at the upstream analytics service's snapshot and
// push endpoints.
type SignalConfig struct {
	SnapshotBaseURL string `yaml:"snapshot_base_url"`
	PushURL         string `yaml:"push_url"`
	PushToken       string `yaml:"push_token"`
	PollSeconds     int    `yaml:"poll_seconds"`
}

// StorageConfig controls where persisted files land.
type StorageConfig struct {
	StateDir string `yaml:"state_dir"`
	TradeDB  string `yaml:"trade_db"`
}

// LogConfig controls logging format and verbosity.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads YAML from path, layers .env and BOT_*/LOG_* environment
// overrides on top, and fills any unset field with its spec.md §6
// default.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// DecisionInterval returns the tick cadence as a time.Duration.
func (c *Config) DecisionInterval() time.Duration {
	return time.Duration(c.Decision.DecisionSeconds) * time.Second
}

func applyEnvOverrides(cfg *Config) {
	strEnv := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	intEnv := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			var n int
			if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
				*dst = n
			}
		}
	}
	floatEnv := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			var f float64
			if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
				*dst = f
			}
		}
	}

	intEnv("BOT_DECISION_SECONDS", &cfg.Decision.DecisionSeconds)
	intEnv("BOT_SIGNAL_STALE_SECONDS", &cfg.Decision.SignalStaleSeconds)
	intEnv("BOT_MISSING_SYMBOL_GRACE_SECONDS", &cfg.Decision.MissingSymbolGraceSeconds)
	intEnv("BOT_SAFE_REDUCE_STEP_SECONDS", &cfg.Decision.SafeReduceStepSeconds)
	intEnv("BOT_SAFE_REDUCE_PER_STEP", &cfg.Decision.SafeReducePerStep)
	intEnv("BOT_SAFE_STALE_ESCALATE_SECONDS", &cfg.Decision.SafeStaleEscalateSeconds)
	intEnv("BOT_COOLDOWN_SECONDS", &cfg.Decision.CooldownSeconds)
	floatEnv("BOT_CASH_BUFFER", &cfg.Decision.CashBuffer)
	floatEnv("BOT_MIN_WEIGHT_PER_POS", &cfg.Decision.MinWeightPerPos)
	floatEnv("BOT_SCORE_POINT_VALUE_BPS", &cfg.Decision.ScorePointValueBps)
	floatEnv("BOT_COMMISSION_PER_TRADE", &cfg.Decision.CommissionPerTrade)
	floatEnv("BOT_SLIPPAGE_BPS", &cfg.Decision.SlippageBps)
	floatEnv("BOT_SWITCH_COST_MULTIPLIER", &cfg.Decision.SwitchCostMultiplier)
	strEnv("BOT_PROFILE", &cfg.Decision.DefaultProfile)

	strEnv("BOT_ALPACA_API_KEY", &cfg.Broker.APIKey)
	strEnv("BOT_ALPACA_API_SECRET", &cfg.Broker.APISecret)
	strEnv("BOT_ALPACA_TRADING_URL", &cfg.Broker.TradingBaseURL)
	strEnv("BOT_ALPACA_DATA_URL", &cfg.Broker.DataBaseURL)

	strEnv("BOT_SIGNAL_SNAPSHOT_URL", &cfg.Signal.SnapshotBaseURL)
	strEnv("BOT_SIGNAL_PUSH_URL", &cfg.Signal.PushURL)
	strEnv("BOT_SIGNAL_PUSH_TOKEN", &cfg.Signal.PushToken)

	strEnv("BOT_STATE_DIR", &cfg.Storage.StateDir)
	strEnv("BOT_TRADE_DB", &cfg.Storage.TradeDB)

	strEnv("LOG_LEVEL", &cfg.Log.Level)
	strEnv("LOG_FORMAT", &cfg.Log.Format)
}

func setDefaults(cfg *Config) {
	if cfg.Decision.DecisionSeconds <= 0 {
		cfg.Decision.DecisionSeconds = 12
	}
	if cfg.Decision.SignalStaleSeconds <= 0 {
		cfg.Decision.SignalStaleSeconds = 480
	}
	if cfg.Decision.MissingSymbolGraceSeconds <= 0 {
		cfg.Decision.MissingSymbolGraceSeconds = 180
	}
	if cfg.Decision.SafeReduceStepSeconds <= 0 {
		cfg.Decision.SafeReduceStepSeconds = 60
	}
	if cfg.Decision.SafeReducePerStep <= 0 {
		cfg.Decision.SafeReducePerStep = 1
	}
	if cfg.Decision.SafeStaleEscalateSeconds <= 0 {
		cfg.Decision.SafeStaleEscalateSeconds = 900
	}
	if cfg.Decision.CooldownSeconds <= 0 {
		cfg.Decision.CooldownSeconds = 240
	}
	if cfg.Decision.AccountPollSeconds <= 0 {
		cfg.Decision.AccountPollSeconds = 20
	}
	if cfg.Decision.CashBuffer <= 0 {
		cfg.Decision.CashBuffer = 0.05
	}
	if cfg.Decision.MinWeightPerPos <= 0 {
		cfg.Decision.MinWeightPerPos = 0.08
	}
	if cfg.Decision.ScorePointValueBps <= 0 {
		cfg.Decision.ScorePointValueBps = 4.0
	}
	if cfg.Decision.SlippageBps <= 0 {
		cfg.Decision.SlippageBps = 2.5
	}
	if cfg.Decision.SwitchCostMultiplier <= 0 {
		cfg.Decision.SwitchCostMultiplier = 1.5
	}
	if cfg.Decision.DefaultProfile == "" {
		cfg.Decision.DefaultProfile = "balanced"
	}

	if cfg.Broker.TradingBaseURL == "" {
		cfg.Broker.TradingBaseURL = "https://paper-api.alpaca.markets"
	}
	if cfg.Broker.DataBaseURL == "" {
		cfg.Broker.DataBaseURL = "https://data.alpaca.markets"
	}

	if cfg.Signal.PollSeconds <= 0 {
		cfg.Signal.PollSeconds = 20
	}

	if cfg.Storage.StateDir == "" {
		cfg.Storage.StateDir = "./state"
	}
	if cfg.Storage.TradeDB == "" {
		cfg.Storage.TradeDB = "trades.sqlite"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
