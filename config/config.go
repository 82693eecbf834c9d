// Package config loads coindog settings from defaults, an optional YAML
// file, a .env file, COINDOG_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"coindog/internal/watchdog"
)

const EnvPrefix = "COINDOG"

// Config holds all application configuration.
type Config struct {
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Data     DataConfig     `mapstructure:"data"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Trend    TrendConfig    `mapstructure:"trend"`
	Paper    PaperConfig    `mapstructure:"paper"`
	Redis    RedisConfig    `mapstructure:"redis"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Log      LogConfig      `mapstructure:"log"`
}

// ExchangeConfig holds the Binance credentials. Both keys empty means
// public endpoints only.
type ExchangeConfig struct {
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	Testnet   bool   `mapstructure:"testnet"`
	BaseURL   string `mapstructure:"base_url"`
}

type DataConfig struct {
	Markets string `mapstructure:"markets"` // tracked market list (JSON)
	Candles string `mapstructure:"candles"` // candle snapshot (JSON), "" disables
	SQLite  string `mapstructure:"sqlite"`  // candle snapshot (SQLite), replaces Candles when set
	Journal string `mapstructure:"journal"` // order journal (SQLite), "" disables
}

type WatchConfig struct {
	Timeframe string        `mapstructure:"timeframe"`
	Capacity  int           `mapstructure:"capacity"`
	Budget    int           `mapstructure:"budget"`
	Tick      time.Duration `mapstructure:"tick"`
	Lookback  time.Duration `mapstructure:"lookback"`
	Smoothing float64       `mapstructure:"smoothing"`
	TUI       bool          `mapstructure:"tui"`
}

type TrendConfig struct {
	Period     int     `mapstructure:"period"`
	Multiplier float64 `mapstructure:"multiplier"`
}

// PaperConfig controls the order simulator. Balance seeds Quote when the
// exchange has no credentials.
type PaperConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Stake   float64 `mapstructure:"stake"`
	Quote   string  `mapstructure:"quote"`
	Balance float64 `mapstructure:"balance"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// HTTPConfig: Addr serves the REST API and websocket, MetricsAddr serves
// /metrics and /healthz. Empty disables a listener.
type HTTPConfig struct {
	Addr        string `mapstructure:"addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	ReplaySize  int    `mapstructure:"replay_size"`
}

type NotifyConfig struct {
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id"`
	WebhookURL     string `mapstructure:"webhook_url"`
	Queue          int    `mapstructure:"queue"`
}

type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Service string `mapstructure:"service"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type LogConfig struct {
	Level  string   `mapstructure:"level"`
	Output []string `mapstructure:"output"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"config":    "",
	"markets":   "data.markets",
	"candles":   "data.candles",
	"sqlite":    "data.sqlite",
	"journal":   "data.journal",
	"timeframe": "watch.timeframe",
	"capacity":  "watch.capacity",
	"budget":    "watch.budget",
	"tui":       "watch.tui",
	"trade":     "paper.enabled",
	"stake":     "paper.stake",
	"testnet":   "exchange.testnet",
	"http":      "http.addr",
	"metrics":   "http.metrics_addr",
	"redis":     "redis.enabled",
	"log-level": "log.level",
}

func setDefaults(v *viper.Viper) {
	wd := watchdog.DefaultConfig()

	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.secret_key", "")
	v.SetDefault("exchange.testnet", false)
	v.SetDefault("exchange.base_url", "")

	v.SetDefault("data.markets", "data/markets.json")
	v.SetDefault("data.candles", "data/candles.json")
	v.SetDefault("data.sqlite", "")
	v.SetDefault("data.journal", "")

	v.SetDefault("watch.timeframe", wd.Timeframe)
	v.SetDefault("watch.capacity", wd.Capacity)
	v.SetDefault("watch.budget", wd.Budget)
	v.SetDefault("watch.tick", wd.TickInterval)
	v.SetDefault("watch.lookback", wd.Lookback)
	v.SetDefault("watch.smoothing", wd.Smoothing)
	v.SetDefault("watch.tui", false)

	v.SetDefault("trend.period", wd.Period)
	v.SetDefault("trend.multiplier", wd.Multiplier)

	v.SetDefault("paper.enabled", false)
	v.SetDefault("paper.stake", 10.0)
	v.SetDefault("paper.quote", "USDT")
	v.SetDefault("paper.balance", 1000.0)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "coindog")

	v.SetDefault("http.addr", "")
	v.SetDefault("http.metrics_addr", "")
	v.SetDefault("http.replay_size", 256)

	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", 0)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.queue", 64)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service", "coindog")
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", []string{"stdout"})
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "YAML config file")
	fs.String("markets", "", "tracked market list file")
	fs.String("candles", "", "candle snapshot file")
	fs.String("sqlite", "", "SQLite candle snapshot, replaces --candles")
	fs.String("journal", "", "SQLite order journal")
	fs.StringP("timeframe", "t", "", "candle timeframe, e.g. 1m or 1h")
	fs.Int("capacity", 0, "candles kept per market")
	fs.Int("budget", 0, "exchange requests per minute")
	fs.Bool("tui", false, "show the terminal status view")
	fs.Bool("trade", false, "simulate orders on BUY/SELL signals")
	fs.Float64("stake", 0, "quote amount spent per simulated BUY")
	fs.Bool("testnet", false, "use the exchange testnet")
	fs.String("http", "", "REST API and websocket listen address")
	fs.String("metrics", "", "metrics and health listen address")
	fs.Bool("redis", false, "publish events to redis")
	fs.String("log-level", "", "debug, info, warn or error")
}

// Load builds the configuration. path names a YAML file and may be empty;
// fs may be nil. Only flags explicitly set on fs override other sources.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" && fs != nil {
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if key == "" || f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the watch loop cannot default.
func (c *Config) Validate() error {
	if c.Data.Markets == "" {
		return errors.New("config: data.markets is required")
	}
	if _, err := watchdog.ParseTimeframe(c.Watch.Timeframe); err != nil {
		return fmt.Errorf("config: watch.timeframe: %w", err)
	}
	if c.Watch.Budget <= 0 {
		return fmt.Errorf("config: watch.budget must be positive, got %d", c.Watch.Budget)
	}
	if c.Watch.Capacity <= c.Trend.Period {
		return fmt.Errorf("config: watch.capacity (%d) must exceed trend.period (%d)", c.Watch.Capacity, c.Trend.Period)
	}
	if c.Paper.Enabled && c.Paper.Stake <= 0 {
		return fmt.Errorf("config: paper.stake must be positive, got %v", c.Paper.Stake)
	}
	if (c.Exchange.APIKey == "") != (c.Exchange.SecretKey == "") {
		return errors.New("config: exchange.api_key and exchange.secret_key must be set together")
	}
	return nil
}

// Watchdog returns the scheduler settings.
func (c *Config) Watchdog() watchdog.Config {
	return watchdog.Config{
		Timeframe:    c.Watch.Timeframe,
		Capacity:     c.Watch.Capacity,
		Budget:       c.Watch.Budget,
		TickInterval: c.Watch.Tick,
		Lookback:     c.Watch.Lookback,
		Smoothing:    c.Watch.Smoothing,
		Period:       c.Trend.Period,
		Multiplier:   c.Trend.Multiplier,
	}
}

// Authenticated reports whether exchange credentials are configured.
func (c *Config) Authenticated() bool {
	return c.Exchange.APIKey != "" && c.Exchange.SecretKey != ""
}
