package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SWAPBOT_RPC.
const EnvPrefix = "SWAPBOT"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	PrivateKey      string
	Slippage        string
	DeadlineSeconds uint64
	ConfirmTimeout  time.Duration

	PriceURL       string
	PriceAPIKey    string
	SubgraphURL    string
	SubgraphAPIKey string
	MinInterval    time.Duration
	HTTPTimeout    time.Duration

	Journal     string
	PGDSN       string
	StateFile   string
	MetricsAddr string
	LogLevel    string

	Bot BotConfig
}

// BotConfig selects and parameterizes the trading strategy.
type BotConfig struct {
	Strategy    string
	Interval    time.Duration
	Base        string
	Quote       string
	Amount      string
	MinPrice    string
	MaxPrice    string
	TradingDays []int
	TradingHour int
	AssetID     string
	Currency    string
	ShortPeriod int
	LongPeriod  int
	Once        bool
	// Duration stops the bot after this long. Zero runs until interrupted.
	Duration    time.Duration
}

// Load merges .env, config file, environment variables, and flags into Config.
// Flags win over env, env over the config file.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	// A missing .env is fine; real environment variables take precedence.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("slippage", "0.5")
	v.SetDefault("deadline", uint64(1800))
	v.SetDefault("confirm-timeout", 5*time.Minute)
	v.SetDefault("min-interval", time.Second)
	v.SetDefault("http-timeout", 30*time.Second)
	v.SetDefault("journal", "./data/journal.jsonl")
	v.SetDefault("state-file", "./data/bot_state.json")
	v.SetDefault("log-level", "info")
	v.SetDefault("strategy", "price_threshold")
	v.SetDefault("interval", 60*time.Second)
	v.SetDefault("trading-hour", -1)
	v.SetDefault("currency", "usd")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	days, err := parseInts(getStringSlice(v, "trading-days"))
	if err != nil {
		return Config{}, fmt.Errorf("trading-days: %w", err)
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		PrivateKey:      v.GetString("private-key"),
		Slippage:        v.GetString("slippage"),
		DeadlineSeconds: v.GetUint64("deadline"),
		ConfirmTimeout:  v.GetDuration("confirm-timeout"),
		PriceURL:        v.GetString("price-url"),
		PriceAPIKey:     v.GetString("price-api-key"),
		SubgraphURL:     v.GetString("subgraph-url"),
		SubgraphAPIKey:  v.GetString("subgraph-api-key"),
		MinInterval:     v.GetDuration("min-interval"),
		HTTPTimeout:     v.GetDuration("http-timeout"),
		Journal:         v.GetString("journal"),
		PGDSN:           v.GetString("pg-dsn"),
		StateFile:       v.GetString("state-file"),
		MetricsAddr:     v.GetString("metrics-addr"),
		LogLevel:        v.GetString("log-level"),
		Bot: BotConfig{
			Strategy:    v.GetString("strategy"),
			Interval:    v.GetDuration("interval"),
			Base:        v.GetString("base"),
			Quote:       v.GetString("quote"),
			Amount:      v.GetString("amount"),
			MinPrice:    v.GetString("min-price"),
			MaxPrice:    v.GetString("max-price"),
			TradingDays: days,
			TradingHour: v.GetInt("trading-hour"),
			AssetID:     v.GetString("asset-id"),
			Currency:    v.GetString("currency"),
			ShortPeriod: v.GetInt("short-period"),
			LongPeriod:  v.GetInt("long-period"),
			Once:        v.GetBool("once"),
			Duration:    v.GetDuration("duration"),
		},
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	case []int:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, strconv.Itoa(item))
		}
		return items
	default:
		return nil
	}
}

func parseInts(items []string) ([]int, error) {
	if len(items) == 0 {
		return nil, nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", item)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
