package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vaultDeposit/internal/model"
)

// FeedConfig locates a Chainlink aggregator.
type FeedConfig struct {
	Address  common.Address
	Decimals uint8
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	ChainID         uint64
	PrivateKey      string
	Tokens          [2]model.TokenConfig
	Vault           common.Address
	Router          common.Address
	Resolver        common.Address
	Helper          common.Address
	PriceFeeds      map[string]FeedConfig
	Slippage        float64
	Chains          ChainTable
	PollInterval    time.Duration
	PollTimeout     time.Duration
	MaxPollAttempts int
	PollRetries     uint
	RefreshInterval time.Duration
	Journal         string
	PGDSN           string
	MetricsAddr     string
	Explorer        string
	LogLevel        string
}

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("VAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

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

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain-id", uint64(42161))
	v.SetDefault("token0.symbol", "WETH")
	v.SetDefault("token0.address", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	v.SetDefault("token0.decimals", 18)
	v.SetDefault("token0.price-path", "ETHUSD")
	v.SetDefault("token1.symbol", "rETH")
	v.SetDefault("token1.address", "0xEC70Dcb4A1EFa46b8F2D97C310C9c4790ba5ffA8")
	v.SetDefault("token1.decimals", 18)
	v.SetDefault("token1.price-path", "rETHETH,ETHUSD")
	v.SetDefault("price-feeds", map[string]interface{}{
		"ETHUSD":  map[string]interface{}{"address": "0x639Fe6ab55C921f74e7fac1ee960C0B6293ba612", "decimals": 8},
		"rETHETH": map[string]interface{}{"address": "0xD6aB2298946840262FcC278fF31516D39fF611eF", "decimals": 18},
	})
	v.SetDefault("slippage", 0.5)
	v.SetDefault("chains", "42161=1")
	v.SetDefault("allow-unconfigured-chain", false)
	v.SetDefault("poll-interval", time.Second)
	v.SetDefault("poll-timeout", time.Duration(0))
	v.SetDefault("max-poll-attempts", 0)
	v.SetDefault("poll-retries", 3)
	v.SetDefault("refresh-interval", 30*time.Second)
	v.SetDefault("journal", "./data/steps.jsonl")
	v.SetDefault("explorer", "https://arbiscan.io")
	v.SetDefault("log-level", "info")
}

func fromViper(v *viper.Viper) (Config, error) {
	chains, err := ParseChainTable(getStringMap(v, "chains"), v.GetBool("allow-unconfigured-chain"))
	if err != nil {
		return Config{}, err
	}
	feeds, err := parseFeeds(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		ChainID:         v.GetUint64("chain-id"),
		PrivateKey:      v.GetString("private-key"),
		PriceFeeds:      feeds,
		Slippage:        v.GetFloat64("slippage"),
		Chains:          chains,
		PollInterval:    v.GetDuration("poll-interval"),
		PollTimeout:     v.GetDuration("poll-timeout"),
		MaxPollAttempts: v.GetInt("max-poll-attempts"),
		PollRetries:     v.GetUint("poll-retries"),
		RefreshInterval: v.GetDuration("refresh-interval"),
		Journal:         v.GetString("journal"),
		PGDSN:           v.GetString("pg-dsn"),
		MetricsAddr:     v.GetString("metrics-addr"),
		Explorer:        v.GetString("explorer"),
		LogLevel:        v.GetString("log-level"),
	}
	if cfg.Slippage < 0 || cfg.Slippage >= 100 {
		return Config{}, fmt.Errorf("slippage must be in [0, 100), got %v", cfg.Slippage)
	}

	for i := range cfg.Tokens {
		token, err := parseToken(v, fmt.Sprintf("token%d", i))
		if err != nil {
			return Config{}, err
		}
		cfg.Tokens[i] = token
	}

	targets := []struct {
		key string
		dst *common.Address
	}{
		{"vault", &cfg.Vault},
		{"router", &cfg.Router},
		{"resolver", &cfg.Resolver},
		{"helper", &cfg.Helper},
	}
	for _, target := range targets {
		addr, err := ParseAddress(v.GetString(target.key))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", target.key, err)
		}
		*target.dst = addr
	}

	return cfg, nil
}

// ValidateDeposit checks the settings needed to talk to the vault.
func (c Config) ValidateDeposit() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	var missing []string
	for _, target := range []struct {
		name string
		addr common.Address
	}{
		{"vault", c.Vault},
		{"router", c.Router},
		{"resolver", c.Resolver},
		{"helper", c.Helper},
	} {
		if target.addr == (common.Address{}) {
			missing = append(missing, target.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing contract addresses: %s", strings.Join(missing, ", "))
	}
	for _, token := range c.Tokens {
		for _, ticker := range token.PricePath {
			if _, ok := c.Feed(ticker); !ok {
				return fmt.Errorf("token %s: no price feed for %s", token.Symbol, ticker)
			}
		}
	}
	return nil
}

func parseToken(v *viper.Viper, prefix string) (model.TokenConfig, error) {
	addr, err := ParseAddress(v.GetString(prefix + ".address"))
	if err != nil {
		return model.TokenConfig{}, fmt.Errorf("%s.address: %w", prefix, err)
	}
	decimals := v.GetInt(prefix + ".decimals")
	if decimals < 0 || decimals > 77 {
		return model.TokenConfig{}, fmt.Errorf("%s.decimals out of range: %d", prefix, decimals)
	}
	return model.TokenConfig{
		Symbol:    v.GetString(prefix + ".symbol"),
		Address:   addr,
		Decimals:  uint8(decimals),
		PricePath: getStringSlice(v, prefix+".price-path"),
	}, nil
}

func parseFeeds(v *viper.Viper) (map[string]FeedConfig, error) {
	raw := v.GetStringMap("price-feeds")
	feeds := make(map[string]FeedConfig, len(raw))
	for ticker := range raw {
		key := "price-feeds." + ticker
		addr, err := ParseAddress(v.GetString(key + ".address"))
		if err != nil {
			return nil, fmt.Errorf("%s.address: %w", key, err)
		}
		// viper lowercases map keys, so feeds are looked up case-insensitively.
		feeds[strings.ToLower(ticker)] = FeedConfig{
			Address:  addr,
			Decimals: uint8(v.GetUint(key + ".decimals")),
		}
	}
	return feeds, nil
}

// Feed returns the aggregator configured for ticker.
func (c Config) Feed(ticker string) (FeedConfig, bool) {
	feed, ok := c.PriceFeeds[strings.ToLower(ticker)]
	return feed, ok
}

// ParseAddress converts a hex string into common.Address. Empty input yields
// the zero address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
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
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
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
