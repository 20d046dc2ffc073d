package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LogLevel string

	Server   ServerConfig
	LiFi     ProviderConfig
	Socket   ProviderConfig
	OneClick ProviderConfig
	Fee      FeeConfig
	Timeouts TimeoutConfig
	Tracker  TrackerConfig
	Debounce time.Duration
	Store    StoreConfig
	Wallet   WalletConfig
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr string
}

// ProviderConfig configures one provider integration
type ProviderConfig struct {
	BaseURL string
	APIKey  string
}

// TimeoutConfig bounds outbound provider calls
type TimeoutConfig struct {
	Quote  time.Duration
	Tokens time.Duration
}

// TrackerConfig is the status polling schedule
type TrackerConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

// StoreConfig selects where tracked transactions are persisted
type StoreConfig struct {
	Driver      string // memory, file, redis or postgres
	Path        string
	RedisAddr   string
	PostgresDSN string
}

// WalletConfig configures the local key signers
type WalletConfig struct {
	PrivateKey       string // hex EVM key
	SolanaPrivateKey string // base58 Solana key
	RPC              map[int64]string
}

// Load merges the config file, environment variables and flags.
// Environment variables use the XROUTE_ prefix, e.g. XROUTE_LIFI_API_KEY.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("XROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "warn")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("lifi.base_url", "https://li.quest/v1")
	v.SetDefault("lifi.api_key", "")
	v.SetDefault("socket.base_url", "https://api.socket.tech/v2")
	v.SetDefault("socket.api_key", "")
	v.SetDefault("oneclick.base_url", "https://1click.chaindefuser.com")
	v.SetDefault("oneclick.jwt_token", "")
	v.SetDefault("fee.collector", "")
	v.SetDefault("fee.percent", 0.0)
	v.SetDefault("timeouts.quote", 30*time.Second)
	v.SetDefault("timeouts.tokens", 10*time.Second)
	v.SetDefault("tracker.initial_delay", 10*time.Second)
	v.SetDefault("tracker.interval", 15*time.Second)
	v.SetDefault("tracker.max_attempts", 120)
	v.SetDefault("debounce", 800*time.Millisecond)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "")
	v.SetDefault("store.redis_addr", "127.0.0.1:6379")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.solana_private_key", "")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName(".xroute")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	rpc, err := parseRPCMap(getStringMap(v, "wallet.rpc"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel: v.GetString("log-level"),
		Server:   ServerConfig{Addr: v.GetString("server.addr")},
		LiFi: ProviderConfig{
			BaseURL: v.GetString("lifi.base_url"),
			APIKey:  v.GetString("lifi.api_key"),
		},
		Socket: ProviderConfig{
			BaseURL: v.GetString("socket.base_url"),
			APIKey:  v.GetString("socket.api_key"),
		},
		OneClick: ProviderConfig{
			BaseURL: v.GetString("oneclick.base_url"),
			APIKey:  v.GetString("oneclick.jwt_token"),
		},
		Fee: FeeConfig{
			Collector: v.GetString("fee.collector"),
			Percent:   v.GetFloat64("fee.percent"),
		},
		Timeouts: TimeoutConfig{
			Quote:  v.GetDuration("timeouts.quote"),
			Tokens: v.GetDuration("timeouts.tokens"),
		},
		Tracker: TrackerConfig{
			InitialDelay: v.GetDuration("tracker.initial_delay"),
			Interval:     v.GetDuration("tracker.interval"),
			MaxAttempts:  v.GetInt("tracker.max_attempts"),
		},
		Debounce: v.GetDuration("debounce"),
		Store: StoreConfig{
			Driver:      strings.ToLower(v.GetString("store.driver")),
			Path:        v.GetString("store.path"),
			RedisAddr:   v.GetString("store.redis_addr"),
			PostgresDSN: v.GetString("store.postgres_dsn"),
		},
		Wallet: WalletConfig{
			PrivateKey:       v.GetString("wallet.private_key"),
			SolanaPrivateKey: v.GetString("wallet.solana_private_key"),
			RPC:              rpc,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late
func (c *Config) Validate() error {
	if err := c.Fee.Validate(); err != nil {
		return err
	}
	if c.Tracker.MaxAttempts <= 0 {
		return fmt.Errorf("tracker.max_attempts must be positive")
	}
	if c.Tracker.Interval <= 0 {
		return fmt.Errorf("tracker.interval must be positive")
	}
	switch c.Store.Driver {
	case "memory", "file", "redis", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.PostgresDSN == "" {
		return fmt.Errorf("store.postgres_dsn is required for the postgres store")
	}
	return nil
}

// RPCURL returns the configured RPC endpoint for a chain, falling back to
// the chain table default
func (c *Config) RPCURL(chainID int64) string {
	if url, ok := c.Wallet.RPC[chainID]; ok && url != "" {
		return url
	}
	if chain, ok := Chains().Get(chainID); ok {
		return chain.RPCURL
	}
	return ""
}

func parseRPCMap(raw map[string]string) (map[int64]string, error) {
	out := make(map[int64]string, len(raw))
	for key, url := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("wallet.rpc: invalid chain id %q", key)
		}
		out[id] = strings.TrimSpace(url)
	}
	return out, nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

// parseStringMap reads "k1=v1,k2=v2"
func parseStringMap(input string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(input, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
