package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds the CLI configuration.
type Config struct {
	Backend   string        `mapstructure:"backend"` // consul, redis, bolt
	Prefix    string        `mapstructure:"prefix"`
	MaxTxnOps int           `mapstructure:"max_txn_ops"`
	LogLevel  string        `mapstructure:"log_level"`
	Timeout   time.Duration `mapstructure:"timeout"`

	Consul ConsulConfig `mapstructure:"consul"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Bolt   BoltConfig   `mapstructure:"bolt"`
}

// ConsulConfig selects the Consul agent. URL wins over Host/Port.
type ConsulConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	URL        string `mapstructure:"url"`
	Token      string `mapstructure:"token"`
	Datacenter string `mapstructure:"datacenter"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Namespace string `mapstructure:"namespace"`
}

type BoltConfig struct {
	Path   string `mapstructure:"path"`
	Bucket string `mapstructure:"bucket"`
}

// Load merges defaults, an optional config file, CASTORE_* environment
// variables and command line flags, in increasing precedence.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// CASTORE_CONSUL_TOKEN => consul.token
	v.SetEnvPrefix("CASTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", "consul")
	v.SetDefault("prefix", "launchdarkly")
	v.SetDefault("max_txn_ops", 64)
	v.SetDefault("log_level", "info")
	v.SetDefault("timeout", 30*time.Second)

	v.SetDefault("consul.host", "localhost")
	v.SetDefault("consul.port", 8500)
	v.SetDefault("consul.url", "")
	v.SetDefault("consul.token", "")
	v.SetDefault("consul.datacenter", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.namespace", "castore")

	v.SetDefault("bolt.path", "")
	v.SetDefault("bolt.bucket", "castore")
}

// bindFlags binds the flags cmd defines; missing ones are skipped so
// subcommands can register a subset.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"backend":      "backend",
		"prefix":       "prefix",
		"max-txn-ops":  "max_txn_ops",
		"log-level":    "log_level",
		"timeout":      "timeout",
		"consul-url":   "consul.url",
		"consul-token": "consul.token",
		"redis-addr":   "redis.addr",
		"bolt-path":    "bolt.path",
	}

	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func validate(cfg *Config) error {
	switch cfg.Backend {
	case "consul", "redis":
	case "bolt":
		if cfg.Bolt.Path == "" {
			return fmt.Errorf("bolt.path is required: specify via --bolt-path flag, config file, or CASTORE_BOLT_PATH environment variable")
		}
	default:
		return fmt.Errorf("unknown backend %q (want consul, redis or bolt)", cfg.Backend)
	}

	if cfg.Prefix == "" {
		return fmt.Errorf("prefix must not be empty")
	}
	if cfg.MaxTxnOps < 1 || cfg.MaxTxnOps > 64 {
		return fmt.Errorf("max_txn_ops must be between 1 and 64, got %d", cfg.MaxTxnOps)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	return nil
}
