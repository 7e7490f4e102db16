// Package config loads blockledger settings from a YAML file, environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmerrifield20/blockledger/internal/chain"
	"github.com/jmerrifield20/blockledger/internal/digest"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the resolved configuration.
type Config struct {
	Ledger LedgerConfig
	Server ServerConfig
	Log    LogConfig
	Client ClientConfig

	// FileUsed is the config file that was read, or "" when none was found.
	FileUsed string
}

// LedgerConfig controls block hashing.
type LedgerConfig struct {
	Algorithm      string
	LinkMode       string
	GenesisPayload int32
}

// ServerConfig controls the ledger daemon.
type ServerConfig struct {
	Port          int
	CORSOrigins   []string
	RateLimitRPS  int
	AuthSecret    string
	TokenTTL      time.Duration
	ShutdownGrace time.Duration
	// AuditInterval is how often the daemon re-verifies its chain; 0 disables.
	AuditInterval time.Duration
}

// ClientConfig points the CLI at a running daemon.
type ClientConfig struct {
	Server  string
	Token   string
	Timeout time.Duration
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string
	Development bool
}

// New returns a viper instance with defaults and environment binding set up.
// Keys use dots; the matching environment variables replace dots with
// underscores (ledger.link_mode -> LEDGER_LINK_MODE).
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ledger.algorithm", string(digest.SHA1))
	v.SetDefault("ledger.link_mode", string(chain.LinkChained))
	v.SetDefault("ledger.genesis_payload", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.auth_secret", "")
	v.SetDefault("server.token_ttl", "1h")
	v.SetDefault("server.shutdown_grace", "15s")
	v.SetDefault("server.audit_interval", "1m")
	v.SetDefault("client.server", "http://localhost:8080")
	v.SetDefault("client.token", "")
	v.SetDefault("client.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	return v
}

// Load reads path, or ledger.yaml from ./configs and . when path is empty.
// A missing default config file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ledger")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &cfgNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	genesis := v.GetInt64("ledger.genesis_payload")
	if _, err := chain.ParsePayload(fmt.Sprint(genesis)); err != nil {
		return nil, fmt.Errorf("ledger.genesis_payload: %w", err)
	}

	ttl, err := time.ParseDuration(v.GetString("server.token_ttl"))
	if err != nil {
		return nil, fmt.Errorf("server.token_ttl: %w", err)
	}
	grace, err := time.ParseDuration(v.GetString("server.shutdown_grace"))
	if err != nil {
		return nil, fmt.Errorf("server.shutdown_grace: %w", err)
	}
	audit, err := time.ParseDuration(v.GetString("server.audit_interval"))
	if err != nil || audit < 0 {
		return nil, fmt.Errorf("server.audit_interval: invalid duration %q", v.GetString("server.audit_interval"))
	}

	timeout, err := time.ParseDuration(v.GetString("client.timeout"))
	if err != nil {
		return nil, fmt.Errorf("client.timeout: %w", err)
	}

	cfg := &Config{
		Ledger: LedgerConfig{
			Algorithm:      v.GetString("ledger.algorithm"),
			LinkMode:       v.GetString("ledger.link_mode"),
			GenesisPayload: int32(genesis),
		},
		Server: ServerConfig{
			Port:          v.GetInt("server.port"),
			CORSOrigins:   v.GetStringSlice("server.cors_origins"),
			RateLimitRPS:  v.GetInt("server.rate_limit_rps"),
			AuthSecret:    v.GetString("server.auth_secret"),
			TokenTTL:      ttl,
			ShutdownGrace: grace,
			AuditInterval: audit,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Client: ClientConfig{
			Server:  v.GetString("client.server"),
			Token:   v.GetString("client.token"),
			Timeout: timeout,
		},
		FileUsed: v.ConfigFileUsed(),
	}

	// Surface bad ledger settings at load time rather than on first use.
	if _, err := cfg.LedgerOptions(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LedgerOptions converts the ledger settings into chain options.
func (c *Config) LedgerOptions() ([]chain.Option, error) {
	alg, err := digest.ParseAlgorithm(c.Ledger.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("ledger.algorithm: %w", err)
	}
	engine, err := digest.New(alg)
	if err != nil {
		return nil, fmt.Errorf("ledger.algorithm: %w", err)
	}
	mode, err := chain.ParseLinkMode(c.Ledger.LinkMode)
	if err != nil {
		return nil, fmt.Errorf("ledger.link_mode: %w", err)
	}
	return []chain.Option{
		chain.WithEngine(engine),
		chain.WithLinkMode(mode),
		chain.WithGenesisPayload(c.Ledger.GenesisPayload),
	}, nil
}

// NewLogger builds a zap logger from the log settings.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
