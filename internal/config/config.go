// Package config loads Guardian server configuration, layering defaults,
// an optional config file, and environment variables via viper, the way
// the pack's cobra-based CLIs do.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all bubbled configuration.
type Config struct {
	// ListenAddr is the HTTP/WSS bind address, e.g. ":8080".
	ListenAddr string

	// ProviderURL is this server's own advertised provider URL, used both
	// to answer ContentId.provider fields and to check BubblePermission
	// delegation scopes against.
	ProviderURL string

	// ChainRPCURL is the upstream Ethereum JSON-RPC endpoint the
	// BlockchainProvider dials.
	ChainRPCURL string

	// PermissionsCacheTTL bounds how long a (contract, signatory, path)
	// permission lookup is cached before being re-queried on-chain.
	PermissionsCacheTTL time.Duration

	// ReplayWindow bounds how long a (signatory, nonce) pair is held for
	// duplicate detection.
	ReplayWindow time.Duration

	// ClockSkew is the tolerance applied to request timestamps.
	ClockSkew time.Duration

	// SubscriptionTokenSecret signs WebSocket subscription resume tokens.
	// Resume is disabled when this is empty.
	SubscriptionTokenSecret []byte

	// ResumeTokenTTL bounds how long a subscription resume token stays
	// valid after a WebSocket drop.
	ResumeTokenTTL time.Duration

	// RequestTimeout is the default per-request send/receive timeout.
	RequestTimeout time.Duration

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads configuration from (in ascending priority) built-in
// defaults, a config file named bubbled.yaml/.json/.toml on the search
// path, a .env file in the working directory, and environment variables
// prefixed BUBBLED_.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BUBBLED")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("provider_url", "http://localhost:8080")
	v.SetDefault("chain_rpc_url", "")
	v.SetDefault("permissions_cache_ttl", "5s")
	v.SetDefault("replay_window", "5m")
	v.SetDefault("clock_skew", "30s")
	v.SetDefault("request_timeout", "3s")
	v.SetDefault("log_level", "info")
	v.SetDefault("subscription_token_secret", "")
	v.SetDefault("resume_token_ttl", "10m")

	v.SetConfigName("bubbled")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/bubbled")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if v.GetString("chain_rpc_url") == "" {
		return nil, fmt.Errorf("chain_rpc_url (BUBBLED_CHAIN_RPC_URL) is required")
	}

	cfg := &Config{
		ListenAddr:              v.GetString("listen_addr"),
		ProviderURL:             v.GetString("provider_url"),
		ChainRPCURL:             v.GetString("chain_rpc_url"),
		PermissionsCacheTTL:     v.GetDuration("permissions_cache_ttl"),
		ReplayWindow:            v.GetDuration("replay_window"),
		ClockSkew:               v.GetDuration("clock_skew"),
		RequestTimeout:          v.GetDuration("request_timeout"),
		LogLevel:                v.GetString("log_level"),
		SubscriptionTokenSecret: []byte(v.GetString("subscription_token_secret")),
		ResumeTokenTTL:          v.GetDuration("resume_token_ttl"),
	}

	return cfg, nil
}
