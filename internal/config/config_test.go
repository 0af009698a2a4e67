package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFailsWithoutChainRPCURL(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain_rpc_url")
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("BUBBLED_CHAIN_RPC_URL", "https://rpc.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "http://localhost:8080", cfg.ProviderURL)
	assert.Equal(t, "https://rpc.example.com", cfg.ChainRPCURL)
	assert.Equal(t, 5*time.Second, cfg.PermissionsCacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.ReplayWindow)
	assert.Equal(t, 30*time.Second, cfg.ClockSkew)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.ResumeTokenTTL)
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	t.Setenv("BUBBLED_CHAIN_RPC_URL", "https://rpc.example.com")
	t.Setenv("BUBBLED_LISTEN_ADDR", ":9090")
	t.Setenv("BUBBLED_LOG_LEVEL", "debug")
	t.Setenv("BUBBLED_PERMISSIONS_CACHE_TTL", "30s")
	t.Setenv("BUBBLED_SUBSCRIPTION_TOKEN_SECRET", "shh")
	t.Setenv("BUBBLED_RESUME_TOKEN_TTL", "2m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.PermissionsCacheTTL)
	assert.Equal(t, []byte("shh"), cfg.SubscriptionTokenSecret)
	assert.Equal(t, 2*time.Minute, cfg.ResumeTokenTTL)
}
