package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	services "github.com/syntrixbase/tripsync/internal/services/config"
)

func TestDefaultGatewayConfig(t *testing.T) {
	cfg := DefaultGatewayConfig()

	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, 100, cfg.DefaultListLimit)
	assert.Equal(t, 1000, cfg.MaxListLimit)
	assert.NoError(t, cfg.Validate(services.ModeStandalone))
}

func TestGatewayConfig_ApplyDefaults(t *testing.T) {
	cfg := GatewayConfig{MaxListLimit: 50}
	cfg.ApplyDefaults()

	assert.Equal(t, 50, cfg.MaxListLimit)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 100, cfg.DefaultListLimit)
	assert.Error(t, cfg.Validate(services.ModeStandalone), "default limit above max")
}

func TestGatewayConfig_ApplyEnvOverrides(t *testing.T) {
	t.Setenv("TRIPSYNC_GATEWAY_MAX_LIST_LIMIT", "250")
	cfg := DefaultGatewayConfig()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 250, cfg.MaxListLimit)

	t.Setenv("TRIPSYNC_GATEWAY_MAX_LIST_LIMIT", "lots")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, 250, cfg.MaxListLimit)
}

func TestGatewayConfig_Validate(t *testing.T) {
	cfg := DefaultGatewayConfig()
	cfg.MaxListLimit = 0
	assert.Error(t, cfg.Validate(services.ModeDistributed))

	cfg = DefaultGatewayConfig()
	cfg.RequestTimeout = -time.Second
	assert.Error(t, cfg.Validate(services.ModeDistributed))
}
