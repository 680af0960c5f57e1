package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("RELAY_LIVE_WS_ENDPOINT", "wss://relay.example/live")
	t.Setenv("RELAY_ARCHIVE_WS_ENDPOINT", "wss://relay.example/archive")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.API.ListenAddr, cfg.API.ListenAddr)
	assert.Equal(t, want.API.ShutdownTimeout, cfg.API.ShutdownTimeout)
	assert.Equal(t, want.Gateway.ReceiptTimeout, cfg.Gateway.ReceiptTimeout)
	assert.Equal(t, "wss://relay.example/live", cfg.Relay.LiveEndpoint)
	assert.Equal(t, "wss://relay.example/archive", cfg.Relay.ArchiveEndpoint)
}

func TestLoadMissingFileWithoutEndpointsFails(t *testing.T) {
	t.Setenv("RELAY_LIVE_WS_ENDPOINT", "")
	t.Setenv("RELAY_ARCHIVE_WS_ENDPOINT", "")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live_endpoint")
}

func TestLoadFromYAMLWithEnvFallbacks(t *testing.T) {
	t.Setenv("RELAY_LIVE_WS_ENDPOINT", "wss://relay.example/live")
	t.Setenv("RELAY_ARCHIVE_WS_ENDPOINT", "wss://relay.example/archive")
	t.Setenv("WALLET_PRIVATE_KEY", "abc123")

	raw := `
api:
  listen_addr: ":9090"
relay:
  listen_timeout: 50
log:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.API.ListenAddr)
	assert.Equal(t, uint64(50), cfg.Relay.ListenTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	// unset keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.API.WriteTimeout)
	// secrets come from the environment
	assert.Equal(t, "abc123", cfg.Wallet.PrivateKey)
	assert.Equal(t, "wss://relay.example/live", cfg.Relay.LiveEndpoint)
}

func TestConvertersCarryEveryField(t *testing.T) {
	cfg := Default()
	cfg.Relay.LiveEndpoint = "wss://relay.example/live"
	cfg.Relay.ArchiveEndpoint = "wss://relay.example/archive"

	api := cfg.ToAPI()
	assert.Equal(t, cfg.API.ListenAddr, api.ListenAddr)
	assert.Equal(t, cfg.API.ShutdownTimeout, api.ShutdownTimeout)
	assert.Equal(t, cfg.API.MaxHeaderBytes, api.MaxHeaderBytes)

	relayCfg := cfg.ToRelay()
	require.NoError(t, relayCfg.Validate())
	assert.Equal(t, cfg.Relay.MaxPollWait, relayCfg.MaxPollWait)

	gwCfg := cfg.ToGateway()
	require.NoError(t, gwCfg.Validate())
	assert.Equal(t, cfg.Gateway.GasLimitBufferPercent, gwCfg.GasLimitBufferPercent)
}
