package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classvr/avncloud/pkg/rpc"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, rpc.ProductionEndpoint, cfg.Endpoints.Production)
	assert.Equal(t, rpc.AlphaEndpoint, cfg.Endpoints.Alpha)
	assert.Equal(t, "com.classvr.avncloud", cfg.Analytics.HostID)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "structured", cfg.Logging.Profile)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadFromFile(t *testing.T) {
	content := `
environment: alpha
endpoints:
  alpha: http://localhost:9999
device:
  organization_id: 42
  token: device-jwt
analytics:
  host_id: com.classvr.portal
  rate_limit: 5
  burst: 10
server:
  read_timeout: 45s
`
	path := filepath.Join(t.TempDir(), "avncloud.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "alpha", cfg.Environment)
	assert.Equal(t, "http://localhost:9999", cfg.Endpoints.Alpha)
	assert.Equal(t, rpc.ProductionEndpoint, cfg.Endpoints.Production)
	assert.Equal(t, int64(42), cfg.Device.OrganizationID)
	assert.Equal(t, "device-jwt", cfg.Device.Token)
	assert.Equal(t, "com.classvr.portal", cfg.Analytics.HostID)
	assert.Equal(t, 5.0, cfg.Analytics.RateLimit)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadRejectsUnknownEnvironment(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("environment", "staging")

	_, err := Load(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, rpc.ErrUnknownEnvironment)
}

func TestLoadTokenFile(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenPath, []byte("  file-jwt\n"), 0o600))

	v := viper.New()
	SetDefaults(v)
	v.Set("device.token", "inline-jwt")
	v.Set("device.token_file", tokenPath)

	cfg, err := Load(v)
	require.NoError(t, err)
	// The token file takes precedence and is trimmed.
	assert.Equal(t, "file-jwt", cfg.Device.Token)
}

func TestLoadTokenFileMissing(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("device.token_file", filepath.Join(t.TempDir(), "absent"))

	_, err := Load(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device token file")
}

func TestChannelOptions(t *testing.T) {
	cfg := &Config{}
	assert.Empty(t, cfg.ChannelOptions())

	cfg.Endpoints.Production = "http://localhost:1"
	cfg.Endpoints.Alpha = "http://localhost:2"
	assert.Len(t, cfg.ChannelOptions(), 2)
}
