// Package config loads tool configuration from file, environment, and
// defaults via viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/classvr/avncloud/pkg/rpc"
)

// Config is the full tool configuration.
type Config struct {
	// Environment selects the default backend ("production" or
	// "alpha").
	Environment string `mapstructure:"environment"`

	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	Device    DeviceConfig    `mapstructure:"device"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
}

// EndpointsConfig overrides backend endpoints, mainly for staging and
// tests.
type EndpointsConfig struct {
	Production string `mapstructure:"production"`
	Alpha      string `mapstructure:"alpha"`
}

// DeviceConfig supplies the device identity when no platform property
// bridge is available.
type DeviceConfig struct {
	OrganizationID int64 `mapstructure:"organization_id"`

	// Token is the device JWT. TokenFile, if set, takes precedence and
	// is read at load time.
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token_file"`
}

// AnalyticsConfig tunes the event reporter.
type AnalyticsConfig struct {
	// HostID identifies this application in event records.
	HostID string `mapstructure:"host_id"`

	// RateLimit caps events per second client-side; zero disables.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// ServerConfig controls the HTTP facade started by `serve`.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SetDefaults registers configuration defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", string(rpc.Production))

	v.SetDefault("endpoints.production", rpc.ProductionEndpoint)
	v.SetDefault("endpoints.alpha", rpc.AlphaEndpoint)

	v.SetDefault("device.organization_id", 0)

	v.SetDefault("analytics.host_id", "com.classvr.avncloud")
	v.SetDefault("analytics.rate_limit", 0.0)
	v.SetDefault("analytics.burst", 1)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
}

// Load unmarshals the configuration from v, resolving the device token
// file if one is set.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if _, err := rpc.ParseEnvironment(cfg.Environment); err != nil {
		return nil, err
	}

	if cfg.Device.TokenFile != "" {
		data, err := os.ReadFile(cfg.Device.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read device token file: %w", err)
		}
		cfg.Device.Token = strings.TrimSpace(string(data))
	}

	return &cfg, nil
}

// ChannelOptions translates endpoint overrides into rpc provider
// options.
func (c *Config) ChannelOptions() []rpc.Option {
	var opts []rpc.Option
	if c.Endpoints.Production != "" {
		opts = append(opts, rpc.WithEndpoint(rpc.Production, c.Endpoints.Production))
	}
	if c.Endpoints.Alpha != "" {
		opts = append(opts, rpc.WithEndpoint(rpc.Alpha, c.Endpoints.Alpha))
	}
	return opts
}
