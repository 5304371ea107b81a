// Package cmd implements the avncloud command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/classvr/avncloud/internal/config"
	"github.com/classvr/avncloud/internal/observability"
	"github.com/classvr/avncloud/pkg/identity"
	"github.com/classvr/avncloud/pkg/rpc"
)

var rootCmd = &cobra.Command{
	Use:   "avncloud",
	Short: "Upload files and report events to AVN Cloud",
	Long: `avncloud pushes files to the Shared Cloud area of the organization a
device is assigned to, and reports analytics events, using the AVN
Cloud backend services.

Configuration is read from avncloud.yaml (current directory,
$HOME/.avncloud, or /etc/avncloud) and AVNCLOUD_* environment
variables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initRoot,
}

var (
	cfgFile string
	cfg     *config.Config
)

// versionInfo holds build-time version metadata.
var versionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// SetVersionInfo records build metadata injected by the linker.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().String("env", "", "Backend environment (production|alpha)")
	_ = viper.BindPFlag("environment", rootCmd.PersistentFlags().Lookup("env"))
}

// Execute runs the CLI, canceling in-flight work on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer observability.Sync()
	return rootCmd.ExecuteContext(ctx)
}

func initRoot(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("avncloud")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.avncloud")
		v.AddConfigPath("/etc/avncloud")
	}

	v.SetEnvPrefix("AVNCLOUD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded

	if err := observability.Init(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return err
	}
	return nil
}

// setDefaults registers all configuration defaults.
func setDefaults(v *viper.Viper) {
	config.SetDefaults(v)
}

// buildChannels creates the channel provider from configuration.
func buildChannels() *rpc.Provider {
	opts := cfg.ChannelOptions()
	opts = append(opts, rpc.WithLogger(observability.CLILogger))
	return rpc.NewProvider(opts...)
}

// buildIdentity creates the device identity from configuration.
func buildIdentity() identity.Provider {
	return identity.NewStatic(cfg.Device.OrganizationID, cfg.Device.Token)
}

// resolveEnvironment picks the environment from flag or config.
func resolveEnvironment(flagValue string) (rpc.Environment, error) {
	if flagValue != "" {
		return rpc.ParseEnvironment(flagValue)
	}
	return rpc.ParseEnvironment(cfg.Environment)
}

// exitError logs a command failure and returns it for cobra to report.
func exitError(msg string, err error) error {
	observability.CLILogger.Error(msg, zap.Error(err))
	return fmt.Errorf("%s: %w", msg, err)
}
