package cmd

import (
	"github.com/spf13/cobra"

	"github.com/classvr/avncloud/internal/observability"
	"github.com/classvr/avncloud/internal/server"
	"github.com/classvr/avncloud/pkg/analytics"
	"github.com/classvr/avncloud/pkg/upload"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP facade",
	Long: `Run an HTTP server exposing the upload pipeline and analytics
reporter to local callers:

  POST /v1/files?filename=...   upload a file body
  POST /v1/events               report an analytics event
  GET  /health                  liveness and readiness
  GET  /version                 build version`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := resolveEnvironment("")
	if err != nil {
		return exitError("Invalid environment", err)
	}

	channels := buildChannels()
	id := buildIdentity()

	pipeline := upload.New(channels, id,
		upload.WithEnvironment(env),
		upload.WithLogger(observability.CLILogger))
	reporter := analytics.NewReporter(channels, id, cfg.Analytics.HostID,
		analytics.WithRateLimit(cfg.Analytics.RateLimit, cfg.Analytics.Burst),
		analytics.WithReporterLogger(observability.CLILogger))

	srv := server.New(cfg.Server.Host, cfg.Server.Port,
		server.WithPipeline(pipeline),
		server.WithReporter(reporter),
		server.WithVersion(versionInfo.Version),
		server.WithLogger(observability.CLILogger))

	return srv.Start(cmd.Context(), server.Timeouts{
		Read:     cfg.Server.ReadTimeout,
		Write:    cfg.Server.WriteTimeout,
		Idle:     cfg.Server.IdleTimeout,
		Shutdown: cfg.Server.ShutdownTimeout,
	})
}
