package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/classvr/avncloud/internal/observability"
	"github.com/classvr/avncloud/pkg/analytics"
	"github.com/classvr/avncloud/pkg/output"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Report an analytics event",
	Long: `Report a single analytics event to the backend. The event payload is
given as --data key=value pairs, or as a YAML/JSON file via --data-file.

Examples:
  avncloud event --source com.classvr.portal --action lesson.start
  avncloud event --source com.classvr.portal --action lesson.start --data lesson=volcanoes --data seats=12
  avncloud event --source com.classvr.portal --action export.done --data-file payload.yaml`,
	RunE: runEvent,
}

var (
	eventSource   string
	eventAction   string
	eventData     []string
	eventDataFile string
	eventEnv      string
)

func init() {
	rootCmd.AddCommand(eventCmd)

	eventCmd.Flags().StringVar(&eventSource, "source", "", "Event source identifier (required)")
	eventCmd.Flags().StringVar(&eventAction, "action", "", "Action identifier (required)")
	eventCmd.Flags().StringArrayVar(&eventData, "data", nil, "Payload entry as key=value (repeatable)")
	eventCmd.Flags().StringVar(&eventDataFile, "data-file", "", "YAML/JSON file holding the payload map")
	eventCmd.Flags().StringVar(&eventEnv, "env", "", "Backend environment (production|alpha)")
	_ = eventCmd.MarkFlagRequired("source")
	_ = eventCmd.MarkFlagRequired("action")
}

func runEvent(cmd *cobra.Command, args []string) error {
	env, err := resolveEnvironment(eventEnv)
	if err != nil {
		return exitError("Invalid environment", err)
	}

	data, err := eventPayload()
	if err != nil {
		return exitError("Invalid event payload", err)
	}

	reporter := analytics.NewReporter(buildChannels(), buildIdentity(), cfg.Analytics.HostID,
		analytics.WithRateLimit(cfg.Analytics.RateLimit, cfg.Analytics.Burst),
		analytics.WithReporterLogger(observability.CLILogger))

	err = reporter.Send(cmd.Context(), analytics.Event{
		SourceID:    eventSource,
		ActionID:    eventAction,
		Data:        data,
		Environment: env,
	})
	if err != nil {
		return exitError("Failed to report event", err)
	}

	writer := output.NewJSONLWriter(os.Stdout, uuid.NewString(), string(env))
	defer func() { _ = writer.Close() }()
	return writer.WriteEvent(cmd.Context(), &output.EventRecord{
		SourceID: eventSource,
		ActionID: eventAction,
	})
}

// eventPayload builds the payload map from --data-file or --data pairs.
func eventPayload() (map[string]any, error) {
	if eventDataFile != "" {
		if len(eventData) > 0 {
			return nil, fmt.Errorf("--data-file cannot be combined with --data")
		}
		raw, err := os.ReadFile(eventDataFile)
		if err != nil {
			return nil, err
		}
		var data map[string]any
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", eventDataFile, err)
		}
		return data, nil
	}

	if len(eventData) == 0 {
		return nil, nil
	}
	data := make(map[string]any, len(eventData))
	for _, pair := range eventData {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --data entry %q, want key=value", pair)
		}
		data[key] = value
	}
	return data, nil
}
