package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/classvr/avncloud/internal/observability"
	"github.com/classvr/avncloud/pkg/avnfs"
	"github.com/classvr/avncloud/pkg/content"
	"github.com/classvr/avncloud/pkg/job"
	"github.com/classvr/avncloud/pkg/output"
	"github.com/classvr/avncloud/pkg/rpc"
	"github.com/classvr/avncloud/pkg/upload"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [files...]",
	Short: "Upload files to the organization's shared cloud",
	Long: `Upload files to the Shared Cloud area of the organization this device
is assigned to. Content already stored on the backend is deduplicated
by hash and only re-registered, not re-transferred.

Files are given as arguments, as --include glob patterns, or through a
YAML/JSON job file. Results are emitted as JSONL records.

Examples:
  avncloud upload report.pdf
  avncloud upload --include 'exports/**/*.png'
  avncloud upload --job uploads.yaml --output results.jsonl`,
	RunE: runUpload,
}

var (
	uploadJobPath   string
	uploadInclude   []string
	uploadName      string
	uploadMediaType string
	uploadOutput    string
	uploadEnv       string
)

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVarP(&uploadJobPath, "job", "j", "", "Path to upload job file")
	uploadCmd.Flags().StringSliceVar(&uploadInclude, "include", nil, "Glob patterns to upload (doublestar syntax)")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "Registered file name (single file only)")
	uploadCmd.Flags().StringVar(&uploadMediaType, "media-type", "", "Media type override (single file only)")
	uploadCmd.Flags().StringVarP(&uploadOutput, "output", "o", "", "Write JSONL results to file instead of stdout")
	uploadCmd.Flags().StringVar(&uploadEnv, "env", "", "Backend environment (production|alpha)")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	j, err := uploadJob(args)
	if err != nil {
		return exitError("Invalid upload request", err)
	}

	envName := uploadEnv
	if envName == "" && j.Environment != "" {
		envName = j.Environment
	}
	env, err := resolveEnvironment(envName)
	if err != nil {
		return exitError("Invalid environment", err)
	}

	specs, err := j.Resolve()
	if err != nil {
		return exitError("Failed to resolve upload files", err)
	}

	if len(specs) > 1 && (uploadName != "" || uploadMediaType != "") {
		return exitError("Invalid flags", fmt.Errorf("--name and --media-type apply to a single file, got %d", len(specs)))
	}

	writer, closeWriter, err := resultWriter(uploadOutput, string(env))
	if err != nil {
		return exitError("Failed to create writer", err)
	}
	defer closeWriter()

	pipeline := upload.New(buildChannels(), buildIdentity(),
		upload.WithEnvironment(env),
		upload.WithLogger(observability.CLILogger))

	var failures int
	for _, spec := range specs {
		if uploadName != "" {
			spec.Name = uploadName
		}
		if uploadMediaType != "" {
			spec.MediaType = uploadMediaType
		}
		if err := uploadOne(ctx, pipeline, writer, spec); err != nil {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d uploads failed", failures, len(specs))
	}
	return nil
}

// uploadJob builds the effective job from a job file or command
// arguments.
func uploadJob(args []string) (*job.Job, error) {
	if uploadJobPath != "" {
		if len(args) > 0 || len(uploadInclude) > 0 {
			return nil, fmt.Errorf("--job cannot be combined with file arguments or --include")
		}
		return job.Load(uploadJobPath)
	}

	j := &job.Job{Include: uploadInclude}
	for _, path := range args {
		j.Files = append(j.Files, job.FileSpec{Path: path})
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

func uploadOne(ctx context.Context, pipeline *upload.Pipeline, writer output.Writer, spec job.FileSpec) error {
	data, err := os.ReadFile(spec.Path)
	if err != nil {
		observability.CLILogger.Error("Failed to read file", zap.String("path", spec.Path), zap.Error(err))
		_ = writer.WriteError(ctx, &output.ErrorRecord{
			Code:     output.ErrCodeValidation,
			Message:  err.Error(),
			FileName: spec.Name,
		})
		return err
	}

	result, err := pipeline.Upload(ctx, upload.Request{
		FileName:  spec.Name,
		MediaType: spec.MediaType,
		Data:      data,
	})
	if err != nil {
		_ = writer.WriteError(ctx, &output.ErrorRecord{
			Code:     classifyError(err),
			Message:  err.Error(),
			FileName: spec.Name,
		})
		return err
	}

	return writer.WriteUpload(ctx, &output.UploadRecord{
		FileName:     spec.Name,
		MediaType:    spec.MediaType,
		SizeBytes:    int64(len(data)),
		Hash:         content.Hash(data),
		DownloadURL:  result.DownloadURL,
		EntityIDs:    result.EntityIDs,
		Deduplicated: result.Deduplicated,
	})
}

// resultWriter opens the JSONL destination: a file path, or stdout for
// "" and "-".
func resultWriter(dest, env string) (output.Writer, func(), error) {
	jobID := uuid.NewString()

	if dest == "" || dest == "-" {
		w := output.NewJSONLWriter(os.Stdout, jobID, env)
		return w, func() { _ = w.Close() }, nil
	}

	f, err := os.Create(dest)
	if err != nil {
		return nil, nil, err
	}
	w := output.NewJSONLWriter(f, jobID, env)
	return w, func() {
		_ = w.Close()
		_ = f.Close()
	}, nil
}

func classifyError(err error) string {
	switch {
	case upload.IsValidation(err):
		return output.ErrCodeValidation
	case avnfs.IsTransfer(err):
		return output.ErrCodeTransfer
	case rpc.IsTransport(err):
		return output.ErrCodeTransport
	default:
		return output.ErrCodeInternal
	}
}
