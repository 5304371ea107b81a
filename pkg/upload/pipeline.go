// Package upload orchestrates the shared-cloud upload pipeline: hash
// the payload, deduplicate against the store, transfer new bytes, and
// bind the result to the device's organization.
package upload

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/classvr/avncloud/pkg/avnfs"
	"github.com/classvr/avncloud/pkg/cloud"
	"github.com/classvr/avncloud/pkg/content"
	"github.com/classvr/avncloud/pkg/identity"
	"github.com/classvr/avncloud/pkg/rpc"
)

// Request describes one file to upload.
type Request struct {
	// FileName is the name and extension the file is registered under.
	FileName string

	// MediaType is the MIME type of the payload.
	MediaType string

	// Data is the full file contents.
	Data []byte
}

// Result reports a completed upload.
type Result struct {
	// DownloadURL is where the file can be accessed.
	DownloadURL string

	// EntityIDs are the backend identifiers created by the
	// organization binding.
	EntityIDs []int64

	// Deduplicated is true when identical content was already stored
	// and no bytes were transferred.
	Deduplicated bool
}

// Pipeline runs uploads against one environment. Each Upload call is a
// single sequential pass; concurrency comes only from independent
// callers, and the pipeline holds no locks across network calls.
type Pipeline struct {
	channels *rpc.Provider
	identity identity.Provider
	env      rpc.Environment
	uploader *avnfs.Uploader
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEnvironment selects the backend environment. Defaults to
// Production.
func WithEnvironment(env rpc.Environment) Option {
	return func(p *Pipeline) {
		p.env = env
	}
}

// WithHTTPClient sets the client used for the raw transfer.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Pipeline) {
		p.uploader = avnfs.NewUploader(avnfs.WithHTTPClient(client))
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline using the given channel provider and device
// identity.
func New(channels *rpc.Provider, id identity.Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		channels: channels,
		identity: id,
		env:      rpc.Production,
		uploader: avnfs.NewUploader(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Upload runs the full pipeline for one file and returns the download
// URL on success. Stages run strictly in order; any failure
// short-circuits the rest and no URL is surfaced, even when the bytes
// were durably stored but the organization binding failed.
func (p *Pipeline) Upload(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	token := p.identity.DeviceToken()
	if token == "" {
		p.logger.Error("no device token available", zap.String("file", req.FileName))
		return nil, &ValidationError{Field: "DeviceToken", Message: "device token is required for upload"}
	}
	auth := rpc.Authorization{DeviceJWT: token}

	ch, err := p.channels.ChannelFor(p.env)
	if err != nil {
		return nil, err
	}
	negotiator := avnfs.NewClient(ch)

	sig := avnfs.FileSignature{
		FileName:  req.FileName,
		MediaType: req.MediaType,
		Hash:      content.Hash(req.Data),
		SizeBytes: int64(len(req.Data)),
	}

	p.logger.Info("uploading file",
		zap.String("file", req.FileName),
		zap.String("media_type", req.MediaType),
		zap.Int64("size", sig.SizeBytes),
		zap.String("hash", sig.Hash))

	existing, err := negotiator.CheckExisting(ctx, sig)
	if err != nil {
		p.logger.Error("dedup check failed", zap.String("file", req.FileName), zap.Error(err))
		return nil, err
	}

	downloadURL := existing
	deduplicated := existing != ""
	if deduplicated {
		// Dedup avoids re-uploading bytes, not re-registering: the
		// existing URL still gets bound to the organization below.
		p.logger.Info("file already stored",
			zap.String("file", req.FileName),
			zap.String("url", existing))
	} else {
		manifest, err := negotiator.NegotiateManifest(ctx, sig, auth)
		if err != nil {
			p.logger.Error("manifest negotiation failed", zap.String("file", req.FileName), zap.Error(err))
			return nil, err
		}

		if err := p.uploader.Upload(ctx, manifest, req.Data); err != nil {
			p.logger.Error("transfer failed", zap.String("file", req.FileName), zap.Error(err))
			return nil, err
		}
		downloadURL = manifest.DownloadURL
	}

	orgID := p.identity.OrganizationID()
	entityIDs, err := cloud.NewClient(ch).AddFiles(ctx, auth, orgID, []string{downloadURL})
	if err != nil {
		p.logger.Error("organization binding failed",
			zap.String("file", req.FileName),
			zap.Int64("organization_id", orgID),
			zap.Error(err))
		return nil, err
	}

	p.logger.Info("file added to shared cloud",
		zap.String("file", req.FileName),
		zap.String("url", downloadURL),
		zap.Int64("organization_id", orgID),
		zap.Bool("deduplicated", deduplicated))

	return &Result{
		DownloadURL:  downloadURL,
		EntityIDs:    entityIDs,
		Deduplicated: deduplicated,
	}, nil
}

// UploadString uploads UTF-8 encoded text content.
func (p *Pipeline) UploadString(ctx context.Context, fileName, mediaType, data string) (*Result, error) {
	return p.Upload(ctx, Request{FileName: fileName, MediaType: mediaType, Data: []byte(data)})
}

func validate(req Request) error {
	if req.FileName == "" {
		return &ValidationError{Field: "FileName", Message: "file name is required"}
	}
	if len(req.Data) == 0 {
		return &ValidationError{Field: "Data", Message: "payload must not be empty"}
	}
	if int64(len(req.Data)) > avnfs.MaxSinglePartUploadSize {
		return &ValidationError{Field: "Data", Message: "payload exceeds single-part upload limit"}
	}
	return nil
}
