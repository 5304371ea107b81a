package avnfs

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// MaxSinglePartUploadSize is the largest payload AVNFS accepts in one
// request (5 GiB). Larger content would need multi-part transfer, which
// this client does not implement.
const MaxSinglePartUploadSize int64 = 5 << 30

// requestHeaderPrefix partitions manifest header fields. Fields whose
// name starts with this prefix (case-insensitive) are transport-level
// and belong on the request; everything else describes the entity and
// belongs with the content. Strict HTTP stacks reject transfers that
// violate the split.
const requestHeaderPrefix = "cache"

// Uploader executes the raw HTTP transfer described by a manifest.
type Uploader struct {
	client *http.Client
	logger *zap.Logger
}

// UploaderOption configures an Uploader.
type UploaderOption func(*Uploader)

// WithHTTPClient sets the client used for the transfer request.
func WithHTTPClient(client *http.Client) UploaderOption {
	return func(u *Uploader) {
		u.client = client
	}
}

// WithLogger sets the transfer logger.
func WithLogger(logger *zap.Logger) UploaderOption {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// NewUploader creates an Uploader.
func NewUploader(opts ...UploaderOption) *Uploader {
	u := &Uploader{
		client: http.DefaultClient,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload POSTs data to the manifest's upload target in a single shot.
// Success is defined purely by a 2xx status; anything else is a
// *TransferError carrying the status and any backend-provided error
// text. No retry, no chunking.
func (u *Uploader) Upload(ctx context.Context, m *UploadManifest, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.UploadURL, bytes.NewReader(data))
	if err != nil {
		return &TransferError{Err: err}
	}
	req.ContentLength = int64(len(data))

	requestHeaders, contentHeaders := splitHeaderFields(m.HeaderFields)
	applyHeaders(req, requestHeaders)
	applyHeaders(req, contentHeaders)

	resp, err := u.client.Do(req)
	if err != nil {
		u.logger.Debug("transfer failed", zap.String("url", m.UploadURL), zap.Error(err))
		return &TransferError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		u.logger.Debug("transfer rejected",
			zap.String("url", m.UploadURL),
			zap.Int("status", resp.StatusCode),
			zap.Int("size", len(data)))
		return &TransferError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	u.logger.Debug("transfer complete",
		zap.String("url", m.UploadURL),
		zap.Int("bytes", len(data)))
	return nil
}

// splitHeaderFields partitions manifest header fields into request
// headers and content headers per the prefix rule, preserving the
// manifest's field order within each group.
func splitHeaderFields(fields []HeaderField) (request, content []HeaderField) {
	for _, f := range fields {
		if isRequestHeader(f.Name) {
			request = append(request, f)
		} else {
			content = append(content, f)
		}
	}
	return request, content
}

func isRequestHeader(name string) bool {
	return len(name) >= len(requestHeaderPrefix) &&
		strings.EqualFold(name[:len(requestHeaderPrefix)], requestHeaderPrefix)
}

func applyHeaders(req *http.Request, fields []HeaderField) {
	for _, f := range fields {
		req.Header.Set(f.Name, f.Value)
	}
}
