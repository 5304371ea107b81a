// Package avnfs is the client for the AVNFS file store: it negotiates
// uploads with the backend and executes the resulting HTTP transfer.
package avnfs

import (
	"context"

	"github.com/classvr/avncloud/pkg/rpc"
)

const serviceName = "avn.connect.v1.AvnfsService"

// FileSignature identifies a candidate upload to the backend. The
// filename, media type, content hash, and size together form the
// deduplication signature.
type FileSignature struct {
	FileName  string `json:"fileName"`
	MediaType string `json:"mediaType"`
	Hash      string `json:"hash"`
	SizeBytes int64  `json:"sizeBytes"`
}

// HeaderField is one backend-mandated header for the HTTP transfer.
// Order is significant and must be preserved.
type HeaderField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UploadManifest is the backend's instructions for a single-shot
// upload. It is produced once per non-duplicate upload and consumed
// exactly once by Uploader.Upload.
type UploadManifest struct {
	UploadURL    string        `json:"uploadUrl"`
	DownloadURL  string        `json:"downloadUrl"`
	HeaderFields []HeaderField `json:"headerFields"`
}

type getFileURLRequest struct {
	Hash      string `json:"hash"`
	SizeBytes int64  `json:"sizeBytes"`
	MediaType string `json:"mediaType"`
	FileName  string `json:"fileName"`
}

type getFileURLResponse struct {
	URL string `json:"url,omitempty"`
}

type getManifestRequest struct {
	Auth      rpc.Authorization `json:"auth"`
	FileName  string            `json:"fileName"`
	Hash      string            `json:"hash"`
	MediaType string            `json:"mediaType"`
	SizeBytes int64             `json:"sizeBytes"`
}

// Client negotiates uploads over an AVNFS service channel.
type Client struct {
	ch *rpc.Channel
}

// NewClient wraps a channel. Clients are cheap; construct one per call
// site as needed.
func NewClient(ch *rpc.Channel) *Client {
	return &Client{ch: ch}
}

// CheckExisting asks whether content with this signature is already
// stored. A non-empty URL is a dedup hit: the bytes must not be
// uploaded again. An empty URL with nil error is a miss.
func (c *Client) CheckExisting(ctx context.Context, sig FileSignature) (string, error) {
	req := getFileURLRequest{
		Hash:      sig.Hash,
		SizeBytes: sig.SizeBytes,
		MediaType: sig.MediaType,
		FileName:  sig.FileName,
	}
	var resp getFileURLResponse
	if err := c.ch.Invoke(ctx, serviceName+"/GetFileUrl", req, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// NegotiateManifest requests transfer instructions for new content.
// The returned manifest must be honored exactly, header order included.
func (c *Client) NegotiateManifest(ctx context.Context, sig FileSignature, auth rpc.Authorization) (*UploadManifest, error) {
	req := getManifestRequest{
		Auth:      auth,
		FileName:  sig.FileName,
		Hash:      sig.Hash,
		MediaType: sig.MediaType,
		SizeBytes: sig.SizeBytes,
	}
	var manifest UploadManifest
	if err := c.ch.Invoke(ctx, serviceName+"/GetPostManifest", req, &manifest); err != nil {
		return nil, err
	}
	// A manifest without both URLs completed at the RPC layer but is
	// unusable; treat it as a failure of the negotiation.
	if manifest.UploadURL == "" || manifest.DownloadURL == "" {
		return nil, ErrIncompleteManifest
	}
	return &manifest, nil
}
