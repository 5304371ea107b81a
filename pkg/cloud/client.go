// Package cloud binds uploaded objects to an organization's shared
// cloud area.
package cloud

import (
	"context"
	"errors"

	"github.com/classvr/avncloud/pkg/rpc"
)

const serviceName = "avn.connect.v1.CloudService"

// ErrNoEntities indicates the backend accepted the bind call but
// created no entities. The RPC succeeded; the binding did not.
var ErrNoEntities = errors.New("no entities created for cloud files")

type addCloudFilesRequest struct {
	Auth           rpc.Authorization `json:"auth"`
	OrganizationID int64             `json:"organizationId"`
	FileURLs       []string          `json:"fileUrls"`
}

type addCloudFilesResponse struct {
	EntityIDs []int64 `json:"entityIds"`
}

// Client issues organization-binding calls over a cloud service
// channel.
type Client struct {
	ch *rpc.Channel
}

// NewClient wraps a channel.
func NewClient(ch *rpc.Channel) *Client {
	return &Client{ch: ch}
}

// AddFiles associates the given download URLs with an organization so
// they appear in its shared cloud area. The backend treats repeated
// binds of the same URL as idempotent. Success requires at least one
// created entity id; an empty list is ErrNoEntities.
func (c *Client) AddFiles(ctx context.Context, auth rpc.Authorization, organizationID int64, urls []string) ([]int64, error) {
	req := addCloudFilesRequest{
		Auth:           auth,
		OrganizationID: organizationID,
		FileURLs:       urls,
	}
	var resp addCloudFilesResponse
	if err := c.ch.Invoke(ctx, serviceName+"/AddCloudFiles", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.EntityIDs) < 1 {
		return nil, ErrNoEntities
	}
	return resp.EntityIDs, nil
}
