package cloud_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classvr/avncloud/pkg/cloud"
	"github.com/classvr/avncloud/pkg/rpc"
	"github.com/classvr/avncloud/test/cloudtest"
)

func newClient(t *testing.T, backend *cloudtest.Backend) *cloud.Client {
	t.Helper()
	ch, err := backend.Channels().ChannelFor(rpc.Production)
	require.NoError(t, err)
	return cloud.NewClient(ch)
}

func TestAddFiles(t *testing.T) {
	backend := cloudtest.New(t)
	client := newClient(t, backend)

	auth := rpc.Authorization{DeviceJWT: "jwt"}
	ids, err := client.AddFiles(context.Background(), auth, 42, []string{
		"https://cdn.example/a",
		"https://cdn.example/b",
	})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, 1, backend.Counters().AddCloudFiles)
}

func TestAddFilesRequiresAuth(t *testing.T) {
	backend := cloudtest.New(t)
	client := newClient(t, backend)

	_, err := client.AddFiles(context.Background(), rpc.Authorization{}, 42, []string{"https://cdn.example/a"})
	require.Error(t, err)
	assert.True(t, rpc.IsTransport(err))
}

func TestAddFilesNoEntities(t *testing.T) {
	backend := cloudtest.New(t)
	backend.EmptyEntityIDs = true
	client := newClient(t, backend)

	auth := rpc.Authorization{DeviceJWT: "jwt"}
	_, err := client.AddFiles(context.Background(), auth, 42, []string{"https://cdn.example/a"})
	require.ErrorIs(t, err, cloud.ErrNoEntities)
}
