package analytics_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classvr/avncloud/pkg/analytics"
	"github.com/classvr/avncloud/pkg/identity"
	"github.com/classvr/avncloud/test/cloudtest"
)

const testHostID = "com.classvr.portal"

func newReporter(backend *cloudtest.Backend) *analytics.Reporter {
	return analytics.NewReporter(backend.Channels(), identity.NewStatic(42, "device-jwt"), testHostID)
}

// payloadOfSize builds a map whose JSON serialization is exactly n
// bytes: {"k":"vvv...v"}.
func payloadOfSize(t *testing.T, n int) map[string]any {
	t.Helper()
	overhead := len(`{"k":""}`)
	require.Greater(t, n, overhead)
	data := map[string]any{"k": strings.Repeat("v", n-overhead)}
	serialized, err := json.Marshal(data)
	require.NoError(t, err)
	require.Len(t, serialized, n)
	return data
}

func TestSend(t *testing.T) {
	backend := cloudtest.New(t)
	reporter := newReporter(backend)

	err := reporter.Send(context.Background(), analytics.Event{
		SourceID: "com.classvr.portal",
		ActionID: "lesson_started",
		Data:     map[string]any{"lesson": "volcanoes", "seats": 12},
	})
	require.NoError(t, err)

	events := backend.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "com.classvr.portal", events[0].SourceID)
	assert.Equal(t, "lesson_started", events[0].ActionID)
	assert.Equal(t, testHostID, events[0].HostID)
	assert.Equal(t, "device-jwt", events[0].Auth)

	var data map[string]any
	require.NoError(t, json.Unmarshal(events[0].Data, &data))
	assert.Equal(t, "volcanoes", data["lesson"])
}

func TestSendWithoutData(t *testing.T) {
	backend := cloudtest.New(t)
	reporter := newReporter(backend)

	err := reporter.Send(context.Background(), analytics.Event{
		SourceID: "com.classvr.portal",
		ActionID: "app_opened",
	})
	require.NoError(t, err)
	require.Len(t, backend.Events(), 1)
	assert.Empty(t, backend.Events()[0].Data)
}

func TestSendDataAtLimit(t *testing.T) {
	backend := cloudtest.New(t)
	reporter := newReporter(backend)

	err := reporter.Send(context.Background(), analytics.Event{
		SourceID: "com.classvr.portal",
		ActionID: "big_payload",
		Data:     payloadOfSize(t, analytics.MaxEventDataSize),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Counters().RecordAction)
}

func TestSendDataOverLimit(t *testing.T) {
	backend := cloudtest.New(t)
	reporter := newReporter(backend)

	err := reporter.Send(context.Background(), analytics.Event{
		SourceID: "com.classvr.portal",
		ActionID: "big_payload",
		Data:     payloadOfSize(t, analytics.MaxEventDataSize+1),
	})
	require.Error(t, err)
	assert.True(t, analytics.IsValidation(err))

	// Oversized data is rejected before any network traffic, the
	// credential fetch included.
	counters := backend.Counters()
	assert.Equal(t, 0, counters.CreateCredentials)
	assert.Equal(t, 0, counters.RecordAction)
}

func TestSendRequiresDeviceToken(t *testing.T) {
	backend := cloudtest.New(t)
	reporter := analytics.NewReporter(backend.Channels(), identity.NewStatic(42, ""), testHostID)

	err := reporter.Send(context.Background(), analytics.Event{
		SourceID: "com.classvr.portal",
		ActionID: "app_opened",
	})
	require.Error(t, err)
	assert.True(t, analytics.IsValidation(err))
	assert.Equal(t, 0, backend.Counters().CreateCredentials)
}

func TestSendReusesCredentials(t *testing.T) {
	backend := cloudtest.New(t)
	reporter := newReporter(backend)

	for i := 0; i < 5; i++ {
		err := reporter.Send(context.Background(), analytics.Event{
			SourceID: "com.classvr.portal",
			ActionID: "heartbeat",
		})
		require.NoError(t, err)
	}

	counters := backend.Counters()
	assert.Equal(t, 1, counters.CreateCredentials)
	assert.Equal(t, 5, counters.RecordAction)

	// Every event carries the same cached client id.
	events := backend.Events()
	require.Len(t, events, 5)
	for _, ev := range events {
		assert.Equal(t, events[0].ClientID, ev.ClientID)
	}
}

func TestSendCredentialFailureRetries(t *testing.T) {
	backend := cloudtest.New(t)
	reporter := newReporter(backend)

	backend.FailCredentials = true
	err := reporter.Send(context.Background(), analytics.Event{
		SourceID: "com.classvr.portal",
		ActionID: "app_opened",
	})
	require.Error(t, err)
	assert.Equal(t, 0, backend.Counters().RecordAction)

	// A failed fetch does not poison the cache.
	backend.FailCredentials = false
	err = reporter.Send(context.Background(), analytics.Event{
		SourceID: "com.classvr.portal",
		ActionID: "app_opened",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, backend.Counters().RecordAction)
}

func TestSendStrings(t *testing.T) {
	backend := cloudtest.New(t)
	reporter := newReporter(backend)

	err := reporter.SendStrings(context.Background(), "com.classvr.portal", "lesson_started",
		map[string]string{"lesson": "volcanoes"}, "")
	require.NoError(t, err)

	events := backend.Events()
	require.Len(t, events, 1)

	var data map[string]string
	require.NoError(t, json.Unmarshal(events[0].Data, &data))
	assert.Equal(t, "volcanoes", data["lesson"])
}
