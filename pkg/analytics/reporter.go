// Package analytics reports device events to the backend.
//
// Events are fire-and-forget from the caller's point of view, but each
// Send call completes or fails deterministically: local validation,
// one credential fetch on first use, one RecordAction call, no retry.
package analytics

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/classvr/avncloud/pkg/identity"
	"github.com/classvr/avncloud/pkg/rpc"
)

// MaxEventDataSize is the hard cap on an event's serialized data, in
// bytes. The boundary is inclusive: exactly MaxEventDataSize is
// accepted. Oversized data is rejected locally with no RPC issued.
const MaxEventDataSize = 2048

// Event is one analytics record. SourceID and ActionID should be in
// snake_case.
type Event struct {
	SourceID string
	ActionID string

	// Data is an optional structured payload. Its JSON serialization
	// must not exceed MaxEventDataSize bytes.
	Data map[string]any

	// Environment selects the backend; empty means Production.
	Environment rpc.Environment
}

type recordActionRequest struct {
	Client   *Credentials      `json:"client"`
	ActionID string            `json:"actionId"`
	SourceID string            `json:"sourceId"`
	HostID   string            `json:"hostId"`
	Auth     rpc.Authorization `json:"auth"`
	Data     json.RawMessage   `json:"data,omitempty"`
}

// Reporter submits analytics events. It shares one CredentialCache
// across all calls and is safe for concurrent use.
type Reporter struct {
	channels *rpc.Provider
	identity identity.Provider
	hostID   string
	creds    *CredentialCache
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithRateLimit throttles event submission client-side. Send waits for
// a token before issuing the RPC, honoring the call's context. Zero or
// negative eventsPerSec disables the limiter.
func WithRateLimit(eventsPerSec float64, burst int) ReporterOption {
	return func(r *Reporter) {
		if eventsPerSec > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(eventsPerSec), burst)
		}
	}
}

// WithReporterLogger sets the reporter logger.
func WithReporterLogger(logger *zap.Logger) ReporterOption {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// NewReporter creates a Reporter. hostID identifies the reporting
// application (package identifier).
func NewReporter(channels *rpc.Provider, id identity.Provider, hostID string, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		channels: channels,
		identity: id,
		hostID:   hostID,
		creds:    NewCredentialCache(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send submits one event. Validation failures (oversized data, missing
// device token) are reported without any network traffic.
func (r *Reporter) Send(ctx context.Context, ev Event) error {
	var data json.RawMessage
	if len(ev.Data) > 0 {
		serialized, err := json.Marshal(ev.Data)
		if err != nil {
			return &ValidationError{Field: "Data", Message: "data is not serializable: " + err.Error()}
		}
		if len(serialized) > MaxEventDataSize {
			r.logger.Error("event data too large",
				zap.String("source_id", ev.SourceID),
				zap.String("action_id", ev.ActionID),
				zap.Int("size", len(serialized)))
			return &ValidationError{Field: "Data", Message: "serialized data exceeds 2048 bytes"}
		}
		data = serialized
	}

	token := r.identity.DeviceToken()
	if token == "" {
		return &ValidationError{Field: "DeviceToken", Message: "device token is required for analytics"}
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	env := ev.Environment
	if env == "" {
		env = rpc.Production
	}
	ch, err := r.channels.ChannelFor(env)
	if err != nil {
		return err
	}

	creds, err := r.creds.Get(ctx, env, ch)
	if err != nil {
		r.logger.Error("credential fetch failed",
			zap.String("source_id", ev.SourceID),
			zap.String("action_id", ev.ActionID),
			zap.Error(err))
		return err
	}

	req := recordActionRequest{
		Client:   creds,
		ActionID: ev.ActionID,
		SourceID: ev.SourceID,
		HostID:   r.hostID,
		Auth:     rpc.Authorization{DeviceJWT: token},
		Data:     data,
	}

	// RecordAction has no response payload; an error return is the
	// only failure signal.
	if err := ch.Invoke(ctx, clientServiceName+"/RecordAction", req, nil); err != nil {
		r.logger.Error("event send failed",
			zap.String("source_id", ev.SourceID),
			zap.String("action_id", ev.ActionID),
			zap.Error(err))
		return err
	}

	r.logger.Debug("event sent",
		zap.String("source_id", ev.SourceID),
		zap.String("action_id", ev.ActionID))
	return nil
}

// SendStrings converts a flat string map into the generic structured
// form and delegates to Send.
func (r *Reporter) SendStrings(ctx context.Context, sourceID, actionID string, data map[string]string, env rpc.Environment) error {
	var generic map[string]any
	if len(data) > 0 {
		generic = make(map[string]any, len(data))
		for k, v := range data {
			generic[k] = v
		}
	}
	return r.Send(ctx, Event{SourceID: sourceID, ActionID: actionID, Data: generic, Environment: env})
}
