// Package rpc provides cached channels to the AVN Cloud backend.
//
// A Channel is an opaque handle to one backend environment. Service
// clients issue unary calls through Channel.Invoke, which posts a JSON
// request body to /<service>/<method> on the environment endpoint and
// decodes the JSON response. Channels are expensive to set up relative
// to the calls made over them, so Provider caches one per environment
// for the lifetime of the process.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Environment selects which backend deployment a channel talks to.
type Environment string

const (
	// Production is the live backend. It is the default everywhere an
	// Environment is optional.
	Production Environment = "production"

	// Alpha is the pre-release backend.
	Alpha Environment = "alpha"
)

// Default endpoints per environment.
const (
	ProductionEndpoint = "https://gweb.avncloud.com:443"
	AlphaEndpoint      = "https://gweb-alpha.avncloud.com:443"
)

// ParseEnvironment maps a configuration string to an Environment.
// The empty string maps to Production.
func ParseEnvironment(s string) (Environment, error) {
	switch s {
	case "", string(Production):
		return Production, nil
	case string(Alpha):
		return Alpha, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEnvironment, s)
	}
}

// Authorization is the per-call proof of device identity. It is built
// fresh from the device token for every call and never cached.
type Authorization struct {
	DeviceJWT string `json:"deviceJwt"`
}

// Channel is a reusable handle to one backend environment.
type Channel struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// Endpoint returns the base URL this channel targets.
func (c *Channel) Endpoint() string {
	return c.endpoint
}

// Invoke performs one unary call. method is the full service-qualified
// name, e.g. "avn.connect.v1.AvnfsService/GetFileUrl". req is
// marshaled as the JSON request body; the response body is unmarshaled
// into resp unless resp is nil. Any connection fault or non-2xx status
// is returned as a *TransportError.
func (c *Channel) Invoke(ctx context.Context, method string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return &TransportError{Method: method, Err: fmt.Errorf("marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+method, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Method: method, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Debug("rpc call failed", zap.String("method", method), zap.Error(err))
		return &TransportError{Method: method, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Method: method, StatusCode: httpResp.StatusCode, Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		terr := &TransportError{Method: method, StatusCode: httpResp.StatusCode}
		// The backend reports failures as a JSON status body; fall back
		// to the raw body when it is anything else.
		var status struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &status) == nil && status.Message != "" {
			terr.Code = status.Code
			terr.Message = status.Message
		} else {
			terr.Message = string(respBody)
		}
		c.logger.Debug("rpc call rejected",
			zap.String("method", method),
			zap.Int("status", httpResp.StatusCode),
			zap.String("message", terr.Message))
		return terr
	}

	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, resp); err != nil {
		return &TransportError{Method: method, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// maxResponseBytes bounds RPC response bodies. Responses are small
// control messages; the limit exists so a misbehaving endpoint cannot
// exhaust memory.
const maxResponseBytes = 1 << 20

// Provider resolves environments to cached channels.
//
// The first ChannelFor call per environment constructs the channel;
// later calls return the same handle. Channels are never torn down.
// Provider is safe for concurrent use.
type Provider struct {
	mu        sync.Mutex
	endpoints map[Environment]string
	channels  map[Environment]*Channel
	client    *http.Client
	logger    *zap.Logger
}

// Option configures a Provider.
type Option func(*Provider)

// WithEndpoint overrides the endpoint for an environment. Used by
// configuration and tests; defaults point at the live backend.
func WithEndpoint(env Environment, url string) Option {
	return func(p *Provider) {
		p.endpoints[env] = url
	}
}

// WithHTTPClient sets the HTTP client used by all channels.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// WithLogger sets the logger passed to channels.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a channel provider with default endpoints.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		endpoints: map[Environment]string{
			Production: ProductionEndpoint,
			Alpha:      AlphaEndpoint,
		},
		channels: make(map[Environment]*Channel),
		client:   http.DefaultClient,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ChannelFor returns the cached channel for env, constructing it on
// first use.
func (p *Provider) ChannelFor(env Environment) (*Channel, error) {
	if env == "" {
		env = Production
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if ch, ok := p.channels[env]; ok {
		return ch, nil
	}

	endpoint, ok := p.endpoints[env]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}

	ch := &Channel{
		endpoint: endpoint,
		client:   p.client,
		logger:   p.logger.With(zap.String("environment", string(env))),
	}
	p.channels[env] = ch
	return ch, nil
}
