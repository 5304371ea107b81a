package analytics

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/classvr/avncloud/pkg/rpc"
)

const clientServiceName = "avn.connect.v1.ClientService"

// ErrNoCredentials indicates the backend answered the credential
// request without credentials in the response.
var ErrNoCredentials = errors.New("backend returned no client credentials")

// Credentials identify this application to the backend.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type createClientCredentialsRequest struct{}

type createClientCredentialsResponse struct {
	ClientCredentials *Credentials `json:"clientCredentials"`
}

// CredentialCache holds client credentials for the lifetime of the
// process, fetching them at most once per environment. Concurrent
// first callers share a single in-flight fetch; a failed fetch leaves
// the cache empty so the next call retries.
type CredentialCache struct {
	mu     sync.Mutex
	byEnv  map[rpc.Environment]*Credentials
	flight singleflight.Group
}

// NewCredentialCache creates an empty cache.
func NewCredentialCache() *CredentialCache {
	return &CredentialCache{byEnv: make(map[rpc.Environment]*Credentials)}
}

// Get returns the cached credentials for the channel's environment,
// issuing one CreateClientCredentials call on first use.
func (c *CredentialCache) Get(ctx context.Context, env rpc.Environment, ch *rpc.Channel) (*Credentials, error) {
	c.mu.Lock()
	if creds, ok := c.byEnv[env]; ok {
		c.mu.Unlock()
		return creds, nil
	}
	c.mu.Unlock()

	v, err, _ := c.flight.Do(string(env), func() (any, error) {
		var resp createClientCredentialsResponse
		if err := ch.Invoke(ctx, clientServiceName+"/CreateClientCredentials", createClientCredentialsRequest{}, &resp); err != nil {
			return nil, err
		}
		if resp.ClientCredentials == nil {
			return nil, ErrNoCredentials
		}
		c.mu.Lock()
		c.byEnv[env] = resp.ClientCredentials
		c.mu.Unlock()
		return resp.ClientCredentials, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credentials), nil
}
