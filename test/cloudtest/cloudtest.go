// Package cloudtest provides an in-process fake of the AVN Cloud
// backend for tests: the five RPC methods plus the HTTP upload target
// that manifests point at.
//
// Usage:
//
//	backend := cloudtest.New(t)
//	pipeline := upload.New(backend.Channels(), identity.NewStatic(42, "jwt"))
//	// ... test code ...
//
// The fake records call counts so tests can assert dedup and
// credential-reuse behavior.
package cloudtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/classvr/avncloud/pkg/rpc"
)

// Paths served by the fake backend.
const (
	pathGetFileURL        = "/avn.connect.v1.AvnfsService/GetFileUrl"
	pathGetPostManifest   = "/avn.connect.v1.AvnfsService/GetPostManifest"
	pathAddCloudFiles     = "/avn.connect.v1.CloudService/AddCloudFiles"
	pathCreateCredentials = "/avn.connect.v1.ClientService/CreateClientCredentials"
	pathRecordAction      = "/avn.connect.v1.ClientService/RecordAction"
	uploadPrefix          = "/avnfs/upload/"
)

// Counters tracks how many times each backend operation was hit.
type Counters struct {
	GetFileURL        int
	GetPostManifest   int
	AddCloudFiles     int
	CreateCredentials int
	RecordAction      int
	Transfers         int
}

// RecordedEvent is one RecordAction call seen by the fake.
type RecordedEvent struct {
	ClientID string
	SourceID string
	ActionID string
	HostID   string
	Auth     string
	Data     json.RawMessage
}

// StoredObject is one payload the fake received over HTTP.
type StoredObject struct {
	Body    []byte
	Headers http.Header
}

// Backend is the fake AVN Cloud server.
type Backend struct {
	srv *httptest.Server

	mu       sync.Mutex
	counters Counters
	// objects maps content hash to the download URL it was stored at.
	objects map[string]string
	// pending maps content hash to the download URL promised by a
	// manifest; the object registers on transfer completion.
	pending   map[string]string
	stored    map[string]StoredObject
	events    []RecordedEvent
	entitySeq int64

	// Failure switches, settable by tests.
	FailGetFileURL      bool
	FailGetPostManifest bool
	FailTransfer        bool
	FailAddCloudFiles   bool
	EmptyEntityIDs      bool
	FailCredentials     bool
	EmptyManifest       bool
}

// New starts a fake backend and registers cleanup with t.
func New(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		objects: make(map[string]string),
		pending: make(map[string]string),
		stored:  make(map[string]StoredObject),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.srv.Close)
	return b
}

// URL returns the backend's base URL.
func (b *Backend) URL() string {
	return b.srv.URL
}

// Channels returns a channel provider with both environments pointed
// at this fake.
func (b *Backend) Channels() *rpc.Provider {
	return rpc.NewProvider(
		rpc.WithEndpoint(rpc.Production, b.srv.URL),
		rpc.WithEndpoint(rpc.Alpha, b.srv.URL),
	)
}

// Counters returns a snapshot of the call counters.
func (b *Backend) Counters() Counters {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counters
}

// Events returns the RecordAction calls seen so far.
func (b *Backend) Events() []RecordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Object returns the stored payload for a content hash.
func (b *Backend) Object(hash string) (StoredObject, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.stored[hash]
	return obj, ok
}

// Seed registers content as already stored so GetFileUrl reports a
// dedup hit without any transfer.
func (b *Backend) Seed(hash, downloadURL string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[hash] = downloadURL
}

// DownloadURL returns the URL the fake hands out for a content hash.
func (b *Backend) DownloadURL(hash string) string {
	return "https://cdn.example/" + hash
}

func (b *Backend) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := r.URL.Path
	if len(path) > len(uploadPrefix) && path[:len(uploadPrefix)] == uploadPrefix {
		b.handleTransfer(w, r, path[len(uploadPrefix):])
		return
	}

	switch path {
	case pathGetFileURL:
		b.handleGetFileURL(w, r)
	case pathGetPostManifest:
		b.handleGetPostManifest(w, r)
	case pathAddCloudFiles:
		b.handleAddCloudFiles(w, r)
	case pathCreateCredentials:
		b.handleCreateCredentials(w)
	case pathRecordAction:
		b.handleRecordAction(w, r)
	default:
		http.NotFound(w, r)
	}
}

func rpcError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *Backend) handleGetFileURL(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.counters.GetFileURL++
	fail := b.FailGetFileURL
	b.mu.Unlock()
	if fail {
		rpcError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "file store unavailable")
		return
	}

	var req struct {
		Hash string `json:"hash"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rpcError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}

	b.mu.Lock()
	url, ok := b.objects[req.Hash]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, struct{}{})
		return
	}
	writeJSON(w, map[string]string{"url": url})
}

func (b *Backend) handleGetPostManifest(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.counters.GetPostManifest++
	fail := b.FailGetPostManifest
	empty := b.EmptyManifest
	b.mu.Unlock()
	if fail {
		rpcError(w, http.StatusForbidden, "PERMISSION_DENIED", "manifest denied")
		return
	}
	if empty {
		writeJSON(w, struct{}{})
		return
	}

	var req struct {
		Hash      string `json:"hash"`
		MediaType string `json:"mediaType"`
		Auth      struct {
			DeviceJWT string `json:"deviceJwt"`
		} `json:"auth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rpcError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	if req.Auth.DeviceJWT == "" {
		rpcError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing device jwt")
		return
	}

	downloadURL := b.DownloadURL(req.Hash)
	b.mu.Lock()
	b.pending[req.Hash] = downloadURL
	b.mu.Unlock()

	writeJSON(w, map[string]any{
		"uploadUrl":   b.srv.URL + uploadPrefix + req.Hash,
		"downloadUrl": downloadURL,
		"headerFields": []map[string]string{
			{"name": "Cache-Control", "value": "max-age=31536000"},
			{"name": "Content-Type", "value": req.MediaType},
		},
	})
}

func (b *Backend) handleTransfer(w http.ResponseWriter, r *http.Request, hash string) {
	b.mu.Lock()
	b.counters.Transfers++
	fail := b.FailTransfer
	b.mu.Unlock()
	if fail {
		http.Error(w, "storage backend refused the object", http.StatusBadGateway)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.stored[hash] = StoredObject{Body: body, Headers: r.Header.Clone()}
	if url, ok := b.pending[hash]; ok {
		b.objects[hash] = url
		delete(b.pending, hash)
	}
	b.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (b *Backend) handleAddCloudFiles(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.counters.AddCloudFiles++
	fail := b.FailAddCloudFiles
	empty := b.EmptyEntityIDs
	b.mu.Unlock()
	if fail {
		rpcError(w, http.StatusInternalServerError, "INTERNAL", "bind failed")
		return
	}
	if empty {
		writeJSON(w, map[string]any{"entityIds": []int64{}})
		return
	}

	var req struct {
		OrganizationID int64    `json:"organizationId"`
		FileURLs       []string `json:"fileUrls"`
		Auth           struct {
			DeviceJWT string `json:"deviceJwt"`
		} `json:"auth"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rpcError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	if req.Auth.DeviceJWT == "" {
		rpcError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing device jwt")
		return
	}
	if len(req.FileURLs) == 0 {
		rpcError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "no file urls")
		return
	}

	b.mu.Lock()
	ids := make([]int64, 0, len(req.FileURLs))
	for range req.FileURLs {
		b.entitySeq++
		ids = append(ids, b.entitySeq)
	}
	b.mu.Unlock()

	writeJSON(w, map[string]any{"entityIds": ids})
}

func (b *Backend) handleCreateCredentials(w http.ResponseWriter) {
	b.mu.Lock()
	b.counters.CreateCredentials++
	fail := b.FailCredentials
	n := b.counters.CreateCredentials
	b.mu.Unlock()
	if fail {
		rpcError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "credential service unavailable")
		return
	}

	writeJSON(w, map[string]any{
		"clientCredentials": map[string]string{
			"clientId":     fmt.Sprintf("test-client-%d", n),
			"clientSecret": "test-secret",
		},
	})
}

func (b *Backend) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Client *struct {
			ClientID string `json:"clientId"`
		} `json:"client"`
		ActionID string `json:"actionId"`
		SourceID string `json:"sourceId"`
		HostID   string `json:"hostId"`
		Auth     struct {
			DeviceJWT string `json:"deviceJwt"`
		} `json:"auth"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rpcError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	if req.Client == nil || req.Client.ClientID == "" {
		rpcError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing client credentials")
		return
	}

	ev := RecordedEvent{
		ClientID: req.Client.ClientID,
		SourceID: req.SourceID,
		ActionID: req.ActionID,
		HostID:   req.HostID,
		Auth:     req.Auth.DeviceJWT,
		Data:     req.Data,
	}

	b.mu.Lock()
	b.counters.RecordAction++
	b.events = append(b.events, ev)
	b.mu.Unlock()

	writeJSON(w, struct{}{})
}
