package avnfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHeaderFields(t *testing.T) {
	fields := []HeaderField{
		{Name: "Content-Disposition", Value: `attachment; filename="a.pdf"`},
		{Name: "Cache-Control", Value: "max-age=31536000"},
		{Name: "Content-Type", Value: "application/pdf"},
		{Name: "cache-tag", Value: "lesson"},
	}

	request, content := splitHeaderFields(fields)

	require.Len(t, request, 2)
	assert.Equal(t, "Cache-Control", request[0].Name)
	assert.Equal(t, "cache-tag", request[1].Name)

	require.Len(t, content, 2)
	assert.Equal(t, "Content-Disposition", content[0].Name)
	assert.Equal(t, "Content-Type", content[1].Name)
}

func TestIsRequestHeader(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Cache-Control", true},
		{"cache-control", true},
		{"CACHE-TAG", true},
		{"Content-Type", false},
		{"X-Cache", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isRequestHeader(tt.name), "header %q", tt.name)
	}
}

func TestUploadSuccess(t *testing.T) {
	var got struct {
		method string
		header http.Header
		length int64
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.header = r.Header.Clone()
		got.length = r.ContentLength
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	m := &UploadManifest{
		UploadURL:   srv.URL,
		DownloadURL: "https://cdn.example/x",
		HeaderFields: []HeaderField{
			{Name: "Cache-Control", Value: "max-age=60"},
			{Name: "Content-Type", Value: "text/plain"},
		},
	}

	data := []byte("payload bytes")
	err := NewUploader().Upload(context.Background(), m, data)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, int64(len(data)), got.length)
	assert.Equal(t, "max-age=60", got.header.Get("Cache-Control"))
	assert.Equal(t, "text/plain", got.header.Get("Content-Type"))
}

func TestUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "checksum mismatch", http.StatusBadRequest)
	}))
	defer srv.Close()

	m := &UploadManifest{UploadURL: srv.URL, DownloadURL: "https://cdn.example/x"}
	err := NewUploader().Upload(context.Background(), m, []byte("data"))

	require.Error(t, err)
	require.True(t, IsTransfer(err))

	var terr *TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusBadRequest, terr.StatusCode)
	assert.Equal(t, "checksum mismatch", terr.Body)
}

func TestUploadConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	m := &UploadManifest{UploadURL: srv.URL, DownloadURL: "https://cdn.example/x"}
	err := NewUploader().Upload(context.Background(), m, []byte("data"))

	require.Error(t, err)
	assert.True(t, IsTransfer(err))
}
