package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/classvr/avncloud/pkg/avnfs"
	"github.com/classvr/avncloud/pkg/cloud"
	"github.com/classvr/avncloud/pkg/rpc"
	"github.com/classvr/avncloud/pkg/upload"
)

// maxRequestBody caps uploads accepted over the HTTP facade. The
// facade buffers the body in memory, so it stays well below the
// backend's 5 GiB single-shot ceiling.
const maxRequestBody = 256 << 20

// FilesHandler runs the upload pipeline for POST /v1/files.
//
// The file bytes are the raw request body; the registered name comes
// from the "filename" query parameter and the media type from the
// Content-Type header.
type FilesHandler struct {
	Pipeline *upload.Pipeline
	Logger   *zap.Logger
}

// UploadResponse is the JSON body for a successful upload.
type UploadResponse struct {
	DownloadURL  string  `json:"download_url"`
	EntityIDs    []int64 `json:"entity_ids"`
	Deduplicated bool    `json:"deduplicated"`
}

// ServeHTTP implements http.Handler.
func (h *FilesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Pipeline == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "upload pipeline not configured")
		return
	}

	fileName := r.URL.Query().Get("filename")
	if fileName == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "filename query parameter is required")
		return
	}
	mediaType := r.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		WriteError(w, http.StatusRequestEntityTooLarge, "VALIDATION", "request body too large or unreadable")
		return
	}

	result, err := h.Pipeline.Upload(r.Context(), upload.Request{
		FileName:  fileName,
		MediaType: mediaType,
		Data:      data,
	})
	if err != nil {
		h.Logger.Error("upload failed", zap.String("file", fileName), zap.Error(err))
		writeUploadError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(UploadResponse{
		DownloadURL:  result.DownloadURL,
		EntityIDs:    result.EntityIDs,
		Deduplicated: result.Deduplicated,
	})
}

// writeUploadError maps pipeline failures onto HTTP statuses.
func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case upload.IsValidation(err):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error())
	case avnfs.IsTransfer(err):
		WriteError(w, http.StatusBadGateway, "TRANSFER", err.Error())
	case rpc.IsTransport(err), errors.Is(err, cloud.ErrNoEntities), errors.Is(err, avnfs.ErrIncompleteManifest):
		WriteError(w, http.StatusBadGateway, "TRANSPORT", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}
