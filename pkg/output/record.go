// Package output provides JSONL output for command results.
//
// Output is structured as typed record envelopes. Each line is a
// self-contained JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: avncloud.<type>.v<version>
const (
	// TypeUpload identifies completed upload records.
	TypeUpload = "avncloud.upload.v1"

	// TypeEvent identifies submitted analytics event records.
	TypeEvent = "avncloud.event.v1"

	// TypeError identifies error records.
	TypeError = "avncloud.error.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "avncloud.upload.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this invocation.
	JobID string `json:"job_id"`

	// Environment is the backend environment the command targeted.
	Environment string `json:"environment"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// UploadRecord is the data payload for a completed upload.
type UploadRecord struct {
	// FileName is the name the file was registered under.
	FileName string `json:"file_name"`

	// MediaType is the MIME type sent with the upload.
	MediaType string `json:"media_type"`

	// SizeBytes is the payload size.
	SizeBytes int64 `json:"size_bytes"`

	// Hash is the content hash used as the dedup key.
	Hash string `json:"hash"`

	// DownloadURL is where the file can be accessed.
	DownloadURL string `json:"download_url"`

	// EntityIDs are the identifiers created by the organization bind.
	EntityIDs []int64 `json:"entity_ids"`

	// Deduplicated is true when no bytes were transferred.
	Deduplicated bool `json:"deduplicated"`
}

// EventRecord is the data payload for a submitted analytics event.
type EventRecord struct {
	SourceID string `json:"source_id"`
	ActionID string `json:"action_id"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than aborting the whole batch,
// allowing partial results when some uploads fail.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// FileName is the file related to this error, if applicable.
	FileName string `json:"file_name,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeValidation indicates a local precondition violation.
	ErrCodeValidation = "VALIDATION"

	// ErrCodeTransport indicates an RPC-layer failure.
	ErrCodeTransport = "TRANSPORT"

	// ErrCodeTransfer indicates a failed HTTP transfer.
	ErrCodeTransfer = "TRANSFER"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
