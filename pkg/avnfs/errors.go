package avnfs

import (
	"errors"
	"fmt"
)

// ErrIncompleteManifest indicates the backend returned a manifest
// without an upload or download URL. The RPC itself succeeded; the
// result is unusable.
var ErrIncompleteManifest = errors.New("upload manifest missing upload or download URL")

// TransferError reports a failed HTTP transfer: either the request
// never completed (Err set) or the store answered outside the 2xx
// class (StatusCode set).
type TransferError struct {
	// StatusCode is the HTTP status, zero when the request failed
	// before a response arrived.
	StatusCode int

	// Status is the HTTP status line.
	Status string

	// Body is the backend-provided error text, if any.
	Body string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transfer: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("transfer: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("transfer: %s", e.Status)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// IsTransfer returns true if the error is a failed HTTP transfer.
func IsTransfer(err error) bool {
	var terr *TransferError
	return errors.As(err, &terr)
}
