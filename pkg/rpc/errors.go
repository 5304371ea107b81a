package rpc

import (
	"errors"
	"fmt"
)

// ErrUnknownEnvironment indicates an environment selector with no
// configured endpoint.
var ErrUnknownEnvironment = errors.New("unknown environment")

// TransportError reports an RPC-layer failure: a connection fault or a
// non-2xx status from the backend. Callers treat it as fatal for the
// operation that triggered it; no retry is attempted at this layer.
type TransportError struct {
	// Method is the service-qualified method name.
	Method string

	// StatusCode is the HTTP status, zero when the call never reached
	// the backend.
	StatusCode int

	// Code is the backend-provided status code, if any.
	Code string

	// Message is the backend-provided detail, if any.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("rpc %s: %v", e.Method, e.Err)
	case e.Code != "":
		return fmt.Sprintf("rpc %s: status %d (%s): %s", e.Method, e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("rpc %s: status %d: %s", e.Method, e.StatusCode, e.Message)
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport returns true if the error is an RPC transport failure.
func IsTransport(err error) bool {
	var terr *TransportError
	return errors.As(err, &terr)
}
