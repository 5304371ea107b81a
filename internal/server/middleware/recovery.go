// Package middleware provides HTTP middleware for the facade server.
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse mirrors the handlers' error envelope so recovered
// panics render the same shape.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Recovery converts handler panics into a 500 JSON error response.
func Recovery(next http.Handler) http.Handler {
	return RecoveryWithLogger(next, zap.NewNop())
}

// RecoveryWithLogger is Recovery with panic logging.
func RecoveryWithLogger(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error("handler panicked",
				zap.String("path", r.URL.Path),
				zap.Any("panic", rec))

			var resp ErrorResponse
			resp.Error.Code = "INTERNAL_ERROR"
			resp.Error.Message = fmt.Sprintf("panic: %v", rec)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(resp)
		}()
		next.ServeHTTP(w, r)
	})
}
