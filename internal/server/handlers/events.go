package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/classvr/avncloud/pkg/analytics"
	"github.com/classvr/avncloud/pkg/rpc"
)

// EventRequest is the JSON body for POST /v1/events.
type EventRequest struct {
	SourceID    string         `json:"source_id"`
	ActionID    string         `json:"action_id"`
	Data        map[string]any `json:"data,omitempty"`
	Environment string         `json:"environment,omitempty"`
}

// EventsHandler submits analytics events for POST /v1/events.
type EventsHandler struct {
	Reporter *analytics.Reporter
	Logger   *zap.Logger
}

// ServeHTTP implements http.Handler.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Reporter == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "analytics reporter not configured")
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body: "+err.Error())
		return
	}
	if req.SourceID == "" || req.ActionID == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "source_id and action_id are required")
		return
	}

	env, err := rpc.ParseEnvironment(req.Environment)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	err = h.Reporter.Send(r.Context(), analytics.Event{
		SourceID:    req.SourceID,
		ActionID:    req.ActionID,
		Data:        req.Data,
		Environment: env,
	})
	if err != nil {
		h.Logger.Error("event submit failed",
			zap.String("source_id", req.SourceID),
			zap.String("action_id", req.ActionID),
			zap.Error(err))
		switch {
		case analytics.IsValidation(err):
			WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		case rpc.IsTransport(err):
			WriteError(w, http.StatusBadGateway, "TRANSPORT", err.Error())
		default:
			WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		}
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
