package orders_api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BearBump/OrderBox/internal/services/orders"
	"github.com/BearBump/OrderBox/internal/services/retention"
	"github.com/BearBump/OrderBox/internal/services/synctime"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response", "error", err.Error())
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, retention.ErrNotFound), errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, retention.ErrAlreadyActive), errors.Is(err, retention.ErrNotEligible):
		return http.StatusConflict
	case errors.Is(err, retention.ErrInvalidID),
		errors.Is(err, orders.ErrInvalidPatch),
		errors.Is(err, synctime.ErrUnknownType),
		errors.Is(err, synctime.ErrEmptyTimestamp):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= 500 {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
	}
	writeJSON(w, code, errorBody{Error: retention.Message(err)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}
