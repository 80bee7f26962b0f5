// Package httpx writes JSON responses and maps application errors to status codes.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/apperr"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	body := []byte("null")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
		body = b
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// Decode reads a JSON body of at most 1 MiB into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// Status maps err to its HTTP status and client message.
func Status(err error) (int, string) {
	var (
		ve *apperr.ValidationError
		ce *apperr.ConflictError
		se *apperr.SyncError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, "validation failed"
	case errors.As(err, &ce):
		return http.StatusConflict, ce.Error()
	case errors.Is(err, apperr.ErrReferentialConflict):
		return http.StatusConflict, apperr.ConflictMessage
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, apperr.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store unavailable"
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.As(err, &se):
		return http.StatusBadGateway, "could not sync with the store"
	}
	return http.StatusInternalServerError, "internal error"
}

// Error logs err once and writes the mapped error response. Validation failures
// carry their field messages under details.fields; extra is merged into details.
func Error(w http.ResponseWriter, logger *zap.SugaredLogger, err error, extra map[string]any) {
	status, msg := Status(err)
	details := map[string]any{}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		details["fields"] = ve.Fields
	}
	for k, v := range extra {
		details[k] = v
	}
	if logger != nil {
		if status >= http.StatusInternalServerError {
			logger.Warnw("request failed", "status", status, "err", err)
		} else {
			logger.Debugw("request rejected", "status", status, "err", err)
		}
	}
	if len(details) == 0 {
		JSONError(w, status, msg, nil)
		return
	}
	JSONError(w, status, msg, details)
}
