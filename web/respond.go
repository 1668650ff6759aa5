// Package web exposes the appointment and messaging operations over HTTP
// and a websocket notification channel.
package web

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"quitcoach/errors"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the domain error taxonomy onto HTTP statuses.
// The code field lets clients distinguish a stale transition from plain
// bad input, both of which are 400s. Unknown errors become opaque 500s.
func respondServiceError(w http.ResponseWriter, err error) {
	var status int
	var code string
	switch {
	case stderrors.Is(err, errors.ErrValidation):
		status, code = http.StatusBadRequest, "Validation"
	case stderrors.Is(err, errors.ErrStaleState):
		status, code = http.StatusBadRequest, "StaleState"
	case stderrors.Is(err, errors.ErrSlotConflict):
		status, code = http.StatusConflict, "SlotConflict"
	case stderrors.Is(err, errors.ErrNotFound):
		status, code = http.StatusNotFound, "NotFound"
	case stderrors.Is(err, errors.ErrForbidden):
		status, code = http.StatusForbidden, "Forbidden"
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}
