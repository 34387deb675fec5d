package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/example/ec-order-lifecycle/internal/apperror"
)

type errorResponse struct {
	Error         string `json:"error"`
	Field         string `json:"field,omitempty"`
	CurrentStatus string `json:"currentStatus,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *apperror.ValidationError
		stateErr      *apperror.InvalidStateError
		notFoundErr   *apperror.NotFoundError
		transitionErr *apperror.InvalidTransitionError
		conflictErr   *apperror.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: validationErr.Error(), Field: validationErr.Field})
	case errors.As(err, &stateErr):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: stateErr.Error()})
	case errors.As(err, &notFoundErr):
		respondJSON(w, http.StatusNotFound, errorResponse{Error: notFoundErr.Error()})
	case errors.As(err, &transitionErr):
		respondJSON(w, http.StatusConflict, errorResponse{Error: transitionErr.Error(), CurrentStatus: transitionErr.Current})
	case errors.As(err, &conflictErr):
		respondJSON(w, http.StatusConflict, errorResponse{Error: conflictErr.Error(), CurrentStatus: conflictErr.Current})
	default:
		log.Printf("[API] %s %s failed: %v", r.Method, r.URL.Path, err)
		respondMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a JSON body no larger than limit bytes
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		respondMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
