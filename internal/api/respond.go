package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// respondJSON writes v as a JSON response with the given status.
func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

// respondError writes a JSON error body with the given status.
func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, errorBody{Error: msg})
}

// respondStoreError maps a storage error onto 404 or 500.
func (s *Server) respondStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("%s not found", what))
		return
	}
	s.logger.Error("database error", "entity", what, "error", err)
	s.respondError(w, http.StatusInternalServerError, "internal error")
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
