package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/evdwaal/staylink/internal/errorz"
)

// genericTokenError is what callers see for every failed code or token
// redemption. One message for all cases so nothing can be learned about
// a secret's existence or history.
const genericTokenError = "invalid or expired code"

const maxBodyBytes = 64 * 1024

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.Logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}

	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errorz.ErrNotFound) || errors.Is(err, errorz.ErrExpired):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: genericTokenError})
	default:
		s.deps.Logger.Error("internal server error",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
