package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/MrEthical07/pairAuth/internal/logging"
)

const (
	msgInternal           = "Internal server error"
	msgEmailExists        = "Email already exists"
	msgInvalidCredentials = "Invalid credentials"
	msgUserNotFound       = "User not found"
	msgInvalidBody        = "Invalid request body"
	msgInvalidInput       = "Invalid input"
	msgPasswordPolicy     = "Password does not meet requirements"
	msgTooManyRequests    = "Too many requests"
	msgNotFound           = "Not found"
	msgMethodNotAllowed   = "Method not allowed"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON writes value with the given status.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps engine errors to responses. Anything unrecognized is logged and
// answered with the generic 500 so internals never reach the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pairAuth.ErrAccountExists):
		writeError(w, http.StatusBadRequest, msgEmailExists)
	case errors.Is(err, pairAuth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, pairAuth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, pairAuth.ErrPasswordPolicy):
		writeError(w, http.StatusBadRequest, msgPasswordPolicy)
	case errors.Is(err, pairAuth.ErrAccountInvalid):
		writeError(w, http.StatusBadRequest, msgInvalidInput)
	default:
		logging.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "request_failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
