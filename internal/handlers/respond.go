package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/websitelelo/websitelelo/internal/repository"
)

const maxBodyBytes = 1 << 20

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageBody{Message: msg})
}

// writeStoreError maps repository errors to a status code and message.
// label names the entity in not-found messages.
func writeStoreError(w http.ResponseWriter, r *http.Request, label string, err error) {
	switch {
	case errors.Is(err, repository.ErrValidation):
		writeMessage(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), repository.ErrValidation.Error()+": "))
	case errors.Is(err, repository.ErrNotFound):
		writeMessage(w, http.StatusNotFound, label+" not found")
	default:
		slog.Error("Storage failure", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}

var errBadBody = errors.New("request body must be a JSON object")

// decodeFields reads a JSON object body as raw fields. An empty body is an
// empty object.
func decodeFields(r *http.Request) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, errBadBody
	}
	if fields == nil {
		// a literal null body
		return nil, errBadBody
	}
	return fields, nil
}

// decodeJSON reads a JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errBadBody
	}
	return nil
}
