package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chat-hub/errors"
)

// payload is the response envelope of the data surface: a success flag
// plus fields, or a human-readable message on failure.
type payload map[string]any

func writeJSON(w http.ResponseWriter, status int, body payload) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, body payload) {
	if body == nil {
		body = payload{}
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

func fail(w http.ResponseWriter, log *slog.Logger, err error) {
	status := errors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	}
	writeJSON(w, status, payload{
		"success": false,
		"message": err.Error(),
	})
}
