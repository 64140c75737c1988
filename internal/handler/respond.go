package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Warning: encode response: %v", err)
	}
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	body := map[string]any{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	writeJSON(w, status, body)
}

func writeList[T any](w http.ResponseWriter, items []T) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(items),
		"data":    items,
	})
}

// writeError renders err using the taxonomy status. Not-found responses carry
// only the message.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	message := "Internal server error"
	var e *apperr.Error
	if errors.As(err, &e) && e.Message != "" {
		message = e.Message
	}

	if status == http.StatusNotFound {
		writeJSON(w, status, map[string]any{"success": false, "message": message})
		return
	}
	if status >= http.StatusInternalServerError {
		log.Printf("Error: %v", err)
	}

	detail := err.Error()
	if e != nil && e.Err != nil {
		detail = e.Err.Error()
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
		"error":   detail,
	})
}

// readJSON decodes the request body into v.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// tooLarge reports whether err came from http.MaxBytesReader.
func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
