package handler

import (
	"encoding/json"
	"net/http"
)

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondData writes the success envelope {success, data}.
func respondData(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

// respondServerError writes the failure envelope {success, message, error}
// with a 500 status. The raw error string is included alongside the generic
// message, mirroring the envelope of the original API.
func respondServerError(w http.ResponseWriter, message string, err error) {
	respondJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"message": message,
		"error":   err.Error(),
	})
}

// respondRejection writes a business rejection: a 4xx with a human-readable
// message and optional extra fields.
func respondRejection(w http.ResponseWriter, status int, message string, extra map[string]any) {
	body := map[string]any{
		"success": false,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	respondJSON(w, status, body)
}

// respondValidation writes the field-level validation error map with a 422.
func respondValidation(w http.ResponseWriter, message string, errs map[string]string) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"success": false,
		"message": message,
		"errors":  errs,
	})
}
