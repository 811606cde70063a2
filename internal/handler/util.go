package handler

import (
	"encoding/json"
	"net/http"

	"github.com/brijeshdobariya07/insightOS/internal/model"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ErrorResponse{Error: message})
}

// writeErrorDetails writes a JSON error envelope with validation detail.
func writeErrorDetails(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, model.ErrorResponse{Error: message, Details: details})
}
