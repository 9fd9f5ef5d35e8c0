package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the error envelope returned by every failing endpoint.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Stack   string `json:"stack,omitempty"`
}

// RespondWithError writes an error response in JSON format
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Message: message, Status: "error"})
}

// RespondWithErrorStack writes an error response including a stack trace.
// Only call this outside production-like environments.
func RespondWithErrorStack(w http.ResponseWriter, code int, message, stack string) {
	RespondWithJSON(w, code, ErrorResponse{Message: message, Status: "error", Stack: stack})
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
