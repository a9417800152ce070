package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the uniform error envelope returned by every endpoint.
// Detail carries field-level validation hints; it is never populated for
// authentication failures so the response shape cannot leak which factor
// was wrong.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Detail map[string]string `json:"detail,omitempty"`
}

// WriteJSON writes a JSON response with the given status code. Token
// responses must never be cached, so no-store headers are always set.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the uniform error envelope.
func WriteError(w http.ResponseWriter, code int, errCode string) {
	WriteJSON(w, code, ErrorResponse{Error: errCode})
}

// WriteValidationError writes a 400 with field-level detail.
func WriteValidationError(w http.ResponseWriter, detail map[string]string) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:  "validation_failed",
		Detail: detail,
	})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
