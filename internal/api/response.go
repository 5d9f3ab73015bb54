package api

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope every endpoint returns: exactly one of
// Data or Error is set.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// OK writes a 200 response with the data envelope.
func OK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Response{Data: data})
}

// JSONError writes an error response using the error's own status.
func JSONError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	json.NewEncoder(w).Encode(Response{Error: err})
}
