package api

import "net/http"

// Error is the error half of the response envelope. Status is not
// serialized; it drives the HTTP status line only.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// Fallback errors for requests that never reach a handler. Handler
// packages carry their own error codes.
var (
	ErrNotFound = &Error{
		Code:    "NOT_FOUND",
		Message: "Resource not found",
		Status:  http.StatusNotFound,
	}

	ErrMethodNotAllowed = &Error{
		Code:    "METHOD_NOT_ALLOWED",
		Message: "Method not allowed",
		Status:  http.StatusMethodNotAllowed,
	}
)
