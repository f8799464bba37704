// Package httpx provides JSON response helpers with machine-readable
// error codes consumed by API clients.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends an error response carrying a machine-readable code.
func Error(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorBody{Code: code, Message: message})
}

// ErrorWithDetails sends an error response with a structured details payload,
// e.g. the list of locations blocking a period close.
func ErrorWithDetails(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, ErrorBody{Code: code, Message: message, Details: details})
}

// Internal hides the underlying failure behind a generic retryable error.
func Internal(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, "TRANSACTION_FAILED", "operation failed and was rolled back, retry later")
}

// ErrEmptyBody indicates a request without a JSON body where one is required.
var ErrEmptyBody = errors.New("httpx: request body required")

// DecodeJSON decodes the request body into target, rejecting unknown
// fields. A missing or empty body returns ErrEmptyBody so endpoints
// with optional bodies can treat it as the zero value.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	return nil
}
