// Package shared holds response helpers used by every HTTP handler.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "memberhub/pkg/domain-errors"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a domain error to its HTTP status and writes the error
// body. Unrecognized errors become 500 without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)
	body := errorBody{Error: err.Error(), Code: string(code)}
	if status == http.StatusInternalServerError {
		body.Error = "internal server error"
	}
	WriteJSON(w, status, body)
}
