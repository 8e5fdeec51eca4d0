// Package shared centralizes JSON response envelopes so every handler
// speaks the same error shape.
package shared

import (
	"encoding/json"
	"net/http"

	pkgerrors "weld/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a coded error into its HTTP status and error
// envelope. Uncoded errors become a 500 with a generic message so internal
// details never leak.
func WriteError(w http.ResponseWriter, err error) {
	status := pkgerrors.ToHTTPStatus(pkgerrors.CodeOf(err))
	WriteJSON(w, status, ErrorResponse{Error: pkgerrors.MessageOf(err)})
}
