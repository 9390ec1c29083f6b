// Package httputil holds the JSON response helpers shared by the server.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/harun/restx/pkg/errdefs"
)

// ErrorResponse is the payload of every failed request.
type ErrorResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// WriteJSON writes v as JSON with the given HTTP status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// WriteError writes a JSON error response with the given status and message.
func WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	WriteJSON(w, status, ErrorResponse{URL: RequestURL(r), Error: message})
}

// WriteErr maps err to its status and writes the error payload.
func WriteErr(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(w, r, errdefs.HTTPStatus(err), err.Error())
}

// RequestURL is the URL reported back in error payloads.
func RequestURL(r *http.Request) string {
	if r == nil || r.URL == nil {
		return ""
	}
	return r.URL.RequestURI()
}
