package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// problemWriter adapts writeProblem to the middleware rejection hook.
func problemWriter(w http.ResponseWriter, _ *http.Request, status int) {
	switch status {
	case http.StatusForbidden:
		writeProblem(w, status, "insufficient permissions")
	case http.StatusServiceUnavailable:
		writeProblem(w, status, "")
	default:
		writeProblem(w, http.StatusUnauthorized, "invalid or missing access token")
	}
}

// decodeJSON reads a single JSON object. An empty body decodes to the zero
// value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
