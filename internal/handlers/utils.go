package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jason-s-yu/certarena/internal/match"
)

const maxBodyBytes = 64 << 10

// writeJSON serializes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return match.Reject(match.InvalidPayload, "malformed request body: %v", err)
	}
	return nil
}

func requiredPath(r *http.Request, name string) (string, error) {
	v := r.PathValue(name)
	if v == "" {
		return "", match.Reject(match.InvalidPayload, "missing %s in path", name)
	}
	return v, nil
}
