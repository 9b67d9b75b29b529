package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErrorDetails sends an error message with a list of reasons.
func writeErrorDetails(w http.ResponseWriter, status int, msg string, details []string) {
	if len(details) == 0 {
		writeError(w, status, msg)
		return
	}
	writeJSON(w, status, map[string]any{"error": msg, "details": details})
}

// readBody reads the request body up to the router's byte limit.
func (r *Router) readBody(w http.ResponseWriter, req *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.limits.BodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "unable to read request body")
		return nil, false
	}
	return body, true
}

// decodeJSON reads a JSON object into dst.
func (r *Router) decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	body, ok := r.readBody(w, req)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
