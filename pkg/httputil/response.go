// Package httputil provides HTTP handler utilities for consistent error
// handling and JSON encoding of guard decisions.
package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteInternalError writes an internal server error response (500)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteErrorMessage(w, http.StatusInternalServerError, err.Error())
}

// WriteNotFound writes a not found error response (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteUnauthorized writes a 401 with a machine-readable reason
func WriteUnauthorized(w http.ResponseWriter, reason, message string) {
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":  message,
		"reason": reason,
	})
}

// WriteForbidden writes a 403 naming what was required and what the
// caller holds
func WriteForbidden(w http.ResponseWriter, message string, required, current interface{}) {
	body := map[string]interface{}{"error": message}
	if required != nil {
		body["required"] = required
	}
	if current != nil {
		body["current"] = current
	}
	WriteJSON(w, http.StatusForbidden, body)
}

// WriteQuotaExceeded writes a 429 for a quota denial with the current
// count and ceiling
func WriteQuotaExceeded(w http.ResponseWriter, resource string, current, max int) {
	WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error":    fmt.Sprintf("quota exceeded for %s", resource),
		"resource": resource,
		"current":  current,
		"max":      max,
	})
}

// SetRateLimitHeaders sets the standard X-RateLimit response headers
func SetRateLimitHeaders(w http.ResponseWriter, limit, remaining int, reset time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

// WriteRateLimited writes a 429 for a rate limit denial, including the
// Retry-After header
func WriteRateLimited(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	WriteJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error":      "rate limit exceeded",
		"retryAfter": retryAfter,
	})
}
