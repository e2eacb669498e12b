package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the caller's IP address, preferring proxy headers
// when present. X-Forwarded-For may carry a chain; the first hop is the
// original client.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
