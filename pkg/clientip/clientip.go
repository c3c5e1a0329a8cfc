package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the client IP from the request.
// It reads r.RemoteAddr only. When the router runs chi's RealIP middleware,
// RemoteAddr already holds the forwarded address, possibly without a port.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}

// UserAgent returns the request's User-Agent truncated to max bytes.
func UserAgent(r *http.Request, max int) string {
	ua := strings.TrimSpace(r.UserAgent())
	if max > 0 && len(ua) > max {
		return ua[:max]
	}
	return ua
}
