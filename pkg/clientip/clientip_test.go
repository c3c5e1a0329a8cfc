package clientip

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRealClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.7:51234"
	assert.Equal(t, "203.0.113.7", RealClientIP(r))

	r.RemoteAddr = "198.51.100.2"
	assert.Equal(t, "198.51.100.2", RealClientIP(r))

	r.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", RealClientIP(r))
}

func TestUserAgent(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", "  curl/8.5.0 ")
	assert.Equal(t, "curl/8.5.0", UserAgent(r, 0))
	assert.Equal(t, "curl", UserAgent(r, 4))
}
