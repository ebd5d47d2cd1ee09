package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientIP(t *testing.T) {
	_, err := NewClientIP([]string{"10.0.0.0/8", " 192.0.2.7 ", "", "2001:db8::/32"})
	require.NoError(t, err)

	for _, bad := range []string{"10.0.0.0/33", "proxy.internal", "10.0.0"} {
		_, err := NewClientIP([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestClientIPFrom(t *testing.T) {
	ips, err := NewClientIP([]string{"10.0.0.0/8", "192.0.2.7"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"trusted proxy forwards client", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.195"}, "203.0.113.195"},
		{"skips trusted hops from the right", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.195, 192.0.2.7, 10.1.2.3"}, "203.0.113.195"},
		{"client-supplied prefix is not believed", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.8"}, "198.51.100.8"},
		{"garbage hop stops the walk", "10.0.0.1:80", map[string]string{"X-Forwarded-For": "203.0.113.195, nonsense"}, "10.0.0.1"},
		{"real ip from trusted proxy", "192.0.2.7:443", map[string]string{"X-Real-IP": " 203.0.113.9 "}, "203.0.113.9"},
		{"untrusted peer forwarded for ignored", "198.51.100.20:5000", map[string]string{"X-Forwarded-For": "203.0.113.195"}, "198.51.100.20"},
		{"untrusted peer real ip ignored", "198.51.100.20:5000", map[string]string{"X-Real-IP": "203.0.113.9"}, "198.51.100.20"},
		{"remote addr", "192.0.2.4:41234", nil, "192.0.2.4"},
		{"remote addr without port", "192.0.2.4", nil, "192.0.2.4"},
		{"ipv6 peer", "[2001:db8::1]:443", nil, "2001:db8::1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ips.From(req))
		})
	}
}

func TestClientIPFrom_ZeroValueTrustsNobody(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:80"
	req.Header.Set("X-Forwarded-For", "203.0.113.195")

	assert.Equal(t, "10.0.0.1", (&ClientIP{}).From(req))
}
