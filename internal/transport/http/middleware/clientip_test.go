package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolved(t *testing.T, trusted []string, remote string, headers map[string]string) string {
	t.Helper()
	tp, err := ParseTrustedProxies(trusted)
	require.NoError(t, err)

	var got string
	h := ClientAddr(tp)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = ClientIP(r)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestClientIP_UntrustedPeerIgnoresForwardingHeaders(t *testing.T) {
	got := resolved(t, nil, "203.0.113.9:4000", map[string]string{
		"X-Forwarded-For": "1.2.3.4",
		"X-Real-Ip":       "5.6.7.8",
	})
	assert.Equal(t, "203.0.113.9", got)

	got = resolved(t, []string{"10.0.0.1"}, "203.0.113.9:4000", map[string]string{"X-Forwarded-For": "1.2.3.4"})
	assert.Equal(t, "203.0.113.9", got)
}

func TestClientIP_TrustedPeer(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"no headers", nil, "10.0.0.5"},
		{"single hop", map[string]string{"X-Forwarded-For": "198.51.100.7"}, "198.51.100.7"},
		{"client-supplied prefix is skipped", map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.7"}, "198.51.100.7"},
		{"inner trusted hops are skipped", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.9"}, "198.51.100.7"},
		{"garbage stops the walk", map[string]string{"X-Forwarded-For": "nonsense, 10.0.0.9"}, "10.0.0.9"},
		{"x-real-ip fallback", map[string]string{"X-Real-Ip": "198.51.100.8"}, "198.51.100.8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolved(t, []string{"10.0.0.0/8"}, "10.0.0.5:4000", tc.headers))
		})
	}
}

func TestClientIP_WithoutMiddlewareUsesRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	assert.Equal(t, "192.168.1.1", ClientIP(req))
}

func TestParseTrustedProxies(t *testing.T) {
	tp, err := ParseTrustedProxies([]string{"10.0.0.1", " 172.16.0.0/12 ", "", "::1"})
	require.NoError(t, err)
	assert.Len(t, tp, 3)

	tp, err = ParseTrustedProxies([]string{"10.0.0.1", "not-an-ip", "300.0.0.0/8"})
	assert.Error(t, err)
	assert.Len(t, tp, 1)
}
