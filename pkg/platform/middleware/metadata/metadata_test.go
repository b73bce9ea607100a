package metadata

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgate/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.168.1.1"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		trusted []netip.Prefix
		headers map[string]string
		remote  string
		want    string
	}{
		{"no trusted proxies ignores forwarded-for", nil, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "198.51.100.9:1234", "198.51.100.9"},
		{"no trusted proxies ignores real ip", nil, map[string]string{"X-Real-IP": "203.0.113.7"}, "198.51.100.9:1234", "198.51.100.9"},
		{"untrusted peer header is ignored", proxies, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "198.51.100.9:1234", "198.51.100.9"},
		{"trusted peer forwards the client", proxies, map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.2:1234", "203.0.113.7"},
		{"spoofed leftmost entry is skipped", proxies, map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.7, 10.0.0.5"}, "10.0.0.2:1234", "203.0.113.7"},
		{"all hops trusted uses the leftmost", proxies, map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.5"}, "192.168.1.1:80", "10.1.1.1"},
		{"garbage hop falls back to the peer", proxies, map[string]string{"X-Forwarded-For": "not-an-ip"}, "10.0.0.2:1234", "10.0.0.2"},
		{"trusted peer real ip header", proxies, map[string]string{"X-Real-IP": "198.51.100.1"}, "10.0.0.2:1234", "198.51.100.1"},
		{"remote addr ipv6", nil, nil, "[::1]:5555", "::1"},
		{"remote addr without port", nil, nil, "192.0.2.10", "192.0.2.10"},
		{"no source", nil, nil, "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromRequest(req, tt.trusted))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := ParseTrustedProxies([]string{" 10.1.2.3/8 ", "", "::1"})
	require.NoError(t, err)
	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("::1/128")}, prefixes)

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
}

func TestClientMetadataPopulatesContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Referer", "https://prev.example/page")
	req.Header.Set("X-Forwarded-For", "203.0.113.99")

	var ip, ua, ref string
	h := ClientMetadata(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = requestcontext.ClientIP(r.Context())
		ua = requestcontext.UserAgent(r.Context())
		ref = requestcontext.Referer(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.10", ip)
	assert.Equal(t, "test-agent", ua)
	assert.Equal(t, "https://prev.example/page", ref)
}
