package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": " 198.51.100.1 , 10.0.0.2"}, "10.0.0.9:1234", "198.51.100.1"},
		{"forwarded wins over platform", map[string]string{"X-Forwarded-For": "198.51.100.1", "CF-Connecting-IP": "203.0.113.5"}, "10.0.0.9:1234", "198.51.100.1"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "203.0.113.5"}, "10.0.0.9:1234", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "203.0.113.6"}, "10.0.0.9:1234", "203.0.113.6"},
		{"empty first hop", map[string]string{"X-Forwarded-For": " , 10.0.0.2", "X-Real-IP": "203.0.113.6"}, "10.0.0.9:1234", "203.0.113.6"},
		{"remote addr", nil, "192.0.2.10:5555", "192.0.2.10"},
		{"remote addr ipv6", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"remote addr without port", nil, "192.0.2.11", "192.0.2.11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestFirstHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Country-Code", "fr")

	assert.Equal(t, "fr", firstHeader(req, []string{"CF-IPCountry", "X-Country-Code"}))
	assert.Equal(t, "", firstHeader(req, []string{"X-ASN"}))
	assert.Equal(t, "", firstHeader(req, nil))
}
