package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sbw-site/geotrack/internal/config"
)

func TestMatchOriginPattern(t *testing.T) {
	cases := []struct {
		pattern, host string
		want          bool
	}{
		{"track.example.com", "track.example.com", true},
		{"*.example.com", "ops.example.com", true},
		{"*.example.com", "example.org", false},
		{"localhost:*", "localhost:5173", true},
		{"localhost:*", "127.0.0.1:5173", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, matchOriginPattern(tc.pattern, tc.host), "%s vs %s", tc.pattern, tc.host)
	}
	assert.Equal(t, "ops.example.com:8443", extractOriginHost("https://ops.example.com:8443"))
}

func TestCorsConfig(t *testing.T) {
	prod := &config.AppConfig{Env: "production", AllowedOrigins: []string{"*.example.com"}}
	c := corsConfig(prod)
	assert.True(t, c.AllowOriginFunc("https://ops.example.com"))
	assert.False(t, c.AllowOriginFunc("https://evil.test"))

	dev := &config.AppConfig{Env: "development", AllowedOrigins: []string{"*.example.com"}}
	assert.True(t, corsConfig(dev).AllowOriginFunc("https://evil.test"))
}
