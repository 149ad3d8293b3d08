package gotrue

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config holds GoTrue connection settings.
type Config struct {
	// URL is the base auth URL, e.g. "https://project.supabase.co/auth/v1".
	URL string

	// APIKey is sent as the apikey header on every request.
	APIKey string

	// JWKSURL overrides the JWK Set endpoint used for token validation.
	// Default: "{URL}/.well-known/jwks.json".
	JWKSURL string

	// JWTSecret enables HS256 validation with a shared secret instead of
	// JWKS. Takes precedence over JWKSURL when set.
	JWTSecret string

	// CacheTTL is how long to cache JWKS keys between refreshes.
	// Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient overrides the transport. Default: 10 second timeout.
	HTTPClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(url, apiKey string) Config {
	return Config{
		URL:      url,
		APIKey:   apiKey,
		CacheTTL: time.Hour,
	}
}

func (c Config) baseURL() string {
	return strings.TrimSuffix(strings.TrimSpace(c.URL), "/")
}

func (c Config) jwksURL() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	base := c.baseURL()
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/.well-known/jwks.json", base)
}

func (c Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
