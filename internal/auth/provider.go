// Package auth produces Authorization headers for upstream requests.
// Two real modes exist: a stateless API key and OAuth2 client credentials
// with a cached, single-flight-refreshed access token.
package auth

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/qolaba/qolaba-mcp-go/internal/config"
)

// Provider yields a usable Authorization header, refreshing credentials when
// needed. Implementations are safe for concurrent use.
type Provider interface {
	// HeaderFor returns the header name and value for a request issued at
	// the given time.
	HeaderFor(ctx context.Context, now time.Time) (name, value string, err error)

	// Invalidate marks any cached credential unusable, forcing the next
	// HeaderFor to refresh. A no-op for stateless providers.
	Invalidate()

	// Close releases cached credentials on shutdown.
	Close()
}

// NewProvider selects the provider matching the settings' auth mode.
// The httpClient is used for token-endpoint calls so proxy, TLS and timeout
// settings apply there too.
func NewProvider(st *config.Settings, httpClient *http.Client, logger *zap.Logger) Provider {
	switch st.AuthMode() {
	case config.AuthModeAPIKey:
		return &APIKeyProvider{key: st.APIKey}
	case config.AuthModeOAuth:
		return NewOAuthProvider(st, httpClient, logger)
	default:
		return unconfiguredProvider{}
	}
}

// unconfiguredProvider reports the absence of credentials on every call.
type unconfiguredProvider struct{}

func (unconfiguredProvider) HeaderFor(context.Context, time.Time) (string, string, error) {
	return "", "", ErrUnconfigured
}

func (unconfiguredProvider) Invalidate() {}
func (unconfiguredProvider) Close()      {}
