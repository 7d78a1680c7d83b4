package auth

import (
	"context"
	"time"

	"github.com/qolaba/qolaba-mcp-go/internal/config"
)

// APIKeyProvider is the stateless bearer-key mode.
type APIKeyProvider struct {
	key config.Secret
}

// HeaderFor returns the static bearer header.
func (p *APIKeyProvider) HeaderFor(_ context.Context, _ time.Time) (string, string, error) {
	if p.key == "" {
		return "", "", ErrUnconfigured
	}
	return "Authorization", "Bearer " + p.key.Value(), nil
}

// Invalidate is a no-op: there is nothing cached to discard.
func (p *APIKeyProvider) Invalidate() {}

// Close is a no-op.
func (p *APIKeyProvider) Close() {}
