package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/qolaba/qolaba-mcp-go/internal/config"
)

const (
	// RefreshMargin is the window before expiry within which a token is
	// already considered stale.
	RefreshMargin = 5 * time.Minute

	// defaultTokenLifetime applies when the token endpoint omits expires_in.
	defaultTokenLifetime = 3600 * time.Second

	refreshKey = "refresh"
)

// AccessToken is the cached OAuth credential. Owned by OAuthProvider; the
// expiry is absolute UTC.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// Usable reports whether the token is still fresh at the given time.
func (t *AccessToken) Usable(now time.Time) bool {
	return t != nil && t.Value != "" && now.Add(RefreshMargin).Before(t.ExpiresAt)
}

// OAuthProvider implements client-credentials token lifecycle. At most one
// refresh is in flight; concurrent callers share its outcome via singleflight.
type OAuthProvider struct {
	conf       *clientcredentials.Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu    sync.RWMutex
	token *AccessToken
	sf    singleflight.Group
}

// NewOAuthProvider builds a provider from validated settings. The supplied
// client is used for the token POST so proxy/TLS/timeout settings carry over.
func NewOAuthProvider(st *config.Settings, httpClient *http.Client, logger *zap.Logger) *OAuthProvider {
	return &OAuthProvider{
		conf: &clientcredentials.Config{
			ClientID:     st.ClientID,
			ClientSecret: st.ClientSecret.Value(),
			TokenURL:     st.TokenURL,
			Scopes:       splitScope(st.Scope),
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

func splitScope(scope string) []string {
	if scope == "" {
		return nil
	}
	return []string{scope}
}

// HeaderFor returns a bearer header backed by a usable token, refreshing it
// first when stale.
func (p *OAuthProvider) HeaderFor(ctx context.Context, now time.Time) (string, string, error) {
	p.mu.RLock()
	tok := p.token
	p.mu.RUnlock()

	if tok.Usable(now) {
		return "Authorization", "Bearer " + tok.Value, nil
	}

	refreshed, err := p.refresh(ctx)
	if err != nil {
		return "", "", err
	}
	return "Authorization", "Bearer " + refreshed.Value, nil
}

// refresh collapses concurrent refreshes into one token-endpoint call. On
// failure no token is cached and every waiter receives the same error.
func (p *OAuthProvider) refresh(ctx context.Context) (*AccessToken, error) {
	ch := p.sf.DoChan(refreshKey, func() (any, error) {
		tok, err := p.fetchToken(ctx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.token = tok
		p.mu.Unlock()
		return tok, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*AccessToken), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *OAuthProvider) fetchToken(ctx context.Context) (*AccessToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.conf.Token(ctx)
	if err != nil {
		status := 0
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		p.logger.Warn("OAuth token refresh failed",
			zap.Int("status", status),
			zap.String("token_url", p.conf.TokenURL))
		return nil, &RefreshError{Status: status, Err: err}
	}

	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = p.now().Add(defaultTokenLifetime)
	}
	p.logger.Info("OAuth token refreshed",
		zap.Time("expires_at", expiry.UTC()),
		zap.String("token_type", tok.TokenType))

	return &AccessToken{Value: tok.AccessToken, ExpiresAt: expiry}, nil
}

// Invalidate discards the cached token so the next HeaderFor refreshes.
func (p *OAuthProvider) Invalidate() {
	p.mu.Lock()
	p.token = nil
	p.mu.Unlock()
}

// Close clears the cached token on shutdown.
func (p *OAuthProvider) Close() {
	p.Invalidate()
}
