package config

import (
	"fmt"
	"net/url"
)

// Issue describes one configuration problem found during validation.
type Issue struct {
	Field   string
	Message string
}

var validEnvironments = map[Environment]bool{
	EnvDevelopment: true,
	EnvTest:        true,
	EnvStaging:     true,
	EnvProduction:  true,
}

// Validate checks the settings eagerly and returns every problem found.
// An empty slice means the settings are usable.
func (s *Settings) Validate() []Issue {
	var issues []Issue
	add := func(field, format string, args ...any) {
		issues = append(issues, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !validEnvironments[s.Env] {
		add("env", "unknown environment %q (expected development, test, staging or production)", s.Env)
	}

	if s.APIBaseURL == "" {
		add("api_base_url", "base URL is required")
	} else if err := validateHTTPURL(s.APIBaseURL); err != nil {
		add("api_base_url", "%v", err)
	}

	if s.TokenURL != "" {
		if err := validateHTTPURL(s.TokenURL); err != nil {
			add("token_url", "%v", err)
		}
	}
	for field, proxy := range map[string]string{"http_proxy": s.HTTPProxy, "https_proxy": s.HTTPSProxy} {
		if proxy == "" {
			continue
		}
		if _, err := url.Parse(proxy); err != nil {
			add(field, "invalid proxy URL: %v", err)
		}
	}

	if s.RequestTimeout <= 0 {
		add("request_timeout", "must be positive, got %s", s.RequestTimeout)
	}
	if s.Retry.MaxAttempts < 1 {
		add("retry_max_attempts", "must be at least 1, got %d", s.Retry.MaxAttempts)
	}
	if s.Retry.BaseDelay < 0 {
		add("retry_base_delay", "must be non-negative, got %s", s.Retry.BaseDelay)
	}
	if s.Retry.MaxDelay < 0 {
		add("retry_max_delay", "must be non-negative, got %s", s.Retry.MaxDelay)
	}
	if s.Retry.Jitter < 0 || s.Retry.Jitter >= 1 {
		add("retry_jitter", "must be in [0, 1), got %g", s.Retry.Jitter)
	}
	if s.RateLimit.MaxRequests < 0 {
		add("rate_limit_max", "must be non-negative, got %d", s.RateLimit.MaxRequests)
	}
	if s.RateLimit.Window < 0 {
		add("rate_limit_window", "must be non-negative, got %s", s.RateLimit.Window)
	}

	// Partial OAuth configuration is always a mistake, regardless of env.
	oauthFields := 0
	if s.ClientID != "" {
		oauthFields++
	}
	if s.ClientSecret != "" {
		oauthFields++
	}
	if s.TokenURL != "" {
		oauthFields++
	}
	if oauthFields > 0 && oauthFields < 3 {
		add("oauth", "incomplete OAuth configuration: client_id, client_secret and token_url must all be set")
	}

	if s.IsProductionLike() {
		hasAPIKey := s.APIKey != ""
		hasOAuth := oauthFields == 3
		switch {
		case hasAPIKey && hasOAuth:
			add("auth", "both API key and OAuth credentials are configured; provide exactly one")
		case !hasAPIKey && !hasOAuth:
			add("auth", "no authentication configured: set QOLABA_API_KEY or the OAuth variables (QOLABA_CLIENT_ID, QOLABA_CLIENT_SECRET, QOLABA_TOKEN_URL)")
		}
	}

	return issues
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}
