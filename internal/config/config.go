// Package config holds the immutable settings for the Qolaba MCP bridge.
// Settings are sourced from QOLABA_-prefixed environment variables, validated
// eagerly at startup, and passed by value to the components that need them.
package config

import "time"

// Environment is the deployment profile the bridge runs under.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTest        Environment = "test"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// AuthMode selects how outbound requests are authenticated.
type AuthMode string

const (
	AuthModeAPIKey AuthMode = "api_key"
	AuthModeOAuth  AuthMode = "oauth"
	AuthModeNone   AuthMode = "none"
)

const redactedPlaceholder = "********"

// Secret is a string that refuses to print itself. Use Value() to read it
// and Masked() for debug output.
type Secret string

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

// String implements fmt.Stringer with a fixed placeholder so secrets cannot
// leak through %v / %s formatting.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redactedPlaceholder
}

// MarshalJSON serializes the placeholder, never the raw value.
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte(`""`), nil
	}
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// Masked shows the first 3 and last 4 characters for values longer than
// 8 characters, "***" otherwise. Used for client ids in status output.
func (s Secret) Masked() string {
	v := string(s)
	if len(v) <= 8 {
		return "***"
	}
	return v[:3] + "***" + v[len(v)-4:]
}

// RetrySettings tunes the upstream retry policy.
type RetrySettings struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// RateLimitSettings tunes the client-side token bucket shared across
// invocations. MaxRequests <= 0 disables local rate limiting.
type RateLimitSettings struct {
	MaxRequests int
	Window      time.Duration
}

// Settings is the frozen configuration value for one bridge process.
type Settings struct {
	Env        Environment
	APIBaseURL string

	APIKey Secret

	ClientID     string
	ClientSecret Secret
	TokenURL     string
	Scope        string

	RequestTimeout time.Duration
	VerifySSL      bool
	HTTPProxy      string
	HTTPSProxy     string

	Retry     RetrySettings
	RateLimit RateLimitSettings
}

// AuthMode derives the active authentication mode. OAuth wins when both the
// OAuth triple and an API key are present; Validate rejects that combination
// in staging/production before it can matter.
func (s *Settings) AuthMode() AuthMode {
	if s.ClientID != "" && s.ClientSecret != "" && s.TokenURL != "" {
		return AuthModeOAuth
	}
	if s.APIKey != "" {
		return AuthModeAPIKey
	}
	return AuthModeNone
}

// IsProductionLike reports whether the environment requires full credentials.
func (s *Settings) IsProductionLike() bool {
	return s.Env == EnvStaging || s.Env == EnvProduction
}

// Redacted returns a logging-safe view of the settings. Secret values are
// replaced with a fixed placeholder; absence is represented by "".
func (s *Settings) Redacted() map[string]any {
	redact := func(sec Secret) string {
		if sec == "" {
			return ""
		}
		return redactedPlaceholder
	}
	return map[string]any{
		"env":               string(s.Env),
		"api_base_url":      s.APIBaseURL,
		"auth_mode":         string(s.AuthMode()),
		"api_key":           redact(s.APIKey),
		"client_id":         s.ClientID,
		"client_secret":     redact(s.ClientSecret),
		"token_url":         s.TokenURL,
		"scope":             s.Scope,
		"request_timeout":   s.RequestTimeout.String(),
		"verify_ssl":        s.VerifySSL,
		"http_proxy":        s.HTTPProxy,
		"https_proxy":       s.HTTPSProxy,
		"retry_max":         s.Retry.MaxAttempts,
		"rate_limit_max":    s.RateLimit.MaxRequests,
		"rate_limit_window": s.RateLimit.Window.String(),
	}
}
