package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultRequestTimeout  = 30 * time.Second
	DefaultRetryAttempts   = 3
	DefaultRetryBaseDelay  = 1 * time.Second
	DefaultRetryMaxDelay   = 60 * time.Second
	DefaultRetryJitter     = 0.25
	DefaultRateLimitMax    = 10
	DefaultRateLimitWindow = 1 * time.Second

	envPrefix = "QOLABA"
)

// FromEnv builds Settings from QOLABA_-prefixed environment variables and
// validates them eagerly. A non-nil error means startup must abort with the
// configuration exit code; the error message lists every issue found.
func FromEnv() (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", string(EnvDevelopment))
	v.SetDefault("request_timeout", DefaultRequestTimeout.Seconds())
	v.SetDefault("verify_ssl", true)
	v.SetDefault("retry_max_attempts", DefaultRetryAttempts)
	v.SetDefault("retry_base_delay", DefaultRetryBaseDelay.Seconds())
	v.SetDefault("retry_max_delay", DefaultRetryMaxDelay.Seconds())
	v.SetDefault("retry_jitter", DefaultRetryJitter)
	v.SetDefault("rate_limit_max", DefaultRateLimitMax)
	v.SetDefault("rate_limit_window", DefaultRateLimitWindow.Seconds())

	s := &Settings{
		Env:            Environment(strings.ToLower(strings.TrimSpace(v.GetString("env")))),
		APIBaseURL:     strings.TrimSpace(v.GetString("api_base_url")),
		APIKey:         Secret(strings.TrimSpace(v.GetString("api_key"))),
		ClientID:       strings.TrimSpace(v.GetString("client_id")),
		ClientSecret:   Secret(strings.TrimSpace(v.GetString("client_secret"))),
		TokenURL:       strings.TrimSpace(v.GetString("token_url")),
		Scope:          strings.TrimSpace(v.GetString("scope")),
		RequestTimeout: secondsToDuration(v.GetFloat64("request_timeout")),
		VerifySSL:      v.GetBool("verify_ssl"),
		HTTPProxy:      strings.TrimSpace(v.GetString("http_proxy")),
		HTTPSProxy:     strings.TrimSpace(v.GetString("https_proxy")),
		Retry: RetrySettings{
			MaxAttempts: v.GetInt("retry_max_attempts"),
			BaseDelay:   secondsToDuration(v.GetFloat64("retry_base_delay")),
			MaxDelay:    secondsToDuration(v.GetFloat64("retry_max_delay")),
			Jitter:      v.GetFloat64("retry_jitter"),
		},
		RateLimit: RateLimitSettings{
			MaxRequests: v.GetInt("rate_limit_max"),
			Window:      secondsToDuration(v.GetFloat64("rate_limit_window")),
		},
	}

	if issues := s.Validate(); len(issues) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", joinIssues(issues))
	}
	return s, nil
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

func joinIssues(issues []Issue) string {
	parts := make([]string, 0, len(issues))
	for _, is := range issues {
		parts = append(parts, fmt.Sprintf("%s: %s", is.Field, is.Message))
	}
	return strings.Join(parts, "; ")
}
