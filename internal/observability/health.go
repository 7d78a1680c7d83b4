package observability

import (
	"time"

	"github.com/qolaba/qolaba-mcp-go/internal/config"
)

// Health produces the server_health snapshot. It never contacts upstream.
type Health struct {
	settings *config.Settings
	metrics  *Metrics
	started  time.Time
}

// NewHealth records the process start time.
func NewHealth(settings *config.Settings, metrics *Metrics) *Health {
	return &Health{settings: settings, metrics: metrics, started: time.Now()}
}

// Snapshot returns the health map handed back by the server_health tool.
func (h *Health) Snapshot(now time.Time) map[string]any {
	served, failed := h.metrics.Counts()
	snap := map[string]any{
		"ok":                true,
		"status":            "healthy",
		"auth_mode":         string(h.settings.AuthMode()),
		"env":               string(h.settings.Env),
		"uptime_s":          int64(now.Sub(h.started).Seconds()),
		"operations_served": served,
		"operations_failed": failed,
	}
	if h.settings.AuthMode() == config.AuthModeOAuth {
		snap["client_id"] = config.Secret(h.settings.ClientID).Masked()
	}
	return snap
}
