package orchestrator

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/qolaba/qolaba-mcp-go/internal/upstream"
)

const maxBodySnippet = 200

// extractErrorDetails pulls code, message and details out of an upstream
// error body on a best-effort basis. Non-JSON bodies yield a trimmed snippet
// so the caller still sees what upstream said.
func extractErrorDetails(res *upstream.RawResult) (code, message string, details any) {
	if len(res.Body) > 0 && gjson.ValidBytes(res.Body) {
		for _, path := range []string{"code", "error_code", "error.code"} {
			if v := gjson.GetBytes(res.Body, path); v.Exists() && v.String() != "" {
				code = v.String()
				break
			}
		}
		for _, path := range []string{"message", "error.message", "detail", "error"} {
			if v := gjson.GetBytes(res.Body, path); v.Type == gjson.String && v.String() != "" {
				message = v.String()
				break
			}
		}
		if v := gjson.GetBytes(res.Body, "details"); v.Exists() {
			details = v.Value()
		}
	}

	if message == "" {
		message = http.StatusText(res.Status)
	}
	if message == "" {
		message = bodySnippet(res.Body)
	}
	if message == "" {
		message = "upstream request failed"
	}
	return code, message, details
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if !utf8.ValidString(s) {
		return ""
	}
	if len(s) > maxBodySnippet {
		s = s[:maxBodySnippet]
	}
	return s
}
