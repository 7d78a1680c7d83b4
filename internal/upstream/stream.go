package upstream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

const sseDonePayload = "[DONE]"

// AggregateStream collapses a streamed chat body into one data map. The body
// has already been read to EOF by the transport; chunks may be SSE "data:"
// lines or bare JSON lines. Chunks carrying OpenAI-style deltas contribute
// their content in order; when nothing parses, the raw text becomes the
// content so the caller always gets a complete reply.
func AggregateStream(body []byte) map[string]any {
	var content strings.Builder
	var model string
	chunks := 0

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == sseDonePayload {
			continue
		}
		if !json.Valid([]byte(payload)) {
			continue
		}
		chunks++
		if piece := extractDelta(payload); piece != "" {
			content.WriteString(piece)
		}
		if model == "" {
			model = gjson.Get(payload, "model").String()
		}
	}

	if chunks == 0 {
		return map[string]any{"content": string(body)}
	}

	data := map[string]any{
		"content": content.String(),
		"chunks":  chunks,
	}
	if model != "" {
		data["model"] = model
	}
	return data
}

// extractDelta pulls the text of one chunk, trying the delta form first and
// falling back to complete-message and bare-content shapes.
func extractDelta(payload string) string {
	for _, path := range []string{
		"choices.0.delta.content",
		"choices.0.message.content",
		"content",
	} {
		if v := gjson.Get(payload, path); v.Exists() {
			return v.String()
		}
	}
	return ""
}
