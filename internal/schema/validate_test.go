package schema

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func issueCodes(issues []Issue) []string {
	// Nil for the accepted cases so comparisons against a nil wantCodes hold.
	if len(issues) == 0 {
		return nil
	}
	codes := make([]string, len(issues))
	for i, is := range issues {
		codes[i] = is.Code
	}
	return codes
}

func TestValidateTextToImage(t *testing.T) {
	spec := Catalog()[OpTextToImage]

	tests := []struct {
		name      string
		args      map[string]any
		wantCodes []string
	}{
		{
			name: "minimal valid",
			args: map[string]any{"prompt": "a red fox in the snow"},
		},
		{
			name: "all fields valid",
			args: map[string]any{
				"prompt":          "a red fox",
				"model":           "flux",
				"width":           1024,
				"height":          768,
				"steps":           30,
				"guidance_scale":  7.5,
				"seed":            42,
				"negative_prompt": "blurry",
			},
		},
		{
			name:      "missing prompt",
			args:      map[string]any{"width": 512},
			wantCodes: []string{CodeRequired},
		},
		{
			name:      "empty prompt",
			args:      map[string]any{"prompt": ""},
			wantCodes: []string{CodeMinLength},
		},
		{
			name:      "prompt too long",
			args:      map[string]any{"prompt": strings.Repeat("a", 4001)},
			wantCodes: []string{CodeMaxLength},
		},
		{
			name: "prompt at max length",
			args: map[string]any{"prompt": strings.Repeat("a", 4000)},
		},
		{
			name:      "width below minimum",
			args:      map[string]any{"prompt": "fox", "width": 63},
			wantCodes: []string{CodeOutOfRange},
		},
		{
			name: "width at minimum",
			args: map[string]any{"prompt": "fox", "width": 64},
		},
		{
			name: "width at maximum",
			args: map[string]any{"prompt": "fox", "width": 4096},
		},
		{
			name:      "width above maximum",
			args:      map[string]any{"prompt": "fox", "width": 4097},
			wantCodes: []string{CodeOutOfRange},
		},
		{
			name:      "width as string rejected",
			args:      map[string]any{"prompt": "fox", "width": "512"},
			wantCodes: []string{CodeInvalidType},
		},
		{
			name:      "width as fractional float rejected",
			args:      map[string]any{"prompt": "fox", "width": 512.5},
			wantCodes: []string{CodeInvalidType},
		},
		{
			name: "width as whole float accepted",
			args: map[string]any{"prompt": "fox", "width": float64(512)},
		},
		{
			name:      "unknown field rejected",
			args:      map[string]any{"prompt": "fox", "quality": "high"},
			wantCodes: []string{CodeUnknownField},
		},
		{
			name:      "unknown fields sorted and all reported",
			args:      map[string]any{"prompt": "fox", "zeta": 1, "alpha": 2},
			wantCodes: []string{CodeUnknownField, CodeUnknownField},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalized, issues := Validate(spec, tt.args)
			if len(tt.wantCodes) == 0 {
				require.Empty(t, issues)
				assert.NotNil(t, normalized)
				return
			}
			assert.Nil(t, normalized)
			assert.Equal(t, tt.wantCodes, issueCodes(issues))
		})
	}
}

func TestValidateUnknownFieldsSorted(t *testing.T) {
	spec := Catalog()[OpTextToImage]

	_, issues := Validate(spec, map[string]any{"prompt": "fox", "zeta": 1, "alpha": 2, "mid": 3})
	require.Len(t, issues, 3)
	assert.Equal(t, "alpha", issues[0].Path)
	assert.Equal(t, "mid", issues[1].Path)
	assert.Equal(t, "zeta", issues[2].Path)
}

func TestValidateChatTemperatureBounds(t *testing.T) {
	spec := Catalog()[OpChat]
	messages := []any{map[string]any{"role": "user", "content": "hi"}}

	tests := []struct {
		name        string
		temperature any
		wantIssue   bool
	}{
		{"zero", 0.0, false},
		{"two", 2.0, false},
		{"just below zero", -0.001, true},
		{"just above two", 2.001, true},
		{"integer accepted as float", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, issues := Validate(spec, map[string]any{
				"messages":    messages,
				"temperature": tt.temperature,
			})
			if tt.wantIssue {
				require.Len(t, issues, 1)
				assert.Equal(t, CodeOutOfRange, issues[0].Code)
			} else {
				assert.Empty(t, issues)
			}
		})
	}
}

func TestValidateMessages(t *testing.T) {
	spec := Catalog()[OpChat]

	tests := []struct {
		name      string
		messages  any
		wantCodes []string
	}{
		{
			name:     "valid conversation",
			messages: []any{map[string]any{"role": "system", "content": "be brief"}, map[string]any{"role": "user", "content": "hi"}},
		},
		{
			name:      "empty list",
			messages:  []any{},
			wantCodes: []string{CodeMinLength},
		},
		{
			name:      "missing role",
			messages:  []any{map[string]any{"content": "hi"}},
			wantCodes: []string{CodeRequired},
		},
		{
			name:      "unknown role",
			messages:  []any{map[string]any{"role": "robot", "content": "hi"}},
			wantCodes: []string{CodeInvalidEnum},
		},
		{
			name:      "missing content",
			messages:  []any{map[string]any{"role": "user"}},
			wantCodes: []string{CodeInvalidType},
		},
		{
			name:      "unknown message key",
			messages:  []any{map[string]any{"role": "user", "content": "hi", "name": "bob"}},
			wantCodes: []string{CodeUnknownField},
		},
		{
			name:      "non-object entry",
			messages:  []any{"hello"},
			wantCodes: []string{CodeInvalidType},
		},
		{
			name:      "not a list",
			messages:  "hello",
			wantCodes: []string{CodeInvalidType},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, issues := Validate(spec, map[string]any{"messages": tt.messages})
			assert.Equal(t, tt.wantCodes, issueCodes(issues))
		})
	}
}

func TestValidateBytesField(t *testing.T) {
	spec := Catalog()[OpImageToImage]
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	encoded := base64.StdEncoding.EncodeToString(payload)

	t.Run("base64 string decodes to bytes", func(t *testing.T) {
		normalized, issues := Validate(spec, map[string]any{"image": encoded, "prompt": "x"})
		require.Empty(t, issues)
		assert.Equal(t, payload, normalized["image"])
	})

	t.Run("data URI prefix stripped", func(t *testing.T) {
		normalized, issues := Validate(spec, map[string]any{
			"image": "data:image/png;base64," + encoded, "prompt": "x",
		})
		require.Empty(t, issues)
		assert.Equal(t, payload, normalized["image"])
	})

	t.Run("raw bytes pass through", func(t *testing.T) {
		normalized, issues := Validate(spec, map[string]any{"image": payload, "prompt": "x"})
		require.Empty(t, issues)
		assert.Equal(t, payload, normalized["image"])
	})

	t.Run("invalid base64 rejected", func(t *testing.T) {
		_, issues := Validate(spec, map[string]any{"image": "not!base64!", "prompt": "x"})
		require.Len(t, issues, 1)
		assert.Equal(t, CodeInvalidFormat, issues[0].Code)
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		_, issues := Validate(spec, map[string]any{"image": "", "prompt": "x"})
		require.Len(t, issues, 1)
		assert.Equal(t, CodeMinLength, issues[0].Code)
	})
}

func TestValidateStoreVectorDB(t *testing.T) {
	spec := Catalog()[OpStoreVectorDB]
	file := base64.StdEncoding.EncodeToString([]byte("document body"))

	tests := []struct {
		name      string
		args      map[string]any
		wantCodes []string
	}{
		{
			name: "valid",
			args: map[string]any{"file": file, "collection_name": "my-docs_1"},
		},
		{
			name:      "collection name with spaces",
			args:      map[string]any{"file": file, "collection_name": "my docs"},
			wantCodes: []string{CodeInvalidFormat},
		},
		{
			name:      "collection name with slash",
			args:      map[string]any{"file": file, "collection_name": "a/b"},
			wantCodes: []string{CodeInvalidFormat},
		},
		{
			name: "overlap below chunk size accepted",
			args: map[string]any{"file": file, "collection_name": "docs", "chunk_size": 100, "overlap": 99},
		},
		{
			name:      "overlap equal to chunk size rejected",
			args:      map[string]any{"file": file, "collection_name": "docs", "chunk_size": 100, "overlap": 100},
			wantCodes: []string{CodeConstraint},
		},
		{
			name:      "overlap above chunk size rejected",
			args:      map[string]any{"file": file, "collection_name": "docs", "chunk_size": 100, "overlap": 150},
			wantCodes: []string{CodeConstraint},
		},
		{
			name: "overlap without chunk size accepted",
			args: map[string]any{"file": file, "collection_name": "docs", "overlap": 50},
		},
		{
			name:      "metadata must be an object",
			args:      map[string]any{"file": file, "collection_name": "docs", "metadata": "k=v"},
			wantCodes: []string{CodeInvalidType},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, issues := Validate(spec, tt.args)
			assert.Equal(t, tt.wantCodes, issueCodes(issues))
		})
	}
}

func TestValidateTaskStatus(t *testing.T) {
	spec := Catalog()[OpTaskStatus]

	t.Run("valid uuid", func(t *testing.T) {
		normalized, issues := Validate(spec, map[string]any{"task_id": "6a1f0e7e-3c1b-4c9a-8f2d-9b7a51e44c10"})
		require.Empty(t, issues)
		assert.Equal(t, "6a1f0e7e-3c1b-4c9a-8f2d-9b7a51e44c10", normalized["task_id"])
	})

	t.Run("non-uuid rejected", func(t *testing.T) {
		_, issues := Validate(spec, map[string]any{"task_id": "task-123"})
		require.Len(t, issues, 1)
		assert.Equal(t, CodeInvalidFormat, issues[0].Code)
	})

	t.Run("missing task id", func(t *testing.T) {
		_, issues := Validate(spec, map[string]any{})
		require.Len(t, issues, 1)
		assert.Equal(t, CodeRequired, issues[0].Code)
	})
}

func TestValidatePricingRejectsAnyArgument(t *testing.T) {
	spec := Catalog()[OpPricing]

	normalized, issues := Validate(spec, map[string]any{})
	assert.Empty(t, issues)
	assert.Empty(t, normalized)

	_, issues = Validate(spec, map[string]any{"currency": "usd"})
	require.Len(t, issues, 1)
	assert.Equal(t, CodeUnknownField, issues[0].Code)
}

// Valid in-range integers always normalize to int64, never another shape.
func TestValidateIntNormalization(t *testing.T) {
	spec := Catalog()[OpTextToImage]
	rapid.Check(t, func(t *rapid.T) {
		width := rapid.Int64Range(64, 4096).Draw(t, "width")
		normalized, issues := Validate(spec, map[string]any{
			"prompt": "fox",
			"width":  width,
		})
		if len(issues) > 0 {
			t.Fatalf("unexpected issues: %v", issues)
		}
		got, ok := normalized["width"].(int64)
		if !ok {
			t.Fatalf("width normalized to %T, want int64", normalized["width"])
		}
		if got != width {
			t.Fatalf("width %d normalized to %d", width, got)
		}
	})
}

func TestCatalogCoversAllOperations(t *testing.T) {
	catalog := Catalog()
	for _, name := range []string{
		OpTextToImage, OpImageToImage, OpInpainting, OpReplaceBackground,
		OpTextToSpeech, OpChat, OpStreamChat, OpStoreVectorDB,
		OpTaskStatus, OpPricing,
	} {
		spec, ok := catalog[name]
		require.True(t, ok, "operation %s missing from catalog", name)
		assert.Equal(t, name, spec.Name)
		assert.NotEmpty(t, spec.Path)
		assert.NotEmpty(t, spec.Method)
	}
	assert.Len(t, catalog, 10)
}

func TestCatalogMethodsMatchBodyKind(t *testing.T) {
	for name, spec := range Catalog() {
		if spec.Method == "GET" {
			assert.Equal(t, BodyNone, spec.Body, "GET operation %s must not carry a body", name)
		} else {
			assert.NotEqual(t, BodyNone, spec.Body, "POST operation %s must declare a body", name)
		}
	}
}
