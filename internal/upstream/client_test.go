package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qolaba/qolaba-mcp-go/internal/auth"
	"github.com/qolaba/qolaba-mcp-go/internal/config"
	"github.com/qolaba/qolaba-mcp-go/internal/observability"
)

func testSettings(baseURL string) *config.Settings {
	return &config.Settings{
		Env:            config.EnvTest,
		APIBaseURL:     baseURL,
		APIKey:         "test-key",
		RequestTimeout: 5 * time.Second,
		VerifySSL:      true,
		Retry:          config.RetrySettings{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Jitter: 0},
		RateLimit:      config.RateLimitSettings{MaxRequests: 100, Window: time.Second},
	}
}

func newTestClient(t *testing.T, backend *httptest.Server) *Client {
	t.Helper()
	st := testSettings(backend.URL)
	provider := auth.NewProvider(st, backend.Client(), zap.NewNop())
	return NewClient(st, backend.Client(), provider, zap.NewNop(), observability.NewMetrics())
}

func TestSendJSONRequest(t *testing.T) {
	var captured struct {
		method      string
		path        string
		contentType string
		auth        string
		traceID     string
		userAgent   string
		accept      string
		body        map[string]any
	}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.contentType = r.Header.Get("Content-Type")
		captured.auth = r.Header.Get("Authorization")
		captured.traceID = r.Header.Get("X-Request-Id")
		captured.userAgent = r.Header.Get("User-Agent")
		captured.accept = r.Header.Get("Accept")
		_ = json.NewDecoder(r.Body).Decode(&captured.body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"task_id":"6a1f0e7e-3c1b-4c9a-8f2d-9b7a51e44c10","status":"pending"}`))
	}))
	defer backend.Close()

	client := newTestClient(t, backend)
	res, err := client.Send(context.Background(), "POST", "/text-to-image",
		map[string]any{"prompt": "a red fox", "width": int64(512)}, BodyKindJSON, "trace-1")
	require.NoError(t, err)

	assert.Equal(t, "POST", captured.method)
	assert.Equal(t, "/text-to-image", captured.path)
	assert.Equal(t, "application/json", captured.contentType)
	assert.Equal(t, "Bearer test-key", captured.auth)
	assert.Equal(t, "trace-1", captured.traceID)
	assert.Equal(t, "qolaba-mcp-go/1.0", captured.userAgent)
	assert.Equal(t, "application/json", captured.accept)
	assert.Equal(t, "a red fox", captured.body["prompt"])
	assert.Equal(t, float64(512), captured.body["width"])

	assert.Equal(t, http.StatusAccepted, res.Status)
	assert.Equal(t, ClassSuccess, res.Class)
	require.NotNil(t, res.JSON)
	assert.Equal(t, "pending", res.JSON["status"])
}

func TestSendMultipartRoundTrip(t *testing.T) {
	image := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		payload, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, image, payload)
		assert.Equal(t, "image", header.Filename)

		assert.Equal(t, "x", r.FormValue("prompt"))
		assert.Equal(t, "30", r.FormValue("steps"))
		assert.Equal(t, "0.75", r.FormValue("strength"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"task_id":"t"}`))
	}))
	defer backend.Close()

	client := newTestClient(t, backend)
	res, err := client.Send(context.Background(), "POST", "/image-to-image", map[string]any{
		"image":    image,
		"prompt":   "x",
		"steps":    int64(30),
		"strength": 0.75,
	}, BodyKindMultipart, "trace-2")
	require.NoError(t, err)
	assert.Equal(t, ClassSuccess, res.Class)
}

func TestSendGETHasNoBody(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pricing":{}}`))
	}))
	defer backend.Close()

	client := newTestClient(t, backend)
	res, err := client.Send(context.Background(), "GET", "/pricing", nil, BodyKindNone, "trace-3")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestSendRetryAfterParsed(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"slow down"}`))
	}))
	defer backend.Close()

	client := newTestClient(t, backend)
	res, err := client.Send(context.Background(), "GET", "/pricing", nil, BodyKindNone, "trace-4")
	require.NoError(t, err)

	assert.Equal(t, ClassRateLimited, res.Class)
	assert.True(t, res.HasRetryAfter)
	assert.Equal(t, 2*time.Second, res.RetryAfter)
}

func TestSendNonJSONBodyKeptRaw(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain text"))
	}))
	defer backend.Close()

	client := newTestClient(t, backend)
	res, err := client.Send(context.Background(), "GET", "/pricing", nil, BodyKindNone, "trace-5")
	require.NoError(t, err)

	assert.Nil(t, res.JSON)
	assert.Equal(t, "text/plain", res.ContentType)
	assert.Equal(t, []byte("plain text"), res.Body)
}

func TestSendNetworkFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	backend.Close() // connection refused from here on

	st := testSettings(backend.URL)
	provider := auth.NewProvider(st, http.DefaultClient, zap.NewNop())
	client := NewClient(st, http.DefaultClient, provider, zap.NewNop(), observability.NewMetrics())

	_, err := client.Send(context.Background(), "GET", "/pricing", nil, BodyKindNone, "trace-6")
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, ReasonNetwork, transportErr.Reason)
}

func TestSendCancelledContext(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	client := newTestClient(t, backend)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Send(ctx, "GET", "/pricing", nil, BodyKindNone, "trace-7")
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, ReasonCancelled, transportErr.Reason)
}

func TestSendBaseURLJoin(t *testing.T) {
	var gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	st := testSettings(backend.URL + "/api/v1/")
	provider := auth.NewProvider(st, backend.Client(), zap.NewNop())
	client := NewClient(st, backend.Client(), provider, zap.NewNop(), observability.NewMetrics())

	_, err := client.Send(context.Background(), "GET", "/pricing", nil, BodyKindNone, "trace-8")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/pricing", gotPath)
}

func TestSendAuthErrorPassedThrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	st := testSettings(backend.URL)
	st.APIKey = "" // auth mode none
	provider := auth.NewProvider(st, backend.Client(), zap.NewNop())
	client := NewClient(st, backend.Client(), provider, zap.NewNop(), observability.NewMetrics())

	_, err := client.Send(context.Background(), "GET", "/pricing", nil, BodyKindNone, "trace-9")
	assert.ErrorIs(t, err, auth.ErrUnconfigured)
}
