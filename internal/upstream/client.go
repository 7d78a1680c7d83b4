// Package upstream is the single outbound HTTP path to the Qolaba API: one
// pooled client, auth header injection, body encoding, response
// classification, the retry policy and the client-side rate limiter.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qolaba/qolaba-mcp-go/internal/auth"
	"github.com/qolaba/qolaba-mcp-go/internal/config"
	"github.com/qolaba/qolaba-mcp-go/internal/observability"
	"github.com/qolaba/qolaba-mcp-go/internal/reqcontext"
	"github.com/qolaba/qolaba-mcp-go/internal/schema"
)

const (
	userAgent         = "qolaba-mcp-go/1.0"
	maxConnectTimeout = 5 * time.Second
	maxIdleConns      = 20
	idleConnTimeout   = 30 * time.Second
)

// NewHTTPClient builds the long-lived outbound client from settings: proxy,
// TLS verification, connect timeout min(5s, request timeout), connection
// pooling. Shared by the API transport and the OAuth token endpoint.
func NewHTTPClient(st *config.Settings) *http.Client {
	connectTimeout := maxConnectTimeout
	if st.RequestTimeout < connectTimeout {
		connectTimeout = st.RequestTimeout
	}

	transport := &http.Transport{
		Proxy: proxyFunc(st),
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConns,
		IdleConnTimeout:     idleConnTimeout,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !st.VerifySSL}, //nolint:gosec // verify_ssl=false is an explicit operator choice
	}

	return &http.Client{
		Transport: transport,
		Timeout:   st.RequestTimeout,
	}
}

func proxyFunc(st *config.Settings) func(*http.Request) (*url.URL, error) {
	if st.HTTPProxy == "" && st.HTTPSProxy == "" {
		return http.ProxyFromEnvironment
	}
	return func(req *http.Request) (*url.URL, error) {
		raw := st.HTTPProxy
		if req.URL.Scheme == "https" && st.HTTPSProxy != "" {
			raw = st.HTTPSProxy
		}
		if raw == "" {
			return nil, nil
		}
		return url.Parse(raw)
	}
}

// Client sends operation requests to the upstream API.
type Client struct {
	http    *http.Client
	baseURL string
	auth    auth.Provider
	limiter *RateLimiter
	logger  *zap.Logger
	metrics *observability.Metrics
	timeout time.Duration
}

// NewClient wires the transport. The auth provider is consulted immediately
// before each send so refreshed tokens are always picked up.
func NewClient(st *config.Settings, httpClient *http.Client, authp auth.Provider, logger *zap.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(st.APIBaseURL, "/"),
		auth:    authp,
		limiter: NewRateLimiter(st.RateLimit),
		logger:  logger,
		metrics: metrics,
		timeout: st.RequestTimeout,
	}
}

// Close releases idle connections on shutdown.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Send performs one upstream attempt. Network failures return a
// *TransportError; auth failures are returned unwrapped so the caller can map
// them; every HTTP response, success or not, comes back as a RawResult.
func (c *Client) Send(ctx context.Context, method, path string, body map[string]any, kind schema.BodyKind, traceID string) (*RawResult, error) {
	if err := c.limiter.Acquire(ctx, c.timeout); err != nil {
		if errors.Is(err, ErrRateLimitLocal) {
			return nil, &TransportError{Reason: ReasonRateLimitLocal, Err: err}
		}
		return nil, classifyTransportErr(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Reason: ReasonCancelled, Err: err}
	}

	reader, contentType, err := encodeBody(body, kind)
	if err != nil {
		return nil, &TransportError{Reason: ReasonEncode, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, &TransportError{Reason: ReasonEncode, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(reqcontext.TraceIDHeader, traceID)

	name, value, err := c.auth.HeaderFor(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	req.Header.Set(name, value)

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.RecordAPIRequest(path, method, 0, elapsed)
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordAPIRequest(path, method, 0, time.Since(start))
		return nil, classifyTransportErr(err)
	}

	c.metrics.RecordAPIRequest(path, method, resp.StatusCode, elapsed)

	result := &RawResult{
		Status:      resp.StatusCode,
		Headers:     resp.Header,
		ContentType: responseContentType(resp.Header),
		Body:        raw,
		Class:       Classify(resp.StatusCode),
	}
	if result.ContentType == "application/json" && len(raw) > 0 {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			result.JSON = decoded
		} else {
			c.logger.Debug("failed to decode JSON response body",
				zap.String("trace_id", traceID),
				zap.Int("status", resp.StatusCode),
				zap.Error(err))
		}
	}
	result.RetryAfter, result.HasRetryAfter = parseRetryAfter(resp.Header, time.Now())

	c.logger.Debug("upstream response",
		zap.String("trace_id", traceID),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("class", string(result.Class)),
		zap.Duration("latency", elapsed))

	return result, nil
}

func responseContentType(headers http.Header) string {
	raw := headers.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return raw
	}
	return mediaType
}

func classifyTransportErr(err error) *TransportError {
	switch {
	case errors.Is(err, context.Canceled):
		return &TransportError{Reason: ReasonCancelled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Reason: ReasonTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Reason: ReasonTimeout, Err: err}
	}
	return &TransportError{Reason: ReasonNetwork, Err: err}
}

// encodeBody renders the validated arguments. JSON bodies are marshaled
// as-is; multipart bodies send []byte values as file parts (filename taken
// from the field name) and everything else as text fields.
func encodeBody(body map[string]any, kind schema.BodyKind) (io.Reader, string, error) {
	switch kind {
	case BodyKindNone:
		return nil, "", nil
	case BodyKindJSON:
		payload, err := json.Marshal(jsonSafe(body))
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode JSON body: %w", err)
		}
		return bytes.NewReader(payload), "application/json", nil
	case BodyKindMultipart:
		return encodeMultipart(body)
	default:
		return nil, "", fmt.Errorf("unsupported body kind %q", kind)
	}
}

// Aliases so callers can pass schema constants without a conversion.
const (
	BodyKindNone      = schema.BodyNone
	BodyKindJSON      = schema.BodyJSON
	BodyKindMultipart = schema.BodyMultipart
)

// jsonSafe keeps []byte out of JSON bodies: encoding/json would base64 them
// implicitly, which is the wanted wire form, so pass through unchanged.
func jsonSafe(body map[string]any) map[string]any {
	if body == nil {
		return map[string]any{}
	}
	return body
}

func encodeMultipart(body map[string]any) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	// Deterministic part order keeps request logs and tests stable.
	names := make([]string, 0, len(body))
	for name := range body {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch v := body[name].(type) {
		case []byte:
			part, err := writer.CreateFormFile(name, name)
			if err != nil {
				return nil, "", fmt.Errorf("failed to create file part %q: %w", name, err)
			}
			if _, err := part.Write(v); err != nil {
				return nil, "", fmt.Errorf("failed to write file part %q: %w", name, err)
			}
		case string:
			if err := writer.WriteField(name, v); err != nil {
				return nil, "", fmt.Errorf("failed to write field %q: %w", name, err)
			}
		case map[string]any:
			encoded, err := json.Marshal(v)
			if err != nil {
				return nil, "", fmt.Errorf("failed to encode field %q: %w", name, err)
			}
			if err := writer.WriteField(name, string(encoded)); err != nil {
				return nil, "", fmt.Errorf("failed to write field %q: %w", name, err)
			}
		case int64:
			if err := writer.WriteField(name, strconv.FormatInt(v, 10)); err != nil {
				return nil, "", fmt.Errorf("failed to write field %q: %w", name, err)
			}
		case float64:
			if err := writer.WriteField(name, strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
				return nil, "", fmt.Errorf("failed to write field %q: %w", name, err)
			}
		case bool:
			if err := writer.WriteField(name, strconv.FormatBool(v)); err != nil {
				return nil, "", fmt.Errorf("failed to write field %q: %w", name, err)
			}
		default:
			if err := writer.WriteField(name, fmt.Sprint(v)); err != nil {
				return nil, "", fmt.Errorf("failed to write field %q: %w", name, err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}
