// Package orchestrator runs the validate → call → normalize pipeline for
// every tool invocation. It never returns an error to the caller: each
// outcome, including panics, becomes an envelope.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/qolaba/qolaba-mcp-go/internal/auth"
	"github.com/qolaba/qolaba-mcp-go/internal/config"
	"github.com/qolaba/qolaba-mcp-go/internal/envelope"
	"github.com/qolaba/qolaba-mcp-go/internal/observability"
	"github.com/qolaba/qolaba-mcp-go/internal/reqcontext"
	"github.com/qolaba/qolaba-mcp-go/internal/schema"
	"github.com/qolaba/qolaba-mcp-go/internal/upstream"
)

// Orchestrator coordinates schema validation, the upstream client and the
// retry policy. One instance serves all concurrent invocations.
type Orchestrator struct {
	client  *upstream.Client
	auth    auth.Provider
	catalog map[string]*schema.OperationSpec
	policy  *upstream.Policy
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New builds the orchestrator from validated settings and shared components.
func New(st *config.Settings, client *upstream.Client, authp auth.Provider, logger *zap.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		client:  client,
		auth:    authp,
		catalog: schema.Catalog(),
		policy:  upstream.NewPolicy(st.Retry),
		timeout: st.RequestTimeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Catalog exposes the operation table for tool registration.
func (o *Orchestrator) Catalog() map[string]*schema.OperationSpec {
	return o.catalog
}

// Execute runs one operation end to end and always returns an envelope.
// An empty traceID generates a fresh one.
func (o *Orchestrator) Execute(ctx context.Context, operation string, args map[string]any, traceID string) (env envelope.Envelope) {
	traceID = reqcontext.GetOrGenerate(traceID)
	start := time.Now()
	attempts := 0

	defer func() {
		if r := recover(); r != nil {
			// Scrubbed: the panic value may embed request data.
			env = envelope.Internal(traceID, "unexpected internal error")
			o.logger.Error("panic during operation execution",
				zap.String("trace_id", traceID),
				zap.String("operation", operation),
				zap.Any("panic", r))
		}
		outcome := "success"
		if !env.OK() {
			outcome = string(env.Kind())
		}
		latency := time.Since(start)
		o.metrics.RecordOperation(operation, outcome, latency)
		o.logger.Info("operation completed",
			zap.String("trace_id", traceID),
			zap.String("operation", operation),
			zap.Int("attempts", attempts),
			zap.Int64("latency_ms", latency.Milliseconds()),
			zap.String("outcome", outcome))
	}()

	spec, ok := o.catalog[operation]
	if !ok {
		return envelope.Internal(traceID, fmt.Sprintf("unknown operation %q", operation))
	}

	normalized, issues := schema.Validate(spec, args)
	if len(issues) > 0 {
		return envelope.Validation(traceID, issues)
	}

	path, body := renderPath(spec, normalized)

	// Soft upper bound across all attempts including backoff waits.
	ctx, cancel := context.WithTimeout(ctx, o.timeout*time.Duration(o.policy.MaxAttempts))
	defer cancel()

	sched := o.policy.NewSchedule()
	authStaleUsed := false
	var lastRes *upstream.RawResult
	var lastTransport *upstream.TransportError

	for attempts < o.policy.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return o.cancelledEnvelope(traceID, err, attempts)
		}
		attempts++

		res, err := o.client.Send(ctx, spec.Method, path, body, spec.Body, traceID)
		if err != nil {
			var refreshErr *auth.RefreshError
			switch {
			case errors.As(err, &refreshErr):
				return envelope.Upstream(traceID, refreshErr.Status, "auth_refresh_failed",
					"OAuth token refresh failed", nil, 0)
			case errors.Is(err, auth.ErrUnconfigured):
				return envelope.Internal(traceID, "no authentication configured")
			}

			var transportErr *upstream.TransportError
			if !errors.As(err, &transportErr) {
				return envelope.Internal(traceID, "unexpected transport failure")
			}
			lastTransport, lastRes = transportErr, nil
			if transportErr.Reason == upstream.ReasonCancelled {
				return o.cancelledEnvelope(traceID, transportErr.Err, attempts)
			}
			if attempts < o.policy.MaxAttempts {
				if err := o.wait(ctx, sched.NextDelay(nil)); err != nil {
					return o.cancelledEnvelope(traceID, err, attempts)
				}
				continue
			}
			break
		}

		switch res.Class {
		case upstream.ClassSuccess:
			return envelope.Success(operation, traceID, buildData(operation, res), res.Status, time.Since(start))

		case upstream.ClassAuthStale:
			lastRes, lastTransport = res, nil
			if !authStaleUsed {
				// One free retry: invalidate and resend without backoff.
				authStaleUsed = true
				o.auth.Invalidate()
				continue
			}
			return o.upstreamEnvelope(traceID, res)

		default:
			lastRes, lastTransport = res, nil
			if o.policy.Retryable(res.Class, authStaleUsed) && attempts < o.policy.MaxAttempts {
				if err := o.wait(ctx, sched.NextDelay(res)); err != nil {
					return o.cancelledEnvelope(traceID, err, attempts)
				}
				continue
			}
			return o.upstreamEnvelope(traceID, res)
		}
	}

	// Attempt budget exhausted: surface the last observed failure.
	if lastTransport != nil {
		return envelope.Transport(traceID,
			fmt.Sprintf("request failed after %d attempts", attempts),
			lastTransport.Reason, attempts)
	}
	if lastRes != nil {
		return o.upstreamEnvelope(traceID, lastRes)
	}
	return envelope.Internal(traceID, "no attempts were made")
}

// wait sleeps for the computed delay, honoring cancellation. A zero delay
// returns immediately.
func (o *Orchestrator) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) cancelledEnvelope(traceID string, err error, attempts int) envelope.Envelope {
	cause := upstream.ReasonCancelled
	if errors.Is(err, context.DeadlineExceeded) {
		cause = upstream.ReasonTimeout
	}
	return envelope.Transport(traceID, "request was cancelled before completion", cause, attempts)
}

func (o *Orchestrator) upstreamEnvelope(traceID string, res *upstream.RawResult) envelope.Envelope {
	code, message, details := extractErrorDetails(res)
	retryAfter := time.Duration(0)
	if res.HasRetryAfter {
		retryAfter = res.RetryAfter
	}
	return envelope.Upstream(traceID, res.Status, code, message, details, retryAfter)
}

// renderPath substitutes path parameters and removes them from the body.
func renderPath(spec *schema.OperationSpec, normalized map[string]any) (string, map[string]any) {
	path := spec.Path
	body := make(map[string]any, len(normalized))
	for name, value := range normalized {
		field := spec.FieldByName(name)
		if field != nil && field.PathParam {
			str, _ := value.(string)
			path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(str))
			continue
		}
		body[name] = value
	}
	return path, body
}

// buildData normalizes a successful upstream body into the envelope's data
// map: JSON passes through, streamed chat is aggregated, anything binary is
// base64-encoded alongside its content type.
func buildData(operation string, res *upstream.RawResult) map[string]any {
	if operation == schema.OpStreamChat {
		return upstream.AggregateStream(res.Body)
	}
	if res.JSON != nil {
		return res.JSON
	}
	if len(res.Body) == 0 {
		return map[string]any{}
	}
	return map[string]any{
		"data":         base64.StdEncoding.EncodeToString(res.Body),
		"content_type": res.ContentType,
	}
}
