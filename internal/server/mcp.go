// Package server exposes the operation catalog as MCP tools over stdio.
package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/qolaba/qolaba-mcp-go/internal/envelope"
	"github.com/qolaba/qolaba-mcp-go/internal/observability"
	"github.com/qolaba/qolaba-mcp-go/internal/orchestrator"
	"github.com/qolaba/qolaba-mcp-go/internal/reqcontext"
)

const (
	serverName    = "qolaba-mcp-go"
	serverVersion = "1.0.0"

	// How long Shutdown waits for in-flight tool calls to drain.
	drainTimeout = 30 * time.Second
)

// BridgeServer is the MCP-facing surface. Every registered tool routes
// through the orchestrator; server_health is answered locally.
type BridgeServer struct {
	server *mcpserver.MCPServer
	orch   *orchestrator.Orchestrator
	health *observability.Health
	logger *zap.Logger

	// Tracks in-flight tool handlers for graceful drain.
	inflight sync.WaitGroup
}

// NewBridgeServer builds the MCP server and registers one tool per catalog
// operation plus server_health.
func NewBridgeServer(orch *orchestrator.Orchestrator, health *observability.Health, logger *zap.Logger) *BridgeServer {
	mcpServer := mcpserver.NewMCPServer(
		serverName,
		serverVersion,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	b := &BridgeServer{
		server: mcpServer,
		orch:   orch,
		health: health,
		logger: logger,
	}
	b.registerTools()
	return b
}

// GetMCPServer exposes the underlying server for alternative transports.
func (b *BridgeServer) GetMCPServer() *mcpserver.MCPServer {
	return b.server
}

// Serve runs the stdio transport until the client disconnects.
func (b *BridgeServer) Serve() error {
	b.logger.Info("starting MCP server", zap.String("transport", "stdio"))
	return mcpserver.ServeStdio(b.server)
}

// Shutdown waits for in-flight tool calls to finish, up to drainTimeout.
func (b *BridgeServer) Shutdown() {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logger.Info("all in-flight operations drained")
	case <-time.After(drainTimeout):
		b.logger.Warn("shutdown drain timed out", zap.Duration("timeout", drainTimeout))
	}
}

// registerTools declares every catalog operation and the health probe.
func (b *BridgeServer) registerTools() {
	for name, spec := range b.orch.Catalog() {
		tool := toolFromSpec(name, spec)
		b.server.AddTool(tool, b.makeOperationHandler(name))
	}

	healthTool := mcp.NewTool("server_health",
		mcp.WithDescription("Report the bridge's own health: auth mode, environment, uptime and operation counters. Never contacts the upstream API."),
	)
	b.server.AddTool(healthTool, b.handleServerHealth)

	b.logger.Info("registered tools", zap.Int("count", len(b.orch.Catalog())+1))
}

// makeOperationHandler binds one catalog operation to an MCP handler. The
// orchestrator never returns an error; the envelope carries all outcomes.
func (b *BridgeServer) makeOperationHandler(operation string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b.inflight.Add(1)
		defer b.inflight.Done()

		args := request.GetArguments()
		traceID := reqcontext.NewTraceID()
		ctx = reqcontext.WithTraceID(ctx, traceID)

		env := b.orch.Execute(ctx, operation, args, traceID)
		return envelopeResult(env), nil
	}
}

func (b *BridgeServer) handleServerHealth(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b.inflight.Add(1)
	defer b.inflight.Done()

	snapshot := b.health.Snapshot(time.Now())
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return mcp.NewToolResultError("failed to serialize health snapshot"), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// envelopeResult serializes the envelope as the tool's text content. Failure
// envelopes become tool errors so clients can branch on isError without
// parsing the body.
func envelopeResult(env envelope.Envelope) *mcp.CallToolResult {
	payload, err := json.Marshal(env)
	if err != nil {
		// Envelopes only hold JSON-safe values, so this is unreachable in
		// practice; still fail closed with the trace id.
		return mcp.NewToolResultError(`{"ok":false,"kind":"internal","trace_id":"` + env.TraceID() + `","message":"failed to serialize response"}`)
	}
	if env.OK() {
		return mcp.NewToolResultText(string(payload))
	}
	return mcp.NewToolResultError(string(payload))
}
