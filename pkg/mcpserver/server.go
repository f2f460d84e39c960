// Package mcpserver implements a Model Context Protocol server exposing
// the runtime's workflow execution and license inspection as MCP tools
// over stdio transport.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowrt/flowrt/pkg/atom"
	"github.com/flowrt/flowrt/pkg/gate"
	"github.com/flowrt/flowrt/pkg/license"
	"github.com/flowrt/flowrt/pkg/meter"
	"github.com/flowrt/flowrt/pkg/observability"
	"github.com/flowrt/flowrt/pkg/workflow"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "flowrt"
	// serverVersion is the MCP server implementation version.
	serverVersion = "1.0.0"

	// toolCount is the expected number of registered tools.
	toolCount = 3
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer

	// Registry resolves atom names referenced by a submitted workflow
	// definition. Required.
	Registry *atom.Registry

	// Gate admits or throttles atom invocations per the active license
	// and meter state. Required.
	Gate *gate.Gate

	// License reports the process's current license state and limits.
	// Required.
	License *license.Manager

	// Meter reports the process's current work-unit consumption.
	// Required.
	Meter *meter.Meter

	// LaneConcurrency overrides the default per-lane concurrency used by
	// runs started through flowrt_workflow_run. Nil uses
	// workflow.DefaultLaneConcurrency.
	LaneConcurrency map[workflow.Lane]int

	// SchedulerConfig supplies AtomTimeout/CoordinatorTimeout/SizeKb
	// overrides applied to every run. Zero values use the scheduler's
	// own defaults.
	SchedulerConfig workflow.SchedulerConfig
}

// Server wraps the MCP SDK server with flowrt tool registrations.
type Server struct {
	inner   *mcpsdk.Server
	mu      sync.RWMutex
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer

	runs *runTracker
}

// NewServer creates a new MCP server with all flowrt tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: serverVersion,
		},
		opts,
	)

	srv := &Server{
		inner:   inner,
		tools:   make([]string, 0, toolCount),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
		runs:    newRunTracker(deps),
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// registerTools adds all flowrt MCP tools to the server.
func (s *Server) registerTools() {
	s.registerWorkflowRunTool()
	s.registerWorkflowStatusTool()
	s.registerLicenseStatusTool()
}

func (s *Server) registerWorkflowRunTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameWorkflowRun,
		Description: workflowRunToolDescription,
	}, withMetrics(s.metrics, ToolNameWorkflowRun, withTracing(s.tracer, ToolNameWorkflowRun, s.runs.handleWorkflowRun)))

	s.trackTool(ToolNameWorkflowRun)
}

func (s *Server) registerWorkflowStatusTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameWorkflowStatus,
		Description: workflowStatusToolDescription,
	}, withMetrics(s.metrics, ToolNameWorkflowStatus, withTracing(s.tracer, ToolNameWorkflowStatus, s.runs.handleWorkflowStatus)))

	s.trackTool(ToolNameWorkflowStatus)
}

func (s *Server) registerLicenseStatusTool() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameLicenseStatus,
		Description: licenseStatusToolDescription,
	}, withMetrics(s.metrics, ToolNameLicenseStatus, withTracing(s.tracer, ToolNameLicenseStatus, s.runs.handleLicenseStatus)))

	s.trackTool(ToolNameLicenseStatus)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// withTracing wraps an MCP tool handler to create an OTel span per invocation
// and include trace_id in the response content when sampled.
func withTracing[Input any](
	tracer trace.Tracer,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics wraps an MCP tool handler to record RED metrics per invocation.
func withMetrics[Input any](
	metrics *observability.REDMetrics,
	toolName string,
	handler func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error),
) func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if metrics == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		decInflight := metrics.TrackInflight(ctx, "mcp."+toolName)
		defer decInflight()

		result, output, err := handler(ctx, req, input)

		status := "ok"
		if err != nil || (result != nil && result.IsError) {
			status = "error"
		}

		metrics.RecordRequest(ctx, "mcp."+toolName, status, time.Since(start))

		return result, output, err
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// Tool description constants.
const (
	workflowRunToolDescription = "Run a workflow definition to completion or timeout. " +
		"Accepts a JSON-encoded node/edge graph and optional seed signal values. " +
		"Returns a runId plus every signal emitted during the run."

	workflowStatusToolDescription = "Inspect a previously started workflow run by runId. " +
		"Returns whether the run is still in flight, completed, timed out, or failed, " +
		"along with the signals captured when the run settled (none while in flight)."

	licenseStatusToolDescription = "Report the process's current license state, tier, " +
		"effective limits, and work-unit meter consumption."
)
