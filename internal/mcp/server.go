package mcp

import (
	"context"
	"log/slog"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/smdnano/internal/policy"
)

// Server exposes read-only policy inspection as MCP tools. No tool
// derives or returns a password.
type Server struct {
	mcpServer *mcpsdk.Server
	engine    *policy.Engine
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces the wall clock used for policy evaluation.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates an MCP server over engine with its tools registered.
func New(engine *policy.Engine, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine: engine,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "smdnano",
			Version: "0.1.0",
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// registerTools adds the smdnano tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "smdnano_policy",
		Description: "Evaluate a URL against the loaded site policy. Returns access, trust tier, domain and rotation counters. Never returns a password.",
	}, s.handlePolicy)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "smdnano_inspect",
		Description: "Grade a URL before generation: insecure protocol, phishing traits or invalid input.",
	}, s.handleInspect)
}
