// Package mcpserver exposes the phase store to MCP clients over stdio, so an
// assistant can read generated documents or feed corrections back before
// the next run.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/kingrea/phasegen/internal/memory"
)

// Name is the server name reported to clients.
const Name = "phasegen"

// Option customizes New.
type Option func(*settings)

type settings struct {
	version string
	backend memory.Backend
	logger  *zap.Logger
}

// WithVersion sets the reported server version.
func WithVersion(version string) Option {
	return func(s *settings) {
		if version != "" {
			s.version = version
		}
	}
}

// WithBackend snapshots the store after every memory_set.
func WithBackend(backend memory.Backend) Option {
	return func(s *settings) {
		s.backend = backend
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds an MCP server with the memory tools registered.
func New(store *memory.Store, opts ...Option) *server.MCPServer {
	cfg := settings{version: "dev", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With(zap.String("component", "mcpserver"))

	s := server.NewMCPServer(
		Name,
		cfg.version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	getTool := &GetTool{store: store}
	s.AddTool(getTool.Definition(), getTool.Handle)

	setTool := &SetTool{store: store, backend: cfg.backend, logger: logger}
	s.AddTool(setTool.Definition(), setTool.Handle)

	phaseTool := &PhaseTool{store: store}
	s.AddTool(phaseTool.Definition(), phaseTool.Handle)

	phasesTool := &PhasesTool{store: store}
	s.AddTool(phasesTool.Definition(), phasesTool.Handle)

	logger.Debug("mcp tools registered", zap.Int("tools", 4))
	return s
}

// ServeStdio blocks serving s on stdin/stdout.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
