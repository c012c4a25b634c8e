package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/phasegen/internal/mcpserver"
)

// mcpCmd exposes the phase memory to MCP clients over stdio.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the phase memory as MCP tools over stdio",
	Long: `Serve memory_get, memory_set, memory_phase and memory_phases over the
Model Context Protocol on stdin/stdout. Logs go to the log file only, since
stdout carries the protocol.`,
	Annotations: map[string]string{consoleAnnotation: "off"},
	RunE:        runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	store, backend, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	if backend != nil {
		defer backend.Close()
	}
	opts := []mcpserver.Option{
		mcpserver.WithVersion(version),
		mcpserver.WithLogger(logger),
	}
	if backend != nil {
		opts = append(opts, mcpserver.WithBackend(backend))
	}
	logger.Info("serving mcp over stdio", zap.Int("phases", len(store.Phases())))
	return mcpserver.ServeStdio(mcpserver.New(store, opts...))
}
