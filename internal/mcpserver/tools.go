package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/kingrea/phasegen/internal/memory"
)

// GetTool handles memory_get.
type GetTool struct {
	store *memory.Store
}

// Definition returns the memory_get schema.
func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_get",
		mcp.WithDescription("Read one generated document from the phase store."),
		mcp.WithString("phase", mcp.Required(), mcp.Description("Phase namespace, e.g. design or request")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Document key, e.g. high_level_design")),
	)
}

// Handle processes a memory_get call.
func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phase, key, errResult := phaseAndKey(req)
	if errResult != nil {
		return errResult, nil
	}
	value, ok := t.store.Lookup(phase, key)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no value stored for %s/%s", phase, key)), nil
	}
	return mcp.NewToolResultText(value), nil
}

// SetTool handles memory_set.
type SetTool struct {
	store   *memory.Store
	backend memory.Backend
	logger  *zap.Logger
}

// Definition returns the memory_set schema.
func (t *SetTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_set",
		mcp.WithDescription("Insert or overwrite a document in the phase store. Later pipeline steps read it back."),
		mcp.WithString("phase", mcp.Required(), mcp.Description("Phase namespace")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Document key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("Document text")),
	)
}

// Handle processes a memory_set call. The value is kept even if the
// snapshot cannot be persisted.
func (t *SetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phase, key, errResult := phaseAndKey(req)
	if errResult != nil {
		return errResult, nil
	}
	value := req.GetString("value", "")
	t.store.Set(phase, key, value)
	if t.backend != nil {
		if err := t.store.Persist(ctx, t.backend); err != nil {
			t.logger.Warn("snapshot after memory_set failed", zap.Error(err))
			return mcp.NewToolResultText(fmt.Sprintf("stored %s/%s (%d bytes); snapshot failed: %v", phase, key, len(value), err)), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("stored %s/%s (%d bytes)", phase, key, len(value))), nil
}

// PhaseTool handles memory_phase.
type PhaseTool struct {
	store *memory.Store
}

// Definition returns the memory_phase schema.
func (t *PhaseTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_phase",
		mcp.WithDescription("Return every key/value pair of a phase as a JSON object. Unknown phases return {}."),
		mcp.WithString("phase", mcp.Required(), mcp.Description("Phase namespace")),
	)
}

// Handle processes a memory_phase call.
func (t *PhaseTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phase := strings.TrimSpace(req.GetString("phase", ""))
	if phase == "" {
		return mcp.NewToolResultError("phase is required"), nil
	}
	encoded, err := json.MarshalIndent(t.store.Phase(phase), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode phase: %v", err)), nil
	}
	return mcp.NewToolResultText(string(encoded)), nil
}

// PhasesTool handles memory_phases.
type PhasesTool struct {
	store *memory.Store
}

// Definition returns the memory_phases schema.
func (t *PhasesTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_phases",
		mcp.WithDescription("List populated phase namespaces with their key counts."),
	)
}

// Handle processes a memory_phases call.
func (t *PhasesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phases := t.store.Phases()
	if len(phases) == 0 {
		return mcp.NewToolResultText("The store is empty."), nil
	}
	var sb strings.Builder
	for _, phase := range phases {
		fmt.Fprintf(&sb, "- %s (%d keys)\n", phase, len(t.store.Phase(phase)))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func phaseAndKey(req mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	phase := strings.TrimSpace(req.GetString("phase", ""))
	key := strings.TrimSpace(req.GetString("key", ""))
	if phase == "" || key == "" {
		return "", "", mcp.NewToolResultError("phase and key are required")
	}
	return phase, key, nil
}
