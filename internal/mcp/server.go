package mcp

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/clipstash/internal/config"
	"github.com/hpungsan/clipstash/internal/storage"
)

// toolEntry pairs a tool definition with the Handlers method serving it.
type toolEntry struct {
	def    mcp.Tool
	handle func(*Handlers, context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// toolRegistry is keyed by tool name.
var toolRegistry = map[string]toolEntry{
	"clip_store":   {storeToolDef, (*Handlers).HandleStore},
	"clip_fetch":   {fetchToolDef, (*Handlers).HandleFetch},
	"clip_delete":  {deleteToolDef, (*Handlers).HandleDelete},
	"clip_list":    {listToolDef, (*Handlers).HandleList},
	"clip_search":  {searchToolDef, (*Handlers).HandleSearch},
	"clip_export":  {exportToolDef, (*Handlers).HandleExport},
	"clip_rebuild": {rebuildToolDef, (*Handlers).HandleRebuild},
	"clip_cleanup": {cleanupToolDef, (*Handlers).HandleCleanup},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewServer returns an MCP server with every clip_* tool registered.
func NewServer(st *storage.Store, settings *config.Manager, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"clipstash",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(st, settings)
	for _, name := range AllToolNames() {
		entry := toolRegistry[name]
		s.AddTool(entry.def, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return entry.handle(h, ctx, req)
		})
	}
	return s
}

// Run starts the MCP server using stdio transport.
func Run(st *storage.Store, settings *config.Manager, version string) error {
	return server.ServeStdio(NewServer(st, settings, version))
}
