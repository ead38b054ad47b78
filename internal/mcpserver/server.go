// Package mcpserver exposes the presence session as MCP tools over stdio.
package mcpserver

import (
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tools.zach/dev/cordpush/internal/app"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"presence_connect": {
		def: mcp.NewTool("presence_connect",
			mcp.WithDescription("Connect to the local Discord client under an application ID. Omit identity to use the saved one."),
			mcp.WithString("identity", mcp.Description("Discord application ID")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleConnect },
	},
	"presence_disconnect": {
		def: mcp.NewTool("presence_disconnect",
			mcp.WithDescription("Close the Discord connection. The presence disappears."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDisconnect },
	},
	"presence_update": {
		def: mcp.NewTool("presence_update",
			mcp.WithDescription("Publish state, details and elapsed time. Connects or reconnects as needed. "+
				"Elapsed time is kept running between calls when auto_advance is true; otherwise the given "+
				"time is shown unless it matches the running value. Omit all timing arguments to keep the running value."),
			mcp.WithString("identity", mcp.Description("Application ID; a different value reconnects")),
			mcp.WithString("state", mcp.Description("Lower line of the presence card")),
			mcp.WithString("details", mcp.Description("Upper line of the presence card")),
			mcp.WithString("elapsed", mcp.Description("Elapsed time as HH:MM:SS, MM:SS or SS; overrides hours/minutes/seconds")),
			mcp.WithNumber("hours", mcp.Description("Elapsed hours")),
			mcp.WithNumber("minutes", mcp.Description("Elapsed minutes, not normalized")),
			mcp.WithNumber("seconds", mcp.Description("Elapsed seconds, not normalized")),
			mcp.WithString("large_image", mcp.Description("Large image asset key")),
			mcp.WithString("large_text", mcp.Description("Large image tooltip")),
			mcp.WithString("small_image", mcp.Description("Small image asset key")),
			mcp.WithString("small_text", mcp.Description("Small image tooltip")),
			mcp.WithBoolean("auto_advance", mcp.Description("Keep the elapsed time counting between updates")),
			mcp.WithNumber("interval", mcp.Description("Auto-update period in seconds to save")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdate },
	},
	"presence_reset_timer": {
		def: mcp.NewTool("presence_reset_timer",
			mcp.WithDescription("Reset the elapsed time to zero, or set it when elapsed is given. Takes effect on the next update."),
			mcp.WithString("elapsed", mcp.Description("New elapsed time as HH:MM:SS, MM:SS or SS")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleResetTimer },
	},
	"presence_clear": {
		def: mcp.NewTool("presence_clear",
			mcp.WithDescription("Remove the presence but stay connected."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClear },
	},
	"presence_history": {
		def: mcp.NewTool("presence_history",
			mcp.WithDescription("List or clear recently published state and details values, most recent first."),
			mcp.WithString("field", mcp.Description("Limit to one field"), mcp.Enum("state", "details")),
			mcp.WithString("action", mcp.Description("list (default) or clear"), mcp.Enum("list", "clear")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
}

// AllToolNames returns the registered tool names, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewServer creates an MCP server with every presence tool registered.
func NewServer(sess *app.Session, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"cordpush",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(sess)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools on stdin/stdout until the client disconnects.
func Run(sess *app.Session, version string) error {
	return server.ServeStdio(NewServer(sess, version))
}
