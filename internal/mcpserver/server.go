// Package mcpserver exposes the build engine to agents over MCP. The
// tools mirror the registry's surface: apply a tagged response, inspect
// the staged state, flush to disk, or discard.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/loom/internal/registry"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with the engine tools registered.
func New(reg *registry.Registry) *server.MCPServer {
	s := server.NewMCPServer(
		"loom",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	s.AddTool(mcp.NewTool("apply_response",
		mcp.WithDescription("Parse a tagged agent response and stage its file operations on the project's overlay. Returns the chat content, summary, and any parse or apply problems."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Stable project identifier")),
		mcp.WithString("project_dir", mcp.Required(), mcp.Description("Absolute path of the project directory")),
		mcp.WithString("response", mcp.Required(), mcp.Description("Full agent response text containing protocol tags")),
	), applyResponseHandler(reg))

	s.AddTool(mcp.NewTool("snapshot",
		mcp.WithDescription("List the project's staged writes and deletes without touching disk."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Stable project identifier")),
	), snapshotHandler(reg))

	s.AddTool(mcp.NewTool("sync_to_disk",
		mcp.WithDescription("Flush the project's staged state to its real directory. Per-path failures are reported, not fatal."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Stable project identifier")),
		mcp.WithString("project_dir", mcp.Required(), mcp.Description("Absolute path of the project directory")),
	), syncHandler(reg))

	s.AddTool(mcp.NewTool("reset",
		mcp.WithDescription("Discard the project's staged state. The real directory is untouched."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Stable project identifier")),
	), resetHandler(reg))

	s.AddTool(mcp.NewTool("history",
		mcp.WithDescription("List the project's journaled turns, newest first."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Stable project identifier")),
		mcp.WithNumber("limit", mcp.Description("Maximum turns to return; 0 for all")),
	), historyHandler(reg))

	return s
}

// ServeStdio runs the server over stdin/stdout until EOF.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func applyResponseHandler(reg *registry.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := projectArg(req, true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		response, err := req.RequireString("response")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		turn, err := reg.ApplyTurn(ctx, p, response, nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(turn), nil
	}
}

func snapshotHandler(reg *registry.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("project_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(reg.Snapshot(id)), nil
	}
}

func syncHandler(reg *registry.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := projectArg(req, true)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		report, err := reg.SyncToDisk(ctx, p)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(report), nil
	}
}

func resetHandler(reg *registry.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("project_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		reg.Reset(id)
		return mcp.NewToolResultText(fmt.Sprintf("staged state discarded for %s", id)), nil
	}
}

func historyHandler(reg *registry.Registry) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("project_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		j := reg.Journal(id)
		if j == nil {
			return mcp.NewToolResultError(fmt.Sprintf("no journal for project %s (journaling off or project unknown)", id)), nil
		}
		limit := req.GetInt("limit", 0)
		turns, err := j.Turns(limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(turns), nil
	}
}

func projectArg(req mcp.CallToolRequest, needDir bool) (registry.Project, error) {
	id, err := req.RequireString("project_id")
	if err != nil {
		return registry.Project{}, err
	}
	p := registry.Project{ID: id}
	if needDir {
		dir, err := req.RequireString("project_dir")
		if err != nil {
			return registry.Project{}, err
		}
		p.Dir = dir
	}
	return p, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	return mcp.NewToolResultText(oj.JSON(v, &oj.Options{Indent: 2, Sort: true}))
}

const instructions = `Loom stages file mutations emitted by an app-building agent.

Workflow:
1. apply_response with the full tagged agent response. Operations are
   staged in memory, never written to disk.
2. snapshot to inspect what is staged.
3. sync_to_disk to materialize the staged state, or reset to discard it.

Write tags replace whole files. Unknown or malformed tags stay verbatim
in the returned chat content. Command tags are recorded but never
executed.`
