package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/loom/internal/registry"
)

func callReq(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestApplyAndSnapshot(t *testing.T) {
	reg := registry.New(registry.Options{})
	dir := t.TempDir()
	ctx := context.Background()

	res, err := applyResponseHandler(reg)(ctx, callReq(map[string]any{
		"project_id":  "app-1",
		"project_dir": dir,
		"response":    `<write path="src/a.ts" description="">export {};</write>done`,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, textContent(t, res), `"done"`)

	res, err = snapshotHandler(reg)(ctx, callReq(map[string]any{"project_id": "app-1"}))
	require.NoError(t, err)
	assert.Contains(t, textContent(t, res), "src/a.ts")
}

func TestSyncToDisk(t *testing.T) {
	reg := registry.New(registry.Options{})
	dir := t.TempDir()
	ctx := context.Background()

	_, err := applyResponseHandler(reg)(ctx, callReq(map[string]any{
		"project_id":  "app-1",
		"project_dir": dir,
		"response":    `<write path="out.txt" description="">hello</write>`,
	}))
	require.NoError(t, err)

	res, err := syncHandler(reg)(ctx, callReq(map[string]any{
		"project_id":  "app-1",
		"project_dir": dir,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestReset(t *testing.T) {
	reg := registry.New(registry.Options{})
	dir := t.TempDir()
	ctx := context.Background()

	_, err := applyResponseHandler(reg)(ctx, callReq(map[string]any{
		"project_id":  "app-1",
		"project_dir": dir,
		"response":    `<write path="a.txt" description="">1</write>`,
	}))
	require.NoError(t, err)

	res, err := resetHandler(reg)(ctx, callReq(map[string]any{"project_id": "app-1"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	assert.True(t, reg.Snapshot("app-1").Empty())
}

func TestMissingArguments(t *testing.T) {
	reg := registry.New(registry.Options{})
	ctx := context.Background()

	res, err := applyResponseHandler(reg)(ctx, callReq(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = historyHandler(reg)(ctx, callReq(map[string]any{"project_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "unknown project has no journal")
}
