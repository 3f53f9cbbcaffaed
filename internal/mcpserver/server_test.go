package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/arbor/internal/folderclient"
	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/store"
	"github.com/starford/arbor/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, _ := testutil.TestServer(t)
	st := store.New(folderclient.New(srv.URL), store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(st.Close)
	return New(st)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_folders":
		result, err = srv.listFolders(ctx, req)
	case "render_tree":
		result, err = srv.renderTree(ctx, req)
	case "create_folder":
		result, err = srv.createFolder(ctx, req)
	case "delete_folder":
		result, err = srv.deleteFolder(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListFolders(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_folders", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("list error: %s", resultText(r))
	}
	var forest []models.Node
	if err := json.Unmarshal([]byte(resultText(r)), &forest); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(forest) != 1 || forest[0].ID != "root" {
		t.Errorf("forest = %+v", forest)
	}
}

func TestCreateRenderDelete(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "list_folders", map[string]interface{}{})

	r := callTool(t, srv, "create_folder", map[string]interface{}{"name": "Docs", "parent_id": "root"})
	if r.IsError {
		t.Fatalf("create error: %s", resultText(r))
	}
	var created models.Node
	if err := json.Unmarshal([]byte(resultText(r)), &created); err != nil {
		t.Fatalf("decode created: %v (%q)", err, resultText(r))
	}
	if created.Name != "Docs" || created.ID == "" {
		t.Fatalf("created = %+v", created)
	}

	r = callTool(t, srv, "render_tree", map[string]interface{}{})
	text := resultText(r)
	if !strings.Contains(text, "  ▼ Docs ("+created.ID+")") {
		t.Errorf("outline missing Docs:\n%s", text)
	}

	r = callTool(t, srv, "delete_folder", map[string]interface{}{"id": created.ID})
	if r.IsError {
		t.Fatalf("delete error: %s", resultText(r))
	}
	r = callTool(t, srv, "render_tree", map[string]interface{}{})
	if strings.Contains(resultText(r), "Docs") {
		t.Errorf("Docs still present:\n%s", resultText(r))
	}
}

func TestCreateUnknownParent(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "list_folders", map[string]interface{}{})
	r := callTool(t, srv, "create_folder", map[string]interface{}{"name": "x", "parent_id": "nope"})
	if !r.IsError {
		t.Error("expected error for unknown parent")
	}
}

func TestDeleteRootRejected(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "delete_folder", map[string]interface{}{"id": "root"})
	if !r.IsError || resultText(r) != store.MsgInvalidID {
		t.Errorf("delete root = %q (error=%v)", resultText(r), r.IsError)
	}
}

func TestDeleteServiceFailure(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "delete_folder", map[string]interface{}{"id": "missing"})
	if !r.IsError || resultText(r) != store.MsgDeleteFailed {
		t.Errorf("delete missing = %q (error=%v)", resultText(r), r.IsError)
	}
}
