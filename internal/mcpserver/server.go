// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes folder tree tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/store"
	"github.com/starford/arbor/internal/tree"
	"github.com/starford/arbor/internal/view"
)

const treeResourceURI = "arbor://tree"

// Server wraps the MCP server with folder tools backed by a store.
type Server struct {
	mcp   *server.MCPServer
	store *store.Store
}

// New creates a new MCP server with all folder tools registered.
func New(st *store.Store) *Server {
	s := &Server{store: st}

	s.mcp = server.NewMCPServer(
		"Arbor",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_folders",
		mcp.WithDescription("Fetch the folder tree and return it as nested JSON (id, name, children)."),
	), s.listFolders)

	s.mcp.AddTool(mcp.NewTool("render_tree",
		mcp.WithDescription("Fetch the folder tree and return it as an indented text outline with ids."),
	), s.renderTree)

	s.mcp.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create a folder. Omit parent_id to create a top-level folder; "+
			"use \"root\" to create it under the root folder."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name of the new folder")),
		mcp.WithString("parent_id", mcp.Description("Id of the folder to create it in")),
	), s.createFolder)

	s.mcp.AddTool(mcp.NewTool("delete_folder",
		mcp.WithDescription("Delete a folder together with every folder below it. The root folder cannot be deleted."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Id of the folder to delete")),
	), s.deleteFolder)

	s.mcp.AddResource(
		mcp.NewResource(treeResourceURI, "Folder Tree",
			mcp.WithResourceDescription("Current folder tree as a text outline."),
			mcp.WithMIMEType("text/plain"),
		),
		s.readTreeResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listFolders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.reload(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(snap.Forest, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) renderTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.reload(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(outline(snap.Forest)), nil
}

func (s *Server) createFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil || name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	var parentID *string
	if p, err := req.RequireString("parent_id"); err == nil && p != "" {
		parentID = &p
	}

	snap, err := s.reload(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	before := snap.Forest
	if parentID != nil {
		if _, ok := tree.Find(before, *parentID); !ok {
			return mcp.NewToolResultError(fmt.Sprintf("no folder with id %s", *parentID)), nil
		}
	}

	if err := wait(ctx, s.store.CreateFolder(name, parentID)); err != nil {
		return nil, err
	}
	snap = s.store.Snapshot()
	if snap.LastError != "" {
		return mcp.NewToolResultError(snap.LastError), nil
	}

	created, ok := tree.Added(before, snap.Forest, parentID)
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf("created: %s", name)), nil
	}
	out, _ := json.Marshal(created)
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) deleteFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := wait(ctx, s.store.DeleteFolder(id)); err != nil {
		return nil, err
	}
	if msg := s.store.Snapshot().LastError; msg != "" {
		return mcp.NewToolResultError(msg), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) readTreeResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap, err := s.reload(ctx)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      treeResourceURI,
			MIMEType: "text/plain",
			Text:     outline(snap.Forest),
		},
	}, nil
}

// reload refreshes the store and reports a failed load as an error.
func (s *Server) reload(ctx context.Context) (store.Snapshot, error) {
	if err := wait(ctx, s.store.Load()); err != nil {
		return store.Snapshot{}, err
	}
	snap := s.store.Snapshot()
	if snap.LastError != "" {
		return snap, errors.New(snap.LastError)
	}
	return snap, nil
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func outline(forest []models.Node) string {
	v := view.New(view.WithIDs())
	v.ExpandAll(forest)
	var buf bytes.Buffer
	v.RenderForest(&buf, forest)
	return buf.String()
}
