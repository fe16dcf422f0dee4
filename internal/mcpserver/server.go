// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes texflow projects to an LLM assistant via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/texflow/internal/apperr"
	"github.com/starford/texflow/internal/filetree"
	"github.com/starford/texflow/internal/latex"
	"github.com/starford/texflow/internal/models"
	"github.com/starford/texflow/internal/projectservice"
)

// Server wraps the MCP server with texflow tools. Every tool acts on behalf
// of a single owner.
type Server struct {
	mcp   *server.MCPServer
	svc   *projectservice.Service
	owner string
	fetch fetcher
}

// New creates a new MCP server with all texflow tools registered.
func New(svc *projectservice.Service, ownerID string) *Server {
	s := &Server{svc: svc, owner: ownerID, fetch: newFetcher()}

	s.mcp = server.NewMCPServer(
		"texflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_projects",
		mcp.WithDescription("List the projects available to the assistant."),
	), s.listProjects)

	s.mcp.AddTool(mcp.NewTool("list_files",
		mcp.WithDescription("List every file and folder of a project as slash-separated paths."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID from list_projects")),
	), s.listFiles)

	s.mcp.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Full-text search through the names and contents of a project's files."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms; every term must match")),
	), s.searchFiles)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a source file. The returned checksum is required by propose_edit."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file (e.g. chapters/intro.tex)")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("preview_latex",
		mcp.WithDescription("Render LaTeX to the HTML preview. Pass either source, or project_id and path."),
		mcp.WithString("source", mcp.Description("LaTeX source to render")),
		mcp.WithString("project_id", mcp.Description("Project ID of a stored file")),
		mcp.WithString("path", mcp.Description("Path of a stored file")),
	), s.previewLatex)

	s.mcp.AddTool(mcp.NewTool("propose_edit",
		mcp.WithDescription("Replace the content of a file. The edit is rejected if the file "+
			"changed since it was read; read it again and retry."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the file")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Complete new content")),
		mcp.WithString("checksum", mcp.Required(), mcp.Description("Checksum from read_file")),
	), s.proposeEdit)

	s.mcp.AddTool(mcp.NewTool("create_file",
		mcp.WithDescription("Create a new source file. Missing folders are created. "+
			"Read the LaTeX subset via get_latex_contract or the texflow://latex-subset resource first."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path for the new file")),
		mcp.WithString("content", mcp.Description("Initial content")),
	), s.createFile)

	s.mcp.AddTool(mcp.NewTool("import_file",
		mcp.WithDescription("Import a LaTeX source file from an http(s) URL or a base64 data: URI."),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("path", mcp.Description("Target path; defaults to the file name from the URL")),
	), s.importFile)

	s.mcp.AddTool(mcp.NewTool("get_latex_contract",
		mcp.WithDescription("Returns the LaTeX subset the preview renders. "+
			"Call this before creating or editing files."),
	), s.getLatexContract)

	s.mcp.AddResource(
		mcp.NewResource("texflow://latex-subset", "LaTeX Subset",
			mcp.WithResourceDescription("LaTeX constructs the texflow preview understands."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLatexSubsetResource,
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

type fileEntry struct {
	Path     string      `json:"path"`
	ID       string      `json:"id"`
	Kind     models.Kind `json:"kind"`
	Checksum string      `json:"checksum,omitempty"`
}

type fileContent struct {
	Path     string `json:"path"`
	ID       string `json:"id"`
	Checksum string `json:"checksum"`
	Content  string `json:"content"`
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

// toolError turns a service error into a message the assistant can act on.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("checksum mismatch: the file changed, read it again and retry")
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

// project reads the project_id argument and checks ownership.
func (s *Server) project(ctx context.Context, req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	id, err := req.RequireString("project_id")
	if err != nil {
		return "", mcp.NewToolResultError(err.Error())
	}
	if err := s.svc.Authorize(ctx, s.owner, id); err != nil {
		return "", toolError(err)
	}
	return id, nil
}

func (s *Server) listProjects(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.svc.ListProjects(ctx, s.owner)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(projects), nil
}

func (s *Server) listFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, res := s.project(ctx, req)
	if res != nil {
		return res, nil
	}
	tree, err := s.svc.Tree(ctx, pid)
	if err != nil {
		return toolError(err), nil
	}
	entries := []fileEntry{}
	filetree.Walk(tree, func(p string, n *filetree.Node) bool {
		entries = append(entries, fileEntry{Path: p, ID: n.Record.ID, Kind: n.Record.Kind, Checksum: n.Record.Checksum})
		return true
	})
	return jsonResult(entries), nil
}

func (s *Server) searchFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, res := s.project(ctx, req)
	if res != nil {
		return res, nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, pid, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, res := s.project(ctx, req)
	if res != nil {
		return res, nil
	}
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.svc.ResolvePath(ctx, pid, p)
	if err != nil {
		return toolError(err), nil
	}
	if r.IsFolder() {
		return mcp.NewToolResultError(fmt.Sprintf("%s is a folder", p)), nil
	}
	return jsonResult(fileContent{Path: p, ID: r.ID, Checksum: r.Checksum, Content: r.Content}), nil
}

func (s *Server) previewLatex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if src, err := req.RequireString("source"); err == nil {
		return mcp.NewToolResultText(latex.Preview(src)), nil
	}
	if _, err := req.RequireString("project_id"); err != nil {
		return mcp.NewToolResultError("pass source, or project_id and path"), nil
	}
	pid, res := s.project(ctx, req)
	if res != nil {
		return res, nil
	}
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := s.svc.ResolvePath(ctx, pid, p)
	if err != nil {
		return toolError(err), nil
	}
	html, err := s.svc.Preview(ctx, pid, r.ID)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(html), nil
}

func (s *Server) proposeEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, res := s.project(ctx, req)
	if res != nil {
		return res, nil
	}
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sum, err := req.RequireString("checksum")
	if err != nil || sum == "" {
		return mcp.NewToolResultError("checksum is required; call read_file first"), nil
	}

	r, err := s.svc.ResolvePath(ctx, pid, p)
	if err != nil {
		return toolError(err), nil
	}
	updated, err := s.svc.UpdateContent(ctx, pid, r.ID, content, sum)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(fileEntry{Path: p, ID: updated.ID, Kind: updated.Kind, Checksum: updated.Checksum}), nil
}

func (s *Server) createFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pid, res := s.project(ctx, req)
	if res != nil {
		return res, nil
	}
	p, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, _ := req.RequireString("content")

	r, err := s.svc.CreateFileAt(ctx, pid, p, content)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(fileEntry{Path: p, ID: r.ID, Kind: r.Kind, Checksum: r.Checksum}), nil
}

func (s *Server) getLatexContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LatexSubsetContract), nil
}

func (s *Server) readLatexSubsetResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "texflow://latex-subset",
			MIMEType: "text/markdown",
			Text:     LatexSubsetContract,
		},
	}, nil
}
