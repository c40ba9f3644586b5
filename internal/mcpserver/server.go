// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notepress publishing tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notepress/internal/apperr"
	"github.com/starford/notepress/internal/models"
	"github.com/starford/notepress/internal/prompt"
	"github.com/starford/notepress/internal/publisher"
	"github.com/starford/notepress/internal/taxonomy"
)

// PostFormatURI is the resource describing published posts.
const PostFormatURI = "notepress://post-format"

// Publisher is the publishing surface the tools call into.
type Publisher interface {
	Publish(ctx context.Context, opts publisher.Options) (*publisher.Report, error)
	Taxonomy() (tags, categories *taxonomy.Index, err error)
	ListPosts() ([]models.PostMetadata, error)
	ReadPost(name string) ([]byte, error)
}

// Server wraps the MCP server with notepress tools.
type Server struct {
	mcp *server.MCPServer
	svc Publisher
}

// New creates a new MCP server with all tools registered.
func New(svc Publisher, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"notepress",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_taxonomy",
		mcp.WithDescription("List the tags and categories already used by published posts, most used first. "+
			"Reuse these names when publishing so the site taxonomy stays consistent."),
	), s.listTaxonomy)

	s.mcp.AddTool(mcp.NewTool("publish_note",
		mcp.WithDescription("Publish an Obsidian note into the site: copy its local images into the site "+
			"asset directory, rewrite embeds to site URLs, complete the YAML header and write the post. "+
			"Tags and category are only applied when the note has no header or no tags. "+
			"See the "+PostFormatURI+" resource for the resulting format."),
		mcp.WithString("source_path", mcp.Required(), mcp.Description("Absolute path to the .md note in the vault")),
		mcp.WithString("title", mcp.Description("Title override (default: file name without extension)")),
		mcp.WithString("tags", mcp.Description("Comma-separated tag names")),
		mcp.WithString("category", mcp.Description("Category name")),
		mcp.WithString("excerpt", mcp.Description("Excerpt for notes without a header")),
		mcp.WithBoolean("push", mcp.Description("Stage, commit and push the site after writing")),
	), s.publishNote)

	s.mcp.AddTool(mcp.NewTool("read_post",
		mcp.WithDescription("Read a published post. Without a name, list the published posts."),
		mcp.WithString("name", mcp.Description("Post file name, e.g. My-Note.md")),
	), s.readPost)

	s.mcp.AddResource(
		mcp.NewResource(PostFormatURI, "Post Format",
			mcp.WithResourceDescription("Header fields and image conventions of published posts."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
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

func (s *Server) listTaxonomy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, cats, err := s.svc.Taxonomy()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string][]taxonomy.Entry{
		"tags":       nonNil(tags.Entries()),
		"categories": nonNil(cats.Entries()),
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) publishNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("source_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var cats []string
	if c := strings.TrimSpace(req.GetString("category", "")); c != "" {
		cats = []string{c}
	}

	report, err := s.svc.Publish(ctx, publisher.Options{
		SourcePath:  src,
		Title:       strings.TrimSpace(req.GetString("title", "")),
		Interaction: prompt.FromValues(splitCSV(req.GetString("tags", "")), cats, req.GetString("excerpt", "")),
		Push:        req.GetBool("push", false),
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidInput) || errors.Is(err, apperr.ErrEncoding) || errors.Is(err, apperr.ErrSerialize) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("publish failed: %v", err)), nil
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := strings.TrimSpace(req.GetString("name", ""))
	if name == "" {
		posts, err := s.svc.ListPosts()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(posts) == 0 {
			return mcp.NewToolResultText("no posts published"), nil
		}
		paths := make([]string, 0, len(posts))
		for _, p := range posts {
			paths = append(paths, p.Path)
		}
		return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
	}

	data, err := s.svc.ReadPost(name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", name)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readPostFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PostFormatURI,
			MIMEType: "text/markdown",
			Text:     PostFormat,
		},
	}, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nonNil(e []taxonomy.Entry) []taxonomy.Entry {
	if e == nil {
		return []taxonomy.Entry{}
	}
	return e
}
