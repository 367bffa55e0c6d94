// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the skills catalogue to LLM agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/skilldesk/internal/apperr"
	"github.com/starford/skilldesk/internal/filetree"
	"github.com/starford/skilldesk/internal/index"
	"github.com/starford/skilldesk/internal/skillservice"
)

// ContractURI addresses the skill format resource.
const ContractURI = "skilldesk://skill-format"

// Server wraps the MCP server with skill tools.
type Server struct {
	mcp *server.MCPServer
	svc *skillservice.Service
}

// New creates a new MCP server with all skill tools registered.
func New(svc *skillservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"skilldesk",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_skills",
		mcp.WithDescription("List catalogued skills with their description and language."),
		mcp.WithString("language", mcp.Description("Optional language filter (e.g. go, typescript)")),
	), s.listSkills)

	s.mcp.AddTool(mcp.NewTool("search_skills",
		mcp.WithDescription("Search skills by name, description and body text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchSkills)

	s.mcp.AddTool(mcp.NewTool("read_skill",
		mcp.WithDescription("Read the full SKILL.md of a skill."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Skill directory name")),
	), s.readSkill)

	s.mcp.AddTool(mcp.NewTool("get_skill_metadata",
		mcp.WithDescription("Return the header fields of a skill as a JSON object."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Skill directory name")),
	), s.getSkillMetadata)

	s.mcp.AddTool(mcp.NewTool("list_skill_files",
		mcp.WithDescription("Show every file of a skill directory as an indented tree."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Skill directory name")),
	), s.listSkillFiles)

	s.mcp.AddTool(mcp.NewTool("update_skill",
		mcp.WithDescription("Replace the SKILL.md of an existing skill. "+
			"Content MUST follow the skill format contract (read it via get_skill_contract "+
			"or the "+ContractURI+" resource). The header is normalised on save."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Skill directory name")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Complete SKILL.md content")),
		mcp.WithString("checksum", mcp.Description("Optional SHA-256 of the version being replaced; the update fails if it changed")),
	), s.updateSkill)

	s.mcp.AddTool(mcp.NewTool("get_skill_contract",
		mcp.WithDescription("Returns the SKILL.md format contract. "+
			"Call this before updating skills to ensure correct structure."),
	), s.getSkillContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Skill Format Contract",
			mcp.WithResourceDescription("Format every SKILL.md document must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func toolError(name string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("skill not found: %s", name))
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError(fmt.Sprintf("skill %s changed since checksum was taken", name))
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listSkills(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	language := ""
	if v, lErr := req.RequireString("language"); lErr == nil {
		language = v
	}
	items, _, err := s.svc.ListSkills(ctx, index.ListQuery{Limit: 1000, Language: language})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no skills found"), nil
	}
	lines := make([]string, len(items))
	for i, it := range items {
		line := it.Name
		if it.Description != "" {
			line += ": " + it.Description
		}
		if it.Language != "" {
			line += " [" + it.Language + "]"
		}
		lines[i] = line
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchSkills(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readSkill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := s.svc.LoadDocument(ctx, name)
	if err != nil {
		return toolError(name, err), nil
	}
	return mcp.NewToolResultText(raw), nil
}

func (s *Server) getSkillMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetSkill(ctx, name)
	if err != nil {
		return toolError(name, err), nil
	}
	return jsonResult(map[string]any{
		"name":     d.Name,
		"checksum": d.Checksum,
		"metadata": d.Metadata,
	}), nil
}

func (s *Server) listSkillFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nodes, err := s.svc.FileTree(ctx, name)
	if err != nil {
		return toolError(name, err), nil
	}
	var b strings.Builder
	if err := filetree.Fprint(&b, nodes); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) updateSkill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	checksum := ""
	if v, cErr := req.RequireString("checksum"); cErr == nil {
		checksum = v
	}

	d, err := s.svc.UpdateSkill(ctx, name, content, checksum)
	if err != nil {
		return toolError(name, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", d.Name, d.Checksum)), nil
}

func (s *Server) getSkillContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SkillFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     SkillFormatContract,
		},
	}, nil
}
