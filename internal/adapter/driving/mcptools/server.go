// Package mcptools exposes devlink operations as MCP tools over stdio.
package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devlinkhq/devlink/internal/application"
)

// Deps bundles the application services the tool handlers call into.
type Deps struct {
	Auth   *application.AuthService
	Bulk   *application.BulkService
	GitHub *application.GitHubProvider
	Slack  *application.SlackProvider
}

// Server wraps an MCP server with the devlink tool surface registered.
type Server struct {
	mcp  *mcp.Server
	deps Deps
}

// NewServer builds the MCP server and registers every tool. Tools return
// structured values; rendering is the caller's concern.
func NewServer(version string, deps Deps) *Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "devlink",
		Version: version,
	}, nil)

	s := &Server{mcp: server, deps: deps}
	s.registerAuthTools()
	s.registerGitHubTools()
	s.registerSlackTools()
	return s
}

// Run serves MCP over stdio until the context is canceled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}
