package mcptools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/devlinkhq/devlink/internal/application"
)

type emptyInput struct{}

type authOutput struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Email         string `json:"email,omitempty"`
	Username      string `json:"username,omitempty"`
	LinkedAt      string `json:"linked_at,omitempty"`
}

type connectPATInput struct {
	Token string `json:"token" jsonschema:"GitHub personal access token (ghp_ or github_pat_ prefix)"`
}

type connectPATOutput struct {
	Username     string `json:"username"`
	ConfiguredAt string `json:"configured_at"`
}

type messageOutput struct {
	Message string `json:"message"`
}

func (s *Server) registerAuthTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "devlink_auth",
		Description: "Link this install to a devlink account via the interactive device flow. Opens a browser; blocks until linking completes or expires.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, authOutput, error) {
		creds, err := s.deps.Auth.Link(ctx)
		if err != nil {
			return nil, authOutput{}, err
		}
		return nil, authOutput{
			Authenticated: true,
			UserID:        creds.UserID,
			Email:         creds.Email,
			Username:      creds.Username,
			LinkedAt:      creds.LinkedAt.Format(time.RFC3339),
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "devlink_status",
		Description: "Report session liveness, downstream connection states (fetched fresh), and PAT configuration.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, *application.StatusReport, error) {
		report, err := s.deps.Auth.Status(ctx)
		if err != nil {
			return nil, nil, err
		}
		return nil, report, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "devlink_logout",
		Description: "Drop the devlink session. A configured GitHub PAT is kept.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, messageOutput, error) {
		if err := s.deps.Auth.Logout(); err != nil {
			return nil, messageOutput{}, err
		}
		return nil, messageOutput{Message: "session cleared"}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_connect_pat",
		Description: "Connect GitHub with a personal access token. The token is validated against the GitHub API before it is saved, and it takes precedence over any broker-issued token.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in connectPATInput) (*mcp.CallToolResult, connectPATOutput, error) {
		pat, err := s.deps.Auth.ConnectPAT(ctx, in.Token)
		if err != nil {
			return nil, connectPATOutput{}, err
		}
		return nil, connectPATOutput{
			Username:     pat.Username,
			ConfiguredAt: pat.ConfiguredAt.Format(time.RFC3339),
		}, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "github_disconnect_pat",
		Description: "Remove the configured GitHub personal access token. The devlink session is kept.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ emptyInput) (*mcp.CallToolResult, messageOutput, error) {
		if err := s.deps.Auth.DisconnectPAT(); err != nil {
			return nil, messageOutput{}, err
		}
		return nil, messageOutput{Message: "personal access token removed"}, nil
	})
}
