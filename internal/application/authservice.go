package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/devlinkhq/devlink/internal/domain/model"
)

// AuthService groups the account operations: interactive linking, PAT
// connect, and the disconnect variants.
type AuthService struct {
	store  *CredentialStore
	flow   *DeviceFlowService
	github GitHubFactory
}

// NewAuthService creates an auth service. github is used to validate a PAT
// against the live API before it is persisted.
func NewAuthService(store *CredentialStore, flow *DeviceFlowService, github GitHubFactory) *AuthService {
	return &AuthService{
		store:  store,
		flow:   flow,
		github: github,
	}
}

// Link runs the interactive device flow and persists the resulting session.
func (s *AuthService) Link(ctx context.Context) (*model.StoredCredentials, error) {
	return s.flow.Run(ctx)
}

// ConnectPAT validates a personal access token and persists it as the
// independently configured GitHub credential. The token must carry a known
// prefix and must authenticate against the live API; nothing is persisted
// otherwise.
func (s *AuthService) ConnectPAT(ctx context.Context, token string) (*model.PATCredentials, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}
	if !strings.HasPrefix(token, "ghp_") && !strings.HasPrefix(token, "github_pat_") {
		return nil, fmt.Errorf("token does not look like a GitHub personal access token (expected ghp_ or github_pat_ prefix)")
	}

	client := s.github(token, "", 0)
	username, err := client.AuthenticatedUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("token rejected by GitHub: %w", err)
	}

	pat := model.PATCredentials{
		Token:        token,
		Username:     username,
		ConfiguredAt: time.Now().UTC(),
	}
	if err := s.store.SavePAT(pat); err != nil {
		return nil, err
	}

	slog.Info("personal access token configured", "username", username)
	return &pat, nil
}

// DisconnectPAT removes the configured personal access token, leaving any
// broker session intact.
func (s *AuthService) DisconnectPAT() error {
	return s.store.ClearPAT()
}

// Logout drops the broker session, leaving any configured PAT intact.
func (s *AuthService) Logout() error {
	return s.store.ClearSession()
}

// Status reports session liveness and fresh downstream connection states.
func (s *AuthService) Status(ctx context.Context) (*StatusReport, error) {
	return s.store.Status(ctx)
}
