package application

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"sync"

	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// ErrNotConfigured signals that no credential could be resolved from any
// source. At this boundary "user forgot to configure" cannot be told apart
// from "upstream unreachable", so errors default to the recoverable case and
// enumerate every remediation path.
var ErrNotConfigured = errors.New("not configured")

// githubSecretNames are the environment variables checked for a GitHub
// token, in order.
var githubSecretNames = []string{"GITHUB_TOKEN", "GITHUB_PAT"}

// fingerprint is a fast non-cryptographic hash of a credential. A collision
// only costs an unnecessary client rebuild.
func fingerprint(value string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(value))
	return h.Sum64()
}

// GitHubFactory builds a GitHub client bound to one token. installationID
// is zero for personal access tokens.
type GitHubFactory func(token, username string, installationID int64) driven.GitHubClient

// GitHubProvider caches at most one live GitHub client, keyed by a
// fingerprint of the credential in use. When the resolved credential
// changes, the cached handle is replaced, never mutated, so operations
// mid-flight on the old handle are unaffected.
//
// An independently configured PAT always beats a broker-issued installation
// token; direct user control is higher trust and broader scoped.
type GitHubProvider struct {
	store   *CredentialStore
	locator *SecretLocator
	build   GitHubFactory

	mu          sync.RWMutex
	fingerprint uint64
	client      driven.GitHubClient
}

// NewGitHubProvider creates a provider resolving credentials through the
// given store and locator and constructing clients with build.
func NewGitHubProvider(store *CredentialStore, locator *SecretLocator, build GitHubFactory) *GitHubProvider {
	return &GitHubProvider{
		store:   store,
		locator: locator,
		build:   build,
	}
}

// GetClient returns a client bound to the currently authoritative GitHub
// credential, rebuilding it only when the credential changed since the last
// call.
func (p *GitHubProvider) GetClient(ctx context.Context) (driven.GitHubClient, error) {
	token, username, installationID, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}

	fp := fingerprint(token)

	p.mu.RLock()
	if p.client != nil && p.fingerprint == fp {
		client := p.client
		p.mu.RUnlock()
		return client, nil
	}
	p.mu.RUnlock()

	client := p.build(token, username, installationID)

	p.mu.Lock()
	defer p.mu.Unlock()
	// A racing rebuild may have won; keep whichever matches the fingerprint.
	if p.client != nil && p.fingerprint == fp {
		return p.client, nil
	}
	p.fingerprint = fp
	p.client = client
	slog.Debug("github client rebuilt", "installation", installationID != 0)
	return client, nil
}

// resolve picks the authoritative GitHub credential: locator hits (stored
// PAT, environment, config files) first, then the broker session bundle.
func (p *GitHubProvider) resolve(ctx context.Context) (token, username string, installationID int64, err error) {
	resolved, locateErr := p.locator.Locate(githubSecretNames)
	if locateErr == nil {
		username = os.Getenv("GITHUB_USERNAME")
		if resolved.Provenance == model.ProvenanceStored {
			if pat := p.store.PAT(); pat != nil {
				username = pat.Username
			}
		}
		return resolved.Value, username, 0, nil
	}
	if !errors.Is(locateErr, ErrSecretNotFound) {
		return "", "", 0, locateErr
	}

	bundle, bundleErr := p.store.FetchSessionBundle(ctx)
	if bundleErr != nil {
		return "", "", 0, bundleErr
	}
	if bundle != nil && bundle.GitHub.Connected && bundle.GitHub.Token != "" {
		return bundle.GitHub.Token, bundle.GitHub.Username, bundle.GitHub.InstallationID, nil
	}

	return "", "", 0, fmt.Errorf(
		"github %w: connect with a personal access token (github_connect_pat), "+
			"link this install interactively (devlink_auth), "+
			"or set the GITHUB_TOKEN environment variable", ErrNotConfigured)
}

// SlackFactory builds a Slack client bound to one bot token.
type SlackFactory func(botToken string) driven.SlackClient

// SlackProvider caches at most one live Slack client, keyed by a fingerprint
// of the bot token from the broker session bundle. Slack has no independent
// credential path; the bundle is the only source.
type SlackProvider struct {
	store *CredentialStore
	build SlackFactory

	mu          sync.RWMutex
	fingerprint uint64
	client      driven.SlackClient
}

// NewSlackProvider creates a provider resolving bot tokens through the store.
func NewSlackProvider(store *CredentialStore, build SlackFactory) *SlackProvider {
	return &SlackProvider{
		store: store,
		build: build,
	}
}

// GetClient returns a client bound to the current Slack bot token,
// rebuilding only on token change.
func (p *SlackProvider) GetClient(ctx context.Context) (driven.SlackClient, error) {
	bundle, err := p.store.FetchSessionBundle(ctx)
	if err != nil {
		return nil, err
	}
	if bundle == nil || !bundle.Slack.Connected || bundle.Slack.BotToken == "" {
		return nil, fmt.Errorf(
			"slack %w: link this install (devlink_auth) and connect Slack "+
				"from the devlink dashboard", ErrNotConfigured)
	}

	fp := fingerprint(bundle.Slack.BotToken)

	p.mu.RLock()
	if p.client != nil && p.fingerprint == fp {
		client := p.client
		p.mu.RUnlock()
		return client, nil
	}
	p.mu.RUnlock()

	client := p.build(bundle.Slack.BotToken)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil && p.fingerprint == fp {
		return p.client, nil
	}
	p.fingerprint = fp
	p.client = client
	slog.Debug("slack client rebuilt", "team", bundle.Slack.TeamName)
	return client, nil
}
