// Package application contains use-case orchestration services.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// credentialsFile is the on-disk layout of the credentials record. Both
// credential kinds live in one file so a whole-file rewrite can clear one
// without destroying the other.
type credentialsFile struct {
	Devlink   *model.StoredCredentials `json:"devlink,omitempty"`
	GitHubPAT *model.PATCredentials    `json:"github_pat,omitempty"`
}

// CredentialStore owns the persisted credentials record and mediates
// fetching short-lived downstream tokens from the broker. All writes are
// whole-file rewrites with owner-only permissions.
type CredentialStore struct {
	path   string
	broker driven.BrokerAPI

	mu      sync.Mutex
	loaded  bool
	session *model.StoredCredentials
	pat     *model.PATCredentials
}

// NewCredentialStore creates a store persisting to path and refreshing
// downstream tokens through broker.
func NewCredentialStore(path string, broker driven.BrokerAPI) *CredentialStore {
	return &CredentialStore{
		path:   path,
		broker: broker,
	}
}

// Load reads the on-disk record into memory. It is idempotent: the file is
// read once per process lifetime. A missing file is a fresh install, not an
// error. A legacy flat layout (session fields at the top level) is read
// transparently but never written back in that shape.
func (s *CredentialStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// loadLocked does the actual read. Callers must hold s.mu. Every mutation
// goes through it first so a write on a never-loaded store cannot rewrite
// the file while blind to the other credential kind.
func (s *CredentialStore) loadLocked() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading credentials file: %w", err)
	}

	var file credentialsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing credentials file: %w", err)
	}

	if file.Devlink == nil && file.GitHubPAT == nil {
		var legacy model.StoredCredentials
		if err := json.Unmarshal(data, &legacy); err == nil && legacy.SessionToken != "" {
			slog.Debug("credentials file uses legacy flat layout")
			file.Devlink = &legacy
		}
	}

	s.session = file.Devlink
	s.pat = file.GitHubPAT
	s.loaded = true
	return nil
}

// Save persists the broker session, preserving any configured PAT.
func (s *CredentialStore) Save(creds model.StoredCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	s.session = &creds
	return s.writeLocked()
}

// SavePAT persists the personal access token, preserving the broker session.
func (s *CredentialStore) SavePAT(pat model.PATCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	s.pat = &pat
	return s.writeLocked()
}

// Clear removes the credentials file entirely.
func (s *CredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	s.pat = nil

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials file: %w", err)
	}
	return nil
}

// ClearSession drops the broker session, keeping any configured PAT. The
// file is deleted when nothing remains.
func (s *CredentialStore) ClearSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	s.session = nil
	return s.writeLocked()
}

// ClearPAT drops the personal access token, keeping the broker session.
func (s *CredentialStore) ClearPAT() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	s.pat = nil
	return s.writeLocked()
}

// writeLocked rewrites the whole file from the in-memory record, or deletes
// it when both kinds are gone. Callers must hold s.mu.
func (s *CredentialStore) writeLocked() error {
	if s.session == nil && s.pat == nil {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing credentials file: %w", err)
		}
		return nil
	}

	data, err := json.MarshalIndent(credentialsFile{
		Devlink:   s.session,
		GitHubPAT: s.pat,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	// WriteFile permissions only apply on create; clamp pre-existing files.
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("restricting credentials file permissions: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether a broker session is present in memory.
func (s *CredentialStore) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Session returns a copy of the stored broker session, or nil.
func (s *CredentialStore) Session() *model.StoredCredentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil
	}
	copied := *s.session
	return &copied
}

// PAT returns a copy of the configured personal access token, or nil.
func (s *CredentialStore) PAT() *model.PATCredentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pat == nil {
		return nil
	}
	copied := *s.pat
	return &copied
}

// FetchSessionBundle fetches fresh downstream tokens from the broker. Every
// call hits the network; connection state changes out-of-band, so caching
// here produces stale-connected bugs.
//
// Returns nil without error when no session exists or the broker is
// unreachable, so callers degrade to "integration unavailable" instead of
// crashing. A 401 from the broker is authoritative: the dead session is
// cleared from disk before returning nil.
func (s *CredentialStore) FetchSessionBundle(ctx context.Context) (*model.SessionBundle, error) {
	session := s.Session()
	if session == nil {
		return nil, nil
	}

	bundle, err := s.broker.FetchSessionBundle(ctx, session.SessionToken)
	if errors.Is(err, driven.ErrSessionInvalid) {
		slog.Warn("broker rejected session token, clearing stored session")
		if clearErr := s.ClearSession(); clearErr != nil {
			return nil, fmt.Errorf("clearing invalid session: %w", clearErr)
		}
		return nil, nil
	}
	if err != nil {
		slog.Warn("session bundle fetch failed", "error", err)
		return nil, nil
	}

	return bundle, nil
}

// IntegrationStatus describes one downstream connection in a status report.
type IntegrationStatus struct {
	Connected bool   `json:"connected"`
	Mode      string `json:"mode,omitempty"` // "app" or "pat" for GitHub.
	Account   string `json:"account,omitempty"`
}

// StatusReport is the full diagnostics view composed by Status.
type StatusReport struct {
	Authenticated bool              `json:"authenticated"`
	UserID        string            `json:"user_id,omitempty"`
	Email         string            `json:"email,omitempty"`
	Username      string            `json:"username,omitempty"`
	LinkedAt      time.Time         `json:"linked_at,omitzero"`
	GitHub        IntegrationStatus `json:"github"`
	Slack         IntegrationStatus `json:"slack"`
	PATConfigured bool              `json:"pat_configured"`
}

// Status composes session liveness, fresh downstream connection states, and
// PAT configuration. A configured PAT is reported as the authoritative GitHub
// credential even when the broker also has GitHub connected; its presence
// means the user explicitly overrode the broker path.
func (s *CredentialStore) Status(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{}

	if session := s.Session(); session != nil {
		report.Authenticated = true
		report.UserID = session.UserID
		report.Email = session.Email
		report.Username = session.Username
		report.LinkedAt = session.LinkedAt
	}

	bundle, err := s.FetchSessionBundle(ctx)
	if err != nil {
		return nil, err
	}
	// The bundle fetch may have self-healed a dead session.
	report.Authenticated = s.IsAuthenticated()

	if bundle != nil {
		if bundle.GitHub.Connected {
			report.GitHub = IntegrationStatus{
				Connected: true,
				Mode:      "app",
				Account:   bundle.GitHub.Username,
			}
		}
		if bundle.Slack.Connected {
			report.Slack = IntegrationStatus{
				Connected: true,
				Account:   bundle.Slack.TeamName,
			}
		}
	}

	if pat := s.PAT(); pat != nil {
		report.PATConfigured = true
		report.GitHub = IntegrationStatus{
			Connected: true,
			Mode:      "pat",
			Account:   pat.Username,
		}
	}

	return report, nil
}
