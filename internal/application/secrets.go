package application

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/devlinkhq/devlink/internal/domain/model"
)

// ErrSecretNotFound signals that no source could supply a requested secret.
var ErrSecretNotFound = errors.New("secret not found")

// configFilenames are the well-known config files the locator reads, in
// order of preference.
var configFilenames = []string{".devlink.env", "devlink.env"}

// projectMarkers identify a directory as a project root during the upward
// walk from the working directory.
var projectMarkers = []string{".git", "go.mod", "package.json", "pyproject.toml", "Cargo.toml"}

// SecretLocator searches an ordered list of sources for a long-lived secret:
// the credential store's PAT record, the process environment, a config file
// at the nearest project root, then the same config files in the home
// directory. First match wins.
type SecretLocator struct {
	store   *CredentialStore
	workDir string
	homeDir string
}

// NewSecretLocator creates a locator rooted at the current working directory
// and the user's home directory. store may be nil when no persisted
// credentials should participate in the search.
func NewSecretLocator(store *CredentialStore) *SecretLocator {
	workDir, _ := os.Getwd()
	homeDir, _ := os.UserHomeDir()
	return &SecretLocator{store: store, workDir: workDir, homeDir: homeDir}
}

// NewSecretLocatorWithDirs creates a locator with explicit working and home
// directories. Intended for testing.
func NewSecretLocatorWithDirs(store *CredentialStore, workDir, homeDir string) *SecretLocator {
	return &SecretLocator{store: store, workDir: workDir, homeDir: homeDir}
}

// Locate returns the first value found for any of the given names, with its
// provenance. The provenance is logged at debug level only; secret material
// and its source must not appear together at normal verbosity.
func (l *SecretLocator) Locate(names []string) (*model.ResolvedSecret, error) {
	if l.store != nil {
		if pat := l.store.PAT(); pat != nil && pat.Token != "" {
			resolved := &model.ResolvedSecret{
				Value:      pat.Token,
				Provenance: model.ProvenanceStored,
				Detail:     "github_pat",
			}
			slog.Debug("secret resolved", "provenance", resolved.Provenance)
			return resolved, nil
		}
	}

	for _, name := range names {
		if value := os.Getenv(name); value != "" {
			resolved := &model.ResolvedSecret{
				Value:      value,
				Provenance: model.ProvenanceEnvironment,
				Detail:     name,
			}
			slog.Debug("secret resolved", "provenance", resolved.Provenance, "detail", name)
			return resolved, nil
		}
	}

	if root := findProjectRoot(l.workDir); root != "" {
		if resolved := locateInDir(root, names, model.ProvenanceProjectConfig); resolved != nil {
			return resolved, nil
		}
	}

	if l.homeDir != "" {
		if resolved := locateInDir(l.homeDir, names, model.ProvenanceHomeConfig); resolved != nil {
			return resolved, nil
		}
	}

	return nil, fmt.Errorf("%w: tried %s", ErrSecretNotFound, strings.Join(names, ", "))
}

// locateInDir checks each well-known config file in dir for the first of
// names that has a value.
func locateInDir(dir string, names []string, provenance model.Provenance) *model.ResolvedSecret {
	for _, filename := range configFilenames {
		path := filepath.Join(dir, filename)
		values, err := parseEnvFile(path)
		if err != nil {
			continue
		}
		for _, name := range names {
			if value, ok := values[name]; ok && value != "" {
				slog.Debug("secret resolved", "provenance", provenance, "detail", path)
				return &model.ResolvedSecret{
					Value:      value,
					Provenance: provenance,
					Detail:     path,
				}
			}
		}
	}
	return nil
}

// findProjectRoot walks upward from dir to the nearest directory containing
// a recognized project marker. Returns "" when no ancestor qualifies.
func findProjectRoot(dir string) string {
	if dir == "" {
		return ""
	}

	current, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		for _, marker := range projectMarkers {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				return current
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// parseEnvFile reads a line-oriented KEY=value file. Values may be single or
// double quoted; # lines are comments. Malformed lines are skipped, never
// fatal.
func parseEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values := make(map[string]string)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" || strings.ContainsAny(key, " \t") {
			continue
		}

		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return values, nil
}
