package application_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlinkhq/devlink/internal/application"
	"github.com/devlinkhq/devlink/internal/domain/model"
)

func testCredentials() model.StoredCredentials {
	return model.StoredCredentials{
		SessionToken: "qt_token",
		UserID:       "u1",
		Email:        "dev@example.com",
		Username:     "dev",
		LinkedAt:     time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCredentialStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, store.Load())
	require.NoError(t, store.Save(testCredentials()))

	// A fresh instance simulates a process restart.
	reloaded := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, reloaded.Load())

	got := reloaded.Session()
	require.NotNil(t, got)
	assert.Equal(t, testCredentials(), *got)
	assert.True(t, reloaded.IsAuthenticated())
}

func TestCredentialStore_MissingFileIsFreshInstall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	store := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, store.Load())
	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.Session())
	assert.Nil(t, store.PAT())
}

func TestCredentialStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file mode semantics differ on windows")
	}

	path := filepath.Join(t.TempDir(), "credentials.json")
	store := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, store.Load())
	require.NoError(t, store.Save(testCredentials()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCredentialStore_LegacyFlatLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	legacy := `{
		"session_token": "qt_old",
		"user_id": "u9",
		"username": "olduser",
		"linked_at": "2025-01-15T08:00:00Z"
	}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	store := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, store.Load())

	session := store.Session()
	require.NotNil(t, session)
	assert.Equal(t, "qt_old", session.SessionToken)
	assert.Equal(t, "u9", session.UserID)
}

func TestCredentialStore_ClearingOneKindKeepsTheOther(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, store.Load())

	require.NoError(t, store.Save(testCredentials()))
	require.NoError(t, store.SavePAT(model.PATCredentials{
		Token:        "ghp_abc",
		Username:     "dev",
		ConfiguredAt: time.Now().UTC(),
	}))

	require.NoError(t, store.ClearSession())

	reloaded := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, reloaded.Load())
	assert.Nil(t, reloaded.Session())
	require.NotNil(t, reloaded.PAT())
	assert.Equal(t, "ghp_abc", reloaded.PAT().Token)
}

func TestCredentialStore_WriteWithoutLoadPreservesTheOtherKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	seeded := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, seeded.Load())
	require.NoError(t, seeded.Save(testCredentials()))
	require.NoError(t, seeded.SavePAT(model.PATCredentials{
		Token:        "ghp_abc",
		Username:     "dev",
		ConfiguredAt: time.Now().UTC(),
	}))

	// A store that was never explicitly loaded must still read the file
	// before its first write.
	unloaded := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, unloaded.SavePAT(model.PATCredentials{
		Token:        "ghp_rotated",
		Username:     "dev",
		ConfiguredAt: time.Now().UTC(),
	}))

	reloaded := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, reloaded.Load())
	require.NotNil(t, reloaded.Session(), "session must survive a blind PAT write")
	assert.Equal(t, "qt_token", reloaded.Session().SessionToken)
	assert.Equal(t, "ghp_rotated", reloaded.PAT().Token)

	alsoUnloaded := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, alsoUnloaded.ClearSession())

	final := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, final.Load())
	assert.Nil(t, final.Session())
	require.NotNil(t, final.PAT(), "PAT must survive a blind session clear")
	assert.Equal(t, "ghp_rotated", final.PAT().Token)
}

func TestCredentialStore_ClearLastKindDeletesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, store.Load())
	require.NoError(t, store.Save(testCredentials()))

	require.NoError(t, store.ClearSession())

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCredentialStore_FetchSessionBundleAlwaysHitsNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	broker := &mockBroker{
		bundleFn: func(_ context.Context, _ string) (*model.SessionBundle, error) {
			return &model.SessionBundle{UserID: "u1", GitHub: model.GitHubSession{Connected: true, Token: "ghs_x"}}, nil
		},
	}

	store := application.NewCredentialStore(path, broker)
	require.NoError(t, store.Load())
	require.NoError(t, store.Save(testCredentials()))

	ctx := context.Background()
	first, err := store.FetchSessionBundle(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := store.FetchSessionBundle(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, int32(2), broker.bundleCalls.Load())
}

func TestCredentialStore_FetchSessionBundleWithoutSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	broker := &mockBroker{}
	store := application.NewCredentialStore(path, broker)
	require.NoError(t, store.Load())

	bundle, err := store.FetchSessionBundle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, bundle)
	assert.Equal(t, int32(0), broker.bundleCalls.Load())
}

func TestCredentialStore_SelfHealingOn401(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	broker := &mockBroker{} // bundleFn nil: always ErrSessionInvalid

	store := application.NewCredentialStore(path, broker)
	require.NoError(t, store.Load())
	require.NoError(t, store.Save(testCredentials()))
	require.True(t, store.IsAuthenticated())

	bundle, err := store.FetchSessionBundle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, bundle)

	assert.False(t, store.IsAuthenticated())

	// The on-disk record no longer carries the session either.
	reloaded := application.NewCredentialStore(path, &mockBroker{})
	require.NoError(t, reloaded.Load())
	assert.Nil(t, reloaded.Session())
}

func TestCredentialStore_TransientFailureDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	broker := &mockBroker{
		bundleFn: func(_ context.Context, _ string) (*model.SessionBundle, error) {
			return nil, context.DeadlineExceeded
		},
	}

	store := application.NewCredentialStore(path, broker)
	require.NoError(t, store.Load())
	require.NoError(t, store.Save(testCredentials()))

	bundle, err := store.FetchSessionBundle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, bundle)

	// Transient failure must not destroy the session.
	assert.True(t, store.IsAuthenticated())
}

func TestCredentialStore_StatusPATOverridesBroker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	broker := &mockBroker{
		bundleFn: func(_ context.Context, _ string) (*model.SessionBundle, error) {
			return &model.SessionBundle{
				GitHub: model.GitHubSession{Connected: true, Token: "ghs_x", Username: "app-user"},
				Slack:  model.SlackSession{Connected: true, BotToken: "xoxb", TeamName: "Acme"},
			}, nil
		},
	}

	store := application.NewCredentialStore(path, broker)
	require.NoError(t, store.Load())
	require.NoError(t, store.Save(testCredentials()))
	require.NoError(t, store.SavePAT(model.PATCredentials{Token: "ghp_abc", Username: "pat-user"}))

	report, err := store.Status(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Authenticated)
	assert.True(t, report.PATConfigured)
	assert.Equal(t, "pat", report.GitHub.Mode)
	assert.Equal(t, "pat-user", report.GitHub.Account)
	assert.True(t, report.Slack.Connected)
	assert.Equal(t, "Acme", report.Slack.Account)
}
