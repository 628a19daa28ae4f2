package broker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlinkhq/devlink/internal/adapter/driven/broker"
	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

func TestInitDeviceFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/device/init", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"device_code": "d1",
			"user_code": "ABC-123",
			"verification_url": "https://devlink.dev/cli/setup",
			"expires_in": 900,
			"interval": 5
		}`))
	}))
	defer srv.Close()

	client := broker.NewClientWithHTTPClient(srv.URL, srv.Client())
	auth, err := client.InitDeviceFlow(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "d1", auth.DeviceCode)
	assert.Equal(t, "ABC-123", auth.UserCode)
	assert.Equal(t, "https://devlink.dev/cli/setup", auth.VerificationURL)
	assert.Equal(t, 15*time.Minute, auth.ExpiresIn)
	assert.Equal(t, 5*time.Second, auth.Interval)
}

func TestInitDeviceFlow_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := broker.NewClientWithHTTPClient(srv.URL, srv.Client())
	_, err := client.InitDeviceFlow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestDeviceStatus_Pending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/device/status", r.URL.Path)
		require.Equal(t, "d1", r.URL.Query().Get("device_code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "pending"}`))
	}))
	defer srv.Close()

	client := broker.NewClientWithHTTPClient(srv.URL, srv.Client())
	result, err := client.DeviceStatus(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, model.DeviceFlowPending, result.Status)
	assert.Empty(t, result.SessionToken)
}

func TestDeviceStatus_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "complete", "session_token": "qt_x", "user_id": "u1"}`))
	}))
	defer srv.Close()

	client := broker.NewClientWithHTTPClient(srv.URL, srv.Client())
	result, err := client.DeviceStatus(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, model.DeviceFlowComplete, result.Status)
	assert.Equal(t, "qt_x", result.SessionToken)
	assert.Equal(t, "u1", result.UserID)
}

func TestDeviceStatus_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	client := broker.NewClientWithHTTPClient(srv.URL, srv.Client())
	_, err := client.DeviceStatus(context.Background(), "gone")
	require.ErrorIs(t, err, driven.ErrDeviceCodeNotFound)
}

func TestFetchSessionBundle(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/api/cli/credentials", r.URL.Path)
		require.Equal(t, "Bearer qt_x", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"user": {"user_id": "u1", "email": "dev@example.com", "username": "dev"},
			"github": {"connected": true, "token": "ghs_abc", "username": "dev", "installation_id": 42},
			"slack": {"connected": false}
		}`))
	}))
	defer srv.Close()

	client := broker.NewClientWithHTTPClient(srv.URL, srv.Client())

	bundle, err := client.FetchSessionBundle(context.Background(), "qt_x")
	require.NoError(t, err)
	assert.Equal(t, "u1", bundle.UserID)
	assert.True(t, bundle.GitHub.Connected)
	assert.Equal(t, "ghs_abc", bundle.GitHub.Token)
	assert.Equal(t, int64(42), bundle.GitHub.InstallationID)
	assert.False(t, bundle.Slack.Connected)

	// Each call must hit the network: no response caching in the client.
	_, err = client.FetchSessionBundle(context.Background(), "qt_x")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchSessionBundle_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := broker.NewClientWithHTTPClient(srv.URL, srv.Client())
	_, err := client.FetchSessionBundle(context.Background(), "qt_dead")
	require.ErrorIs(t, err, driven.ErrSessionInvalid)
}
