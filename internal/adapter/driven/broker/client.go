// Package broker implements the BrokerAPI port against the DevLink HTTP API.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.BrokerAPI = (*Client)(nil)

// Client talks to the DevLink broker API. All methods issue one blocking
// request and apply no retries; retry policy belongs to callers because a
// 401 must never be resubmitted.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a broker client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// Intended for testing against an httptest server.
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// deviceInitResponse mirrors POST /api/device/init.
type deviceInitResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// deviceStatusResponse mirrors GET /api/device/status.
type deviceStatusResponse struct {
	Status       string `json:"status"`
	SessionToken string `json:"session_token"`
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
}

// credentialsResponse mirrors GET /api/cli/credentials.
type credentialsResponse struct {
	User struct {
		UserID   string `json:"user_id"`
		Email    string `json:"email"`
		Username string `json:"username"`
	} `json:"user"`
	GitHub struct {
		Connected      bool   `json:"connected"`
		Token          string `json:"token"`
		Username       string `json:"username"`
		InstallationID int64  `json:"installation_id"`
	} `json:"github"`
	Slack struct {
		Connected bool   `json:"connected"`
		BotToken  string `json:"bot_token"`
		TeamName  string `json:"team_name"`
		TeamID    string `json:"team_id"`
		UserID    string `json:"user_id"`
	} `json:"slack"`
}

// InitDeviceFlow starts a device authorization.
func (c *Client) InitDeviceFlow(ctx context.Context) (*model.DeviceAuthorization, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/device/init", nil)
	if err != nil {
		return nil, fmt.Errorf("creating device init request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting device init: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("device init failed: %s", readErrorBody(resp))
	}

	var parsed deviceInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing device init response: %w", err)
	}
	if parsed.DeviceCode == "" || parsed.UserCode == "" {
		return nil, fmt.Errorf("device init response missing codes")
	}

	return &model.DeviceAuthorization{
		DeviceCode:      parsed.DeviceCode,
		UserCode:        parsed.UserCode,
		VerificationURL: parsed.VerificationURL,
		ExpiresIn:       time.Duration(parsed.ExpiresIn) * time.Second,
		Interval:        time.Duration(parsed.Interval) * time.Second,
	}, nil
}

// DeviceStatus polls a pending device authorization once.
func (c *Client) DeviceStatus(ctx context.Context, deviceCode string) (*driven.DeviceStatusResult, error) {
	statusURL := fmt.Sprintf("%s/api/device/status?%s", c.baseURL, url.Values{"device_code": {deviceCode}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating device status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting device status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, driven.ErrDeviceCodeNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("device status failed: %s", readErrorBody(resp))
	}

	var parsed deviceStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing device status response: %w", err)
	}

	return &driven.DeviceStatusResult{
		Status:       model.DeviceFlowStatus(parsed.Status),
		SessionToken: parsed.SessionToken,
		UserID:       parsed.UserID,
		Email:        parsed.Email,
		Username:     parsed.Username,
	}, nil
}

// FetchSessionBundle exchanges the long-lived session token for fresh
// downstream tokens. A 401 maps to driven.ErrSessionInvalid; callers treat
// that as proof the session is dead.
func (c *Client) FetchSessionBundle(ctx context.Context, sessionToken string) (*model.SessionBundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/cli/credentials", nil)
	if err != nil {
		return nil, fmt.Errorf("creating credentials request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+sessionToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, driven.ErrSessionInvalid
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("credentials fetch failed: %s", readErrorBody(resp))
	}

	var parsed credentialsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing credentials response: %w", err)
	}

	return &model.SessionBundle{
		UserID:   parsed.User.UserID,
		Email:    parsed.User.Email,
		Username: parsed.User.Username,
		GitHub: model.GitHubSession{
			Connected:      parsed.GitHub.Connected,
			Token:          parsed.GitHub.Token,
			Username:       parsed.GitHub.Username,
			InstallationID: parsed.GitHub.InstallationID,
		},
		Slack: model.SlackSession{
			Connected: parsed.Slack.Connected,
			BotToken:  parsed.Slack.BotToken,
			TeamName:  parsed.Slack.TeamName,
			TeamID:    parsed.Slack.TeamID,
			UserID:    parsed.Slack.UserID,
		},
	}, nil
}

// readErrorBody renders a short diagnostic from a non-2xx response.
func readErrorBody(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512))
	if err != nil || len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
