package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cli/browser"

	"github.com/devlinkhq/devlink/internal/domain/model"
	"github.com/devlinkhq/devlink/internal/domain/port/driven"
)

// Terminal device flow failures. Nothing is persisted in either case.
var (
	ErrLinkExpired = errors.New("device authorization expired")
	ErrLinkRevoked = errors.New("device authorization revoked")
)

// defaultPollInterval is used when the broker suggests no interval.
const defaultPollInterval = 5 * time.Second

// DeviceFlowService runs the interactive linking flow: init a pending
// authorization, open the verification URL, poll until a terminal state,
// and persist the session on completion.
type DeviceFlowService struct {
	broker  driven.BrokerAPI
	store   *CredentialStore
	timeout time.Duration

	// webURL is the verification-page fallback for broker responses that
	// omit one.
	webURL string

	// openURL is a seam for tests; defaults to the system browser.
	openURL func(url string) error
}

// NewDeviceFlowService creates a device flow bounded by the given wall-clock
// timeout. The timeout is independent of the server-reported expiry so an
// unreachable broker cannot hang the process.
func NewDeviceFlowService(broker driven.BrokerAPI, store *CredentialStore, timeout time.Duration, webURL string) *DeviceFlowService {
	return &DeviceFlowService{
		broker:  broker,
		store:   store,
		timeout: timeout,
		webURL:  webURL,
		openURL: browser.OpenURL,
	}
}

// NewDeviceFlowServiceWithOpener creates a device flow with a custom URL
// opener. Intended for testing.
func NewDeviceFlowServiceWithOpener(broker driven.BrokerAPI, store *CredentialStore, timeout time.Duration, openURL func(string) error) *DeviceFlowService {
	return &DeviceFlowService{
		broker:  broker,
		store:   store,
		timeout: timeout,
		openURL: openURL,
	}
}

// Run executes the full linking flow and returns the persisted credentials.
// The user code and verification URL are logged for manual entry; opening
// the browser is best effort and never aborts the flow.
func (s *DeviceFlowService) Run(ctx context.Context) (*model.StoredCredentials, error) {
	auth, err := s.broker.InitDeviceFlow(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting device authorization: %w", err)
	}

	verifyURL := auth.VerificationURL
	if verifyURL == "" && s.webURL != "" {
		verifyURL = s.webURL + "/link"
	}

	slog.Info("device authorization started",
		"user_code", auth.UserCode,
		"verification_url", verifyURL,
	)

	if verifyURL != "" {
		if err := s.openURL(verifyURL); err != nil {
			slog.Debug("browser open failed, enter the code manually", "error", err)
		}
	}

	interval := auth.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	deadline := time.Now().Add(s.timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			slog.Warn("device authorization timed out locally", "timeout", s.timeout)
			return nil, ErrLinkExpired
		}

		result, err := s.broker.DeviceStatus(ctx, auth.DeviceCode)
		if errors.Is(err, driven.ErrDeviceCodeNotFound) {
			return nil, fmt.Errorf("device code no longer known to the broker: %w", err)
		}
		if err != nil {
			slog.Warn("device status poll failed, will retry", "error", err)
			continue
		}

		switch result.Status {
		case model.DeviceFlowPending:
			continue

		case model.DeviceFlowComplete:
			creds := model.StoredCredentials{
				SessionToken: result.SessionToken,
				UserID:       result.UserID,
				Email:        result.Email,
				Username:     result.Username,
				LinkedAt:     time.Now().UTC(),
			}
			if err := s.store.Save(creds); err != nil {
				return nil, fmt.Errorf("persisting session: %w", err)
			}
			slog.Info("device authorization complete", "user_id", creds.UserID)
			return &creds, nil

		case model.DeviceFlowExpired:
			slog.Warn("device authorization expired on the broker")
			return nil, ErrLinkExpired

		case model.DeviceFlowRevoked:
			return nil, ErrLinkRevoked

		default:
			return nil, fmt.Errorf("unknown device flow status %q", result.Status)
		}
	}
}
