// Package driven defines the outbound port interfaces implemented by adapters.
package driven

import (
	"context"
	"errors"

	"github.com/devlinkhq/devlink/internal/domain/model"
)

// ErrSessionInvalid signals that the broker rejected the long-lived session
// token (401). It is authoritative: the caller must discard the persisted
// session and re-link, never retry.
var ErrSessionInvalid = errors.New("broker session token invalid or revoked")

// ErrDeviceCodeNotFound signals a 404 from the device status endpoint. The
// code does not exist server-side, so polling it again is pointless.
var ErrDeviceCodeNotFound = errors.New("device code not found")

// DeviceStatusResult is one poll response from the broker's device status
// endpoint. SessionToken and UserID are set only when Status is complete.
type DeviceStatusResult struct {
	Status       model.DeviceFlowStatus
	SessionToken string
	UserID       string
	Email        string
	Username     string
}

// BrokerAPI is the driven port for the DevLink broker service. It covers
// device flow linking and the exchange of a session token for short-lived
// downstream tokens.
type BrokerAPI interface {
	// InitDeviceFlow starts a device authorization and returns the codes
	// and verification URL the user needs to complete it.
	InitDeviceFlow(ctx context.Context) (*model.DeviceAuthorization, error)

	// DeviceStatus polls a pending authorization. Returns
	// ErrDeviceCodeNotFound if the broker no longer knows the code.
	DeviceStatus(ctx context.Context, deviceCode string) (*DeviceStatusResult, error)

	// FetchSessionBundle exchanges the session token for fresh downstream
	// tokens. Returns ErrSessionInvalid on a 401; every other non-2xx is a
	// generic fetch failure. No retries: a 401 calls for re-linking.
	FetchSessionBundle(ctx context.Context, sessionToken string) (*model.SessionBundle, error)
}
