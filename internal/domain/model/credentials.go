package model

import "time"

// StoredCredentials is the broker session persisted after device flow linking.
// The session token is long-lived and identifies this install to the DevLink
// API until revoked.
type StoredCredentials struct {
	SessionToken string    `json:"session_token"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	Username     string    `json:"username,omitempty"`
	LinkedAt     time.Time `json:"linked_at"`
}

// PATCredentials is an independently configured GitHub personal access token.
// It coexists with StoredCredentials and is destroyed independently.
type PATCredentials struct {
	Token        string    `json:"token"`
	Username     string    `json:"username"`
	ConfiguredAt time.Time `json:"configured_at"`
}

// GitHubSession is the GitHub slice of a SessionBundle. Token is a GitHub App
// installation token with roughly one hour of validity.
type GitHubSession struct {
	Connected      bool
	Token          string
	Username       string
	InstallationID int64
}

// SlackSession is the Slack slice of a SessionBundle.
type SlackSession struct {
	Connected bool
	BotToken  string
	TeamName  string
	TeamID    string
	UserID    string
}

// SessionBundle holds short-lived downstream tokens fetched from the broker.
// It is never persisted and never cached across calls: connection state can
// change out-of-band at any time via the web dashboard.
type SessionBundle struct {
	UserID   string
	Email    string
	Username string
	GitHub   GitHubSession
	Slack    SlackSession
}

// Provenance identifies where the secret locator found a value.
type Provenance string

const (
	ProvenanceStored        Provenance = "stored"
	ProvenanceEnvironment   Provenance = "environment"
	ProvenanceProjectConfig Provenance = "project_config"
	ProvenanceHomeConfig    Provenance = "home_config"
)

// ResolvedSecret is a located secret with its provenance. Provenance is
// surfaced for diagnostics; it is logged at debug level only so that secret
// material and its location never appear together at normal verbosity.
type ResolvedSecret struct {
	Value      string
	Provenance Provenance
	Detail     string // Env var name or config file path that supplied the value.
}

// DeviceAuthorization is the transient state of a pending device flow,
// returned by the broker's init endpoint.
type DeviceAuthorization struct {
	DeviceCode      string
	UserCode        string
	VerificationURL string
	ExpiresIn       time.Duration
	Interval        time.Duration
}

// DeviceFlowStatus enumerates the broker-reported states of a pending
// device authorization.
type DeviceFlowStatus string

const (
	DeviceFlowPending  DeviceFlowStatus = "pending"
	DeviceFlowComplete DeviceFlowStatus = "complete"
	DeviceFlowExpired  DeviceFlowStatus = "expired"
	DeviceFlowRevoked  DeviceFlowStatus = "revoked"
)
