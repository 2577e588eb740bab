package gospot

import (
	"context"
	"errors"
	"sync"

	"github.com/gospot-dev/gospot/internal/zeroconf"
)

// AuthType identifies the credential flavor produced by pairing.
type AuthType int

const (
	AuthTypeUserPass          AuthType = zeroconf.AuthTypeUserPass
	AuthTypeStoredCredentials AuthType = zeroconf.AuthTypeStoredCredentials
	AuthTypeAccessToken       AuthType = zeroconf.AuthTypeAccessToken
)

// AuthTypeName returns a readable name for an auth type.
func AuthTypeName(t AuthType) string {
	switch t {
	case AuthTypeUserPass:
		return "user-pass"
	case AuthTypeStoredCredentials:
		return "stored-credentials"
	case AuthTypeAccessToken:
		return "access-token"
	default:
		return "unknown"
	}
}

// Credentials is one pairing produced by discovery. AuthData is opaque to
// callers; it feeds session authentication.
type Credentials struct {
	Username string
	AuthType AuthType
	AuthData []byte
}

// DiscoveryConfig describes the device to advertise for pairing.
type DiscoveryConfig struct {
	// DeviceID is the stable connect device id; derive one with
	// DeviceIDFromName.
	DeviceID string
	// ClientID for pairing; empty means DefaultClientID.
	ClientID string
	// Name shown in the phone's device picker.
	Name string
	// DeviceType advertised; zero value means DeviceTypeSpeaker.
	DeviceType DeviceType
	// Listen overrides the pairing endpoint address (tests mostly).
	Listen string
}

// Discovery advertises this device and streams pairings. Close ends the
// stream permanently.
type Discovery struct {
	mu     sync.Mutex
	server *zeroconf.Server
	closed bool
}

// NewDiscovery starts a pairing session.
func NewDiscovery(cfg DiscoveryConfig) (*Discovery, error) {
	if cfg.DeviceID == "" {
		return nil, WrapError(KindInit, "discovery requires a device id", nil)
	}
	if cfg.Name == "" {
		return nil, WrapError(KindInit, "discovery requires a device name", nil)
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}
	deviceType := cfg.DeviceType
	if deviceType == DeviceTypeUnknown {
		deviceType = DeviceTypeSpeaker
	}

	server, err := zeroconf.New(zeroconf.Config{
		DeviceID:   cfg.DeviceID,
		DeviceName: cfg.Name,
		DeviceType: deviceType.String(),
		ClientID:   clientID,
		Listen:     cfg.Listen,
		Log:        Logger().Named("discovery"),
	})
	if err != nil {
		return nil, WrapError(KindDiscovery, "starting discovery", err)
	}
	return &Discovery{server: server}, nil
}

// Next blocks until a user pairs with this device. After Close it returns
// ErrDiscoveryEnded on every call.
func (d *Discovery) Next(ctx context.Context) (*Credentials, error) {
	creds, err := d.server.Next(ctx)
	if err != nil {
		if errors.Is(err, zeroconf.ErrEnded) {
			return nil, ErrDiscoveryEnded
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, WrapError(KindDiscovery, "waiting for pairing", err)
	}
	return &Credentials{
		Username: creds.Username,
		AuthType: AuthType(creds.AuthType),
		AuthData: creds.AuthData,
	}, nil
}

// Close stops the advertisement and ends the stream. Idempotent and
// nil-safe.
func (d *Discovery) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.server.Close()
}
