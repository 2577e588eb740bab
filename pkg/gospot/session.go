package gospot

import "sync"

// Session carries the authenticated identity behind a connect run. It is
// created unauthenticated; the spirc task fills in the username once its
// credentials are accepted.
type Session struct {
	mu       sync.Mutex
	deviceID string
	username string
	closed   bool
}

// NewSession creates a session for the given device id.
func NewSession(deviceID string) (*Session, error) {
	if deviceID == "" {
		return nil, WrapError(KindInit, "session requires a device id", nil)
	}
	return &Session{deviceID: deviceID}, nil
}

// DeviceID returns the device id the session was created with.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// Username returns the authenticated username, or "" before
// authentication.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

func (s *Session) setUsername(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the session. Idempotent and nil-safe.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
