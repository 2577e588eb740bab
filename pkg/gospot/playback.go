package gospot

import (
	"sync/atomic"

	"github.com/gospot-dev/gospot/internal/sink"
)

// MaxVolume is the top of the mixer scale.
const MaxVolume uint16 = 65535

// Mixer is a software volume control on the [0, MaxVolume] scale.
type Mixer struct {
	volume atomic.Uint32
}

// NewSoftMixer creates a mixer at half volume.
func NewSoftMixer() (*Mixer, error) {
	m := &Mixer{}
	m.volume.Store(uint32(MaxVolume) / 2)
	return m, nil
}

// Volume returns the current level.
func (m *Mixer) Volume() uint16 {
	return uint16(m.volume.Load())
}

// SetVolume applies an absolute level.
func (m *Mixer) SetVolume(volume uint16) {
	m.volume.Store(uint32(volume))
}

// Close releases the mixer. Idempotent and nil-safe.
func (m *Mixer) Close() error { return nil }

// Player owns the audio sink. It borrows the session and mixer; closing
// the player does not close them.
type Player struct {
	session *Session
	mixer   *Mixer
	driver  sink.Driver
	closed  atomic.Bool
}

// NewPlayer creates a player on the default audio backend: GStreamer when
// the binary was built with the gstreamer tag, a silent wall-clock sink
// otherwise.
func NewPlayer(session *Session, mixer *Mixer) (*Player, error) {
	return NewPlayerBackend(session, mixer, "")
}

// NewPlayerBackend creates a player on a named backend ("gstreamer",
// "null", or "" for the default).
func NewPlayerBackend(session *Session, mixer *Mixer, backend string) (*Player, error) {
	if session == nil {
		return nil, WrapError(KindInit, "player requires a session", nil)
	}
	if mixer == nil {
		return nil, WrapError(KindInit, "player requires a mixer", nil)
	}
	driver, err := sink.Find(backend)
	if err != nil {
		return nil, WrapError(KindInit, "creating audio backend", err)
	}
	if err := driver.SetVolume(mixer.Volume()); err != nil {
		_ = driver.Close()
		return nil, WrapError(KindInit, "priming audio backend", err)
	}
	return &Player{session: session, mixer: mixer, driver: driver}, nil
}

// Close releases the audio backend. Idempotent and nil-safe.
func (p *Player) Close() error {
	if p == nil {
		return nil
	}
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.driver.Close()
}
