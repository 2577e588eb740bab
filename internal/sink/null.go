package sink

import (
	"errors"
	"sync"
	"time"
)

// Null is a silent driver that tracks the playhead against the wall
// clock. It backs builds without an audio stack and all tests.
type Null struct {
	mu      sync.Mutex
	loaded  bool
	playing bool
	// base is the playhead position at the moment of the last
	// play/pause/seek transition; startedAt is valid while playing.
	base      time.Duration
	startedAt time.Time
	closed    bool
}

// NewNull creates a silent driver.
func NewNull() *Null {
	return &Null{}
}

func (n *Null) Load(uri string, play bool, startMS uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return errors.New("sink closed")
	}
	n.loaded = true
	n.base = time.Duration(startMS) * time.Millisecond
	n.playing = play
	n.startedAt = time.Now()
	return nil
}

func (n *Null) Play() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.loaded {
		return errors.New("nothing loaded")
	}
	if !n.playing {
		n.playing = true
		n.startedAt = time.Now()
	}
	return nil
}

func (n *Null) Pause() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.loaded {
		return errors.New("nothing loaded")
	}
	if n.playing {
		n.base += time.Since(n.startedAt)
		n.playing = false
	}
	return nil
}

func (n *Null) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loaded = false
	n.playing = false
	n.base = 0
	return nil
}

func (n *Null) Seek(positionMS uint32) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.loaded {
		return errors.New("nothing loaded")
	}
	n.base = time.Duration(positionMS) * time.Millisecond
	n.startedAt = time.Now()
	return nil
}

func (n *Null) SetVolume(volume uint16) error {
	return nil
}

func (n *Null) Position() (uint32, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.loaded {
		return 0, false
	}
	pos := n.base
	if n.playing {
		pos += time.Since(n.startedAt)
	}
	return uint32(pos / time.Millisecond), true
}

func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.loaded = false
	n.playing = false
	return nil
}
