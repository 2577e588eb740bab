package spirc

import "sync"

// mirror is the eventually-consistent copy of protocol state shared
// between the task loop (writer) and query callers (readers). Reads never
// block on the loop; writes hold the lock only for the copy.
type mirror struct {
	mu sync.RWMutex
	s  State
}

func (m *mirror) update(f func(*State)) {
	m.mu.Lock()
	f(&m.s)
	clamp(&m.s)
	m.mu.Unlock()
}

func (m *mirror) read() State {
	m.mu.RLock()
	s := m.s
	m.mu.RUnlock()
	return s
}

// clamp maintains the snapshot invariants: position never exceeds a known
// duration, and an unknown track reports position zero once stopped.
func clamp(s *State) {
	if s.Track.DurationMS > 0 && s.PositionMS > s.Track.DurationMS {
		s.PositionMS = s.Track.DurationMS
	}
	if s.Playback == PlaybackStopped {
		s.PositionMS = 0
	}
}
