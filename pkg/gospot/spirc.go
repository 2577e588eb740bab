package gospot

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/gospot-dev/gospot/internal/dealer"
	"github.com/gospot-dev/gospot/internal/spirc"
)

// Spirc is the thread-safe controller for one connect session. Commands
// and queries may be called from any goroutine; they fail with ErrNotReady
// until the paired SpircTask has established the session.
type Spirc struct {
	engine *spirc.Engine
	closed atomic.Bool
}

// SpircTask is the single-owner run handle of the session. Exactly one
// goroutine calls Run, exactly once.
type SpircTask struct {
	engine *spirc.Engine
	closed atomic.Bool
}

// NewSpirc assembles the connect session from its parts and returns the
// controller plus the task that drives it. It borrows the session, player
// and mixer; the snapshot of cfg is taken here, later mutations have no
// effect.
func NewSpirc(cfg *ConnectConfig, session *Session, creds *Credentials, player *Player, mixer *Mixer) (*Spirc, *SpircTask, error) {
	if cfg == nil {
		cfg = NewConnectConfig()
	}
	if session == nil {
		return nil, nil, WrapError(KindInit, "spirc requires a session", nil)
	}
	if session.isClosed() {
		return nil, nil, WrapError(KindInit, "spirc session", ErrClosed)
	}
	if creds == nil {
		return nil, nil, WrapError(KindInit, "spirc requires credentials", nil)
	}
	if player == nil {
		return nil, nil, WrapError(KindInit, "spirc requires a player", nil)
	}
	if mixer == nil {
		return nil, nil, WrapError(KindInit, "spirc requires a mixer", nil)
	}

	name, deviceType, initialVolume, dealerURL := cfg.snapshot()
	dialer := &dealer.WebsocketDialer{URL: dealerURL}
	return newSpirc(session, creds, player, mixer, name, deviceType, initialVolume, dialer)
}

// newSpirc is the dialer-injectable seam behind NewSpirc.
func newSpirc(session *Session, creds *Credentials, player *Player, mixer *Mixer, name string, deviceType DeviceType, initialVolume uint16, dialer dealer.Dialer) (*Spirc, *SpircTask, error) {
	mixer.SetVolume(initialVolume)
	session.setUsername(creds.Username)

	engine, err := spirc.New(spirc.Config{
		DeviceID:   session.DeviceID(),
		DeviceName: name,
		DeviceType: deviceType.String(),
		ClientID:   DefaultClientID(),
		Username:   creds.Username,
		Dialer:     dialer,
		Sink:       player.driver,
		Volume:     mixer,
		Log:        Logger().Named("spirc"),
	})
	if err != nil {
		return nil, nil, WrapError(KindInit, "creating connect engine", err)
	}
	return &Spirc{engine: engine}, &SpircTask{engine: engine}, nil
}

func (s *Spirc) cmd(name string, fn func() error) error {
	if s.closed.Load() {
		return WrapError(KindCommand, name, ErrClosed)
	}
	if err := fn(); err != nil {
		if errors.Is(err, spirc.ErrNotReady) || errors.Is(err, spirc.ErrStopped) ||
			errors.Is(err, spirc.ErrTaskConsumed) {
			return err
		}
		return WrapError(KindCommand, name, err)
	}
	return nil
}

// Activate announces this device as an available playback target.
func (s *Spirc) Activate() error {
	return s.cmd("activate", s.engine.Activate)
}

// Transfer moves the running playback session to this device.
func (s *Spirc) Transfer() error {
	return s.cmd("transfer", s.engine.Transfer)
}

// Resume starts or resumes playback.
func (s *Spirc) Resume() error {
	return s.cmd("resume", s.engine.Resume)
}

// Pause pauses playback.
func (s *Spirc) Pause() error {
	return s.cmd("pause", s.engine.Pause)
}

// PlayPause toggles between playing and paused.
func (s *Spirc) PlayPause() error {
	return s.cmd("play-pause", s.engine.PlayPause)
}

// Next skips to the next track.
func (s *Spirc) Next() error {
	return s.cmd("next", s.engine.Next)
}

// Previous skips to the previous track.
func (s *Spirc) Previous() error {
	return s.cmd("previous", s.engine.Previous)
}

// SeekTo moves the playhead of the current track.
func (s *Spirc) SeekTo(positionMS uint32) error {
	return s.cmd("seek", func() error { return s.engine.SeekTo(positionMS) })
}

// SetVolume applies an absolute volume on the [0, MaxVolume] scale.
func (s *Spirc) SetVolume(volume uint16) error {
	return s.cmd("set-volume", func() error { return s.engine.SetVolume(volume) })
}

// VolumeUp raises volume by one step, clamped at MaxVolume.
func (s *Spirc) VolumeUp() error {
	return s.cmd("volume-up", s.engine.VolumeUp)
}

// VolumeDown lowers volume by one step, clamped at zero.
func (s *Spirc) VolumeDown() error {
	return s.cmd("volume-down", s.engine.VolumeDown)
}

// SetShuffle toggles shuffle mode.
func (s *Spirc) SetShuffle(enabled bool) error {
	return s.cmd("set-shuffle", func() error { return s.engine.SetShuffle(enabled) })
}

// SetRepeatContext toggles whole-context repeat.
func (s *Spirc) SetRepeatContext(enabled bool) error {
	return s.cmd("set-repeat-context", func() error { return s.engine.SetRepeatContext(enabled) })
}

// SetRepeatTrack toggles single-track repeat.
func (s *Spirc) SetRepeatTrack(enabled bool) error {
	return s.cmd("set-repeat-track", func() error { return s.engine.SetRepeatTrack(enabled) })
}

// LoadTracks replaces the playback context with the given track URIs.
// Validate inputs with TrackURIFromInput first.
func (s *Spirc) LoadTracks(uris []string, opts *LoadRequestOptions) error {
	startPlaying, seekToMS := opts.snapshot()
	return s.cmd("load-tracks", func() error {
		return s.engine.LoadTracks(uris, startPlaying, seekToMS)
	})
}

// AddToQueue inserts a track right after the current one.
func (s *Spirc) AddToQueue(uri string) error {
	return s.cmd("add-to-queue", func() error { return s.engine.AddToQueue(uri) })
}

// Disconnect withdraws this device as the active player, optionally
// pausing local playback first.
func (s *Spirc) Disconnect(pause bool) error {
	return s.cmd("disconnect", func() error { return s.engine.Disconnect(pause) })
}

// Shutdown asks the task to terminate. Idempotent, safe from any
// goroutine, valid before, during and after the run.
func (s *Spirc) Shutdown() {
	s.engine.Shutdown()
}

// Snapshot returns one consistent copy of the session state.
func (s *Spirc) Snapshot() Snapshot {
	return snapshotFrom(s.engine.Snapshot())
}

// IsConnected reports whether the session is established.
func (s *Spirc) IsConnected() bool { return s.Snapshot().Connected }

// CurrentPlaybackState returns the playback phase.
func (s *Spirc) CurrentPlaybackState() PlaybackState { return s.Snapshot().Playback }

// CurrentPositionMS returns the playhead position.
func (s *Spirc) CurrentPositionMS() uint32 { return s.Snapshot().PositionMS }

// CurrentTrackDurationMS returns the duration of the current track, or 0
// when unknown.
func (s *Spirc) CurrentTrackDurationMS() uint32 { return s.Snapshot().DurationMS }

// CurrentVolume returns the volume on the [0, MaxVolume] scale.
func (s *Spirc) CurrentVolume() uint16 { return s.Snapshot().Volume }

// IsShuffleEnabled reports shuffle mode.
func (s *Spirc) IsShuffleEnabled() bool { return s.Snapshot().Shuffle }

// IsRepeatContextEnabled reports whole-context repeat.
func (s *Spirc) IsRepeatContextEnabled() bool { return s.Snapshot().RepeatContext }

// IsRepeatTrackEnabled reports single-track repeat.
func (s *Spirc) IsRepeatTrackEnabled() bool { return s.Snapshot().RepeatTrack }

// CurrentTrackID returns the base62 id of the current track, or "".
func (s *Spirc) CurrentTrackID() string { return s.Snapshot().TrackID }

// CurrentTrackURI returns the URI of the current track, or "".
func (s *Spirc) CurrentTrackURI() string { return s.Snapshot().TrackURI }

// CurrentTrackTitle returns the title of the current track, or "".
func (s *Spirc) CurrentTrackTitle() string { return s.Snapshot().Title }

// CurrentTrackArtist returns the artist of the current track, or "".
func (s *Spirc) CurrentTrackArtist() string { return s.Snapshot().Artist }

// CurrentTrackAlbum returns the album of the current track, or "".
func (s *Spirc) CurrentTrackAlbum() string { return s.Snapshot().Album }

// CurrentTrackArtworkURL returns the artwork URL of the current track,
// or "".
func (s *Spirc) CurrentTrackArtworkURL() string { return s.Snapshot().ArtworkURL }

// Close releases the controller. Call after the task's Run has returned.
// Idempotent and nil-safe.
func (s *Spirc) Close() error {
	if s == nil {
		return nil
	}
	if s.closed.CompareAndSwap(false, true) {
		s.engine.Shutdown()
	}
	return nil
}

// Run drives the session until Shutdown, a transport failure, or context
// cancellation. It may be consumed exactly once; a second call returns
// ErrTaskConsumed. A clean shutdown returns nil.
func (t *SpircTask) Run(ctx context.Context) error {
	if t.closed.Load() {
		return WrapError(KindTask, "connect task", ErrClosed)
	}
	err := t.engine.Run(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, spirc.ErrTaskConsumed) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return WrapError(KindTask, "connect task", err)
}

// Close releases the task handle. Call after Run has returned. Idempotent
// and nil-safe.
func (t *SpircTask) Close() error {
	if t == nil {
		return nil
	}
	if t.closed.CompareAndSwap(false, true) {
		t.engine.Shutdown()
	}
	return nil
}
