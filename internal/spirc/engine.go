// Package spirc implements the connect engine behind the public controller
// and task handles. A single goroutine (the task loop) owns every mutable
// piece of protocol state; controller calls hand closures to that goroutine
// over a command channel and read a lock-guarded state mirror.
package spirc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gospot-dev/gospot/internal/dealer"
	"github.com/gospot-dev/gospot/internal/sink"
)

var (
	// ErrNotReady is returned by commands issued before the engine has
	// connected to the backend.
	ErrNotReady = errors.New("connect engine is not ready")
	// ErrStopped is returned by commands issued after the task loop exited.
	ErrStopped = errors.New("connect engine has stopped")
	// ErrTaskConsumed is returned by a second Run call on the same engine.
	ErrTaskConsumed = errors.New("connect task already ran")
)

const (
	maxVolume  = 65535
	volumeStep = 65536 / 16
)

// VolumeControl is the mixer surface the engine drives.
type VolumeControl interface {
	Volume() uint16
	SetVolume(volume uint16)
}

// Config assembles the collaborators of one engine instance.
type Config struct {
	DeviceID   string
	DeviceName string
	DeviceType string
	ClientID   string
	Username   string

	Dialer dealer.Dialer
	Sink   sink.Driver
	Volume VolumeControl
	Log    *zap.Logger
}

// Engine runs the connect session. Command and query methods are safe from
// any goroutine; Run must be called exactly once.
type Engine struct {
	cfg Config
	log *zap.Logger

	cmds         chan command
	reports      chan dealer.StateReport
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	stopped      chan struct{}
	consumed     atomic.Bool

	mirror mirror
}

type command struct {
	apply func(ls *loopState) error
	reply chan error
}

// loopState is owned exclusively by the task loop goroutine.
type loopState struct {
	tracks []string
	index  int
}

// New creates an engine. It does not connect; Run does.
func New(cfg Config) (*Engine, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("spirc: dialer is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("spirc: sink is required")
	}
	if cfg.Volume == nil {
		return nil, errors.New("spirc: volume control is required")
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		cfg:        cfg,
		log:        log,
		cmds:       make(chan command, 32),
		reports:    make(chan dealer.StateReport, 1),
		shutdownCh: make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	e.mirror.update(func(s *State) {
		s.Playback = PlaybackStopped
		s.Volume = cfg.Volume.Volume()
	})
	return e, nil
}

// Run drives the engine's event loop until shutdown, a transport failure,
// or context cancellation. Exactly one goroutine may call it, once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.consumed.CompareAndSwap(false, true) {
		return ErrTaskConsumed
	}
	defer close(e.stopped)
	defer e.mirror.update(func(s *State) {
		s.Connected = false
		s.Active = false
	})

	// Shutdown requested before the loop ever started.
	select {
	case <-e.shutdownCh:
		return nil
	default:
	}

	conn, err := e.cfg.Dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("connect dial: %w", err)
	}
	defer conn.Close()

	if err := e.handshake(ctx, conn); err != nil {
		return err
	}

	e.mirror.update(func(s *State) {
		s.Connected = true
		s.Volume = e.cfg.Volume.Volume()
	})
	e.log.Info("connect engine ready",
		zap.String("device_id", e.cfg.DeviceID),
		zap.String("device_name", e.cfg.DeviceName),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan dealer.Message, 8)
	recvErr := make(chan error, 1)
	go func() {
		for {
			msg, err := conn.Recv(runCtx)
			if err != nil {
				select {
				case recvErr <- err:
				case <-runCtx.Done():
				}
				return
			}
			select {
			case msgs <- msg:
			case <-runCtx.Done():
				return
			}
		}
	}()
	go e.sendLoop(runCtx, conn)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	ls := &loopState{}
	for {
		select {
		case cmd := <-e.cmds:
			err := cmd.apply(ls)
			cmd.reply <- err
			if err == nil {
				e.publishState()
			}
		case msg := <-msgs:
			e.handleMessage(runCtx, conn, ls, msg)
		case <-ticker.C:
			e.syncPosition()
		case err := <-recvErr:
			select {
			case <-e.shutdownCh:
				return nil
			default:
			}
			return fmt.Errorf("connect session: %w", err)
		case <-e.shutdownCh:
			e.sayGoodbye(conn)
			_ = e.cfg.Sink.Stop()
			e.mirror.update(func(s *State) { s.Playback = PlaybackStopped })
			e.log.Info("connect engine shut down")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown asks the task loop to terminate. Idempotent, safe from any
// goroutine, and valid before, during, and after Run.
func (e *Engine) Shutdown() {
	e.shutdownOnce.Do(func() { close(e.shutdownCh) })
}

// Ready reports whether the engine accepts commands.
func (e *Engine) Ready() bool {
	return e.mirror.read().Connected
}

// Snapshot returns one consistent copy of the mirrored protocol state.
func (e *Engine) Snapshot() State {
	return e.mirror.read()
}

func (e *Engine) handshake(ctx context.Context, conn dealer.Conn) error {
	hello, err := dealer.EncodePayload(dealer.TypeHello, dealer.Hello{
		DeviceID:   e.cfg.DeviceID,
		DeviceName: e.cfg.DeviceName,
		DeviceType: e.cfg.DeviceType,
		ClientID:   e.cfg.ClientID,
		Username:   e.cfg.Username,
	})
	if err != nil {
		return fmt.Errorf("connect handshake: %w", err)
	}
	hctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := conn.Send(hctx, hello); err != nil {
		return fmt.Errorf("connect handshake: %w", err)
	}
	for {
		msg, err := conn.Recv(hctx)
		if err != nil {
			return fmt.Errorf("connect handshake: %w", err)
		}
		if msg.Type == dealer.TypeReady {
			return nil
		}
	}
}

// do runs apply on the task loop goroutine and waits for its result.
func (e *Engine) do(apply func(ls *loopState) error) error {
	if !e.Ready() {
		return ErrNotReady
	}
	cmd := command{apply: apply, reply: make(chan error, 1)}
	select {
	case e.cmds <- cmd:
	case <-e.stopped:
		return ErrStopped
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-e.stopped:
		return ErrStopped
	}
}

// Activate announces this device as an available connect target.
func (e *Engine) Activate() error {
	return e.do(func(ls *loopState) error {
		e.mirror.update(func(s *State) { s.Active = true })
		return nil
	})
}

// Transfer asks the backend to move the running playback session here.
func (e *Engine) Transfer() error {
	return e.do(func(ls *loopState) error {
		e.mirror.update(func(s *State) { s.Active = true })
		e.log.Debug("transfer requested")
		return nil
	})
}

// Resume starts or resumes playback of the loaded track.
func (e *Engine) Resume() error {
	return e.do(func(ls *loopState) error { return e.resumeLocked(ls) })
}

// Pause pauses playback.
func (e *Engine) Pause() error {
	return e.do(func(ls *loopState) error { return e.pauseLocked(ls) })
}

// PlayPause toggles between playing and paused.
func (e *Engine) PlayPause() error {
	return e.do(func(ls *loopState) error {
		if e.mirror.read().Playback == PlaybackPlaying {
			return e.pauseLocked(ls)
		}
		return e.resumeLocked(ls)
	})
}

// Next skips to the next track in the loaded context.
func (e *Engine) Next() error {
	return e.do(func(ls *loopState) error { return e.skip(ls, 1) })
}

// Previous skips to the previous track.
func (e *Engine) Previous() error {
	return e.do(func(ls *loopState) error { return e.skip(ls, -1) })
}

// SeekTo moves the playhead of the current track.
func (e *Engine) SeekTo(positionMS uint32) error {
	return e.do(func(ls *loopState) error {
		if len(ls.tracks) == 0 {
			return errors.New("no track loaded")
		}
		if err := e.cfg.Sink.Seek(positionMS); err != nil {
			return err
		}
		e.mirror.update(func(s *State) { s.PositionMS = positionMS })
		return nil
	})
}

// SetVolume applies an absolute volume level.
func (e *Engine) SetVolume(volume uint16) error {
	return e.do(func(ls *loopState) error {
		e.applyVolume(volume)
		return nil
	})
}

// VolumeUp raises volume by one step.
func (e *Engine) VolumeUp() error {
	return e.stepVolume(volumeStep)
}

// VolumeDown lowers volume by one step.
func (e *Engine) VolumeDown() error {
	return e.stepVolume(-volumeStep)
}

func (e *Engine) stepVolume(delta int) error {
	return e.do(func(ls *loopState) error {
		next := int(e.mirror.read().Volume) + delta
		if next < 0 {
			next = 0
		}
		if next > maxVolume {
			next = maxVolume
		}
		e.applyVolume(uint16(next))
		return nil
	})
}

// SetShuffle toggles shuffle mode.
func (e *Engine) SetShuffle(enabled bool) error {
	return e.do(func(ls *loopState) error {
		e.mirror.update(func(s *State) { s.Shuffle = enabled })
		return nil
	})
}

// SetRepeatContext toggles whole-context repeat.
func (e *Engine) SetRepeatContext(enabled bool) error {
	return e.do(func(ls *loopState) error {
		e.mirror.update(func(s *State) { s.RepeatContext = enabled })
		return nil
	})
}

// SetRepeatTrack toggles single-track repeat.
func (e *Engine) SetRepeatTrack(enabled bool) error {
	return e.do(func(ls *loopState) error {
		e.mirror.update(func(s *State) { s.RepeatTrack = enabled })
		return nil
	})
}

// LoadTracks replaces the playback context with the given track URIs.
func (e *Engine) LoadTracks(uris []string, startPlaying bool, seekToMS uint32) error {
	if len(uris) == 0 {
		return errors.New("no tracks provided")
	}
	tracks := make([]string, len(uris))
	copy(tracks, uris)
	return e.do(func(ls *loopState) error {
		ls.tracks = tracks
		ls.index = 0
		return e.loadCurrent(ls, startPlaying, seekToMS)
	})
}

// AddToQueue inserts a track right after the current one.
func (e *Engine) AddToQueue(uri string) error {
	return e.do(func(ls *loopState) error {
		if len(ls.tracks) == 0 {
			ls.tracks = []string{uri}
			ls.index = 0
			return nil
		}
		at := ls.index + 1
		ls.tracks = append(ls.tracks[:at], append([]string{uri}, ls.tracks[at:]...)...)
		return nil
	})
}

// Disconnect withdraws this device as the active player, optionally
// pausing local playback first.
func (e *Engine) Disconnect(pause bool) error {
	return e.do(func(ls *loopState) error {
		if pause && e.mirror.read().Playback == PlaybackPlaying {
			if err := e.pauseLocked(ls); err != nil {
				return err
			}
		}
		e.mirror.update(func(s *State) { s.Active = false })
		return nil
	})
}

func (e *Engine) resumeLocked(ls *loopState) error {
	if len(ls.tracks) == 0 {
		return errors.New("no track loaded")
	}
	if err := e.cfg.Sink.Play(); err != nil {
		return err
	}
	e.mirror.update(func(s *State) { s.Playback = PlaybackPlaying })
	return nil
}

func (e *Engine) pauseLocked(ls *loopState) error {
	if len(ls.tracks) == 0 {
		return errors.New("no track loaded")
	}
	if err := e.cfg.Sink.Pause(); err != nil {
		return err
	}
	e.mirror.update(func(s *State) { s.Playback = PlaybackPaused })
	return nil
}

func (e *Engine) skip(ls *loopState, delta int) error {
	if len(ls.tracks) == 0 {
		return errors.New("no tracks loaded")
	}
	st := e.mirror.read()
	next := ls.index + delta
	if next >= len(ls.tracks) {
		if !st.RepeatContext {
			_ = e.cfg.Sink.Stop()
			e.mirror.update(func(s *State) { s.Playback = PlaybackStopped })
			return nil
		}
		next = 0
	}
	if next < 0 {
		next = 0
	}
	ls.index = next
	playing := st.Playback == PlaybackPlaying || st.Playback == PlaybackLoading
	return e.loadCurrent(ls, playing, 0)
}

func (e *Engine) loadCurrent(ls *loopState, play bool, seekToMS uint32) error {
	uri := ls.tracks[ls.index]
	e.mirror.update(func(s *State) {
		s.Playback = PlaybackLoading
		s.Track = trackFromURI(uri)
		s.PositionMS = seekToMS
	})
	if err := e.cfg.Sink.Load(uri, play, seekToMS); err != nil {
		e.mirror.update(func(s *State) { s.Playback = PlaybackStopped })
		return err
	}
	e.mirror.update(func(s *State) {
		if play {
			s.Playback = PlaybackPlaying
		} else {
			s.Playback = PlaybackPaused
		}
	})
	return nil
}

func (e *Engine) applyVolume(volume uint16) {
	e.cfg.Volume.SetVolume(volume)
	_ = e.cfg.Sink.SetVolume(volume)
	e.mirror.update(func(s *State) { s.Volume = volume })
}

func (e *Engine) syncPosition() {
	if e.mirror.read().Playback != PlaybackPlaying {
		return
	}
	if pos, ok := e.cfg.Sink.Position(); ok {
		e.mirror.update(func(s *State) { s.PositionMS = pos })
	}
}

func (e *Engine) handleMessage(ctx context.Context, conn dealer.Conn, ls *loopState, msg dealer.Message) {
	switch msg.Type {
	case dealer.TypePing:
		pong := dealer.Message{Type: dealer.TypePong}
		sctx, cancel := context.WithTimeout(ctx, time.Second)
		_ = conn.Send(sctx, pong)
		cancel()
	case dealer.TypeCommand:
		var cmd dealer.Command
		if err := decodePayload(msg, &cmd); err != nil {
			e.log.Warn("dropping malformed remote command", zap.Error(err))
			return
		}
		if err := e.applyRemote(ls, cmd); err != nil {
			e.log.Warn("remote command failed",
				zap.String("command", cmd.Name),
				zap.Error(err),
			)
			return
		}
		e.publishState()
	case dealer.TypeCluster:
		var update dealer.ClusterUpdate
		if err := decodePayload(msg, &update); err != nil {
			e.log.Warn("dropping malformed cluster update", zap.Error(err))
			return
		}
		e.applyCluster(update)
	}
}

func (e *Engine) applyRemote(ls *loopState, cmd dealer.Command) error {
	switch cmd.Name {
	case "play", "resume":
		return e.resumeLocked(ls)
	case "pause":
		return e.pauseLocked(ls)
	case "next":
		return e.skip(ls, 1)
	case "prev":
		return e.skip(ls, -1)
	case "seek":
		if len(ls.tracks) == 0 {
			return errors.New("no track loaded")
		}
		if err := e.cfg.Sink.Seek(cmd.PositionMS); err != nil {
			return err
		}
		e.mirror.update(func(s *State) { s.PositionMS = cmd.PositionMS })
		return nil
	case "volume":
		e.applyVolume(cmd.Volume)
		return nil
	case "shuffle":
		e.mirror.update(func(s *State) { s.Shuffle = cmd.Enabled })
		return nil
	case "repeat_context":
		e.mirror.update(func(s *State) { s.RepeatContext = cmd.Enabled })
		return nil
	case "repeat_track":
		e.mirror.update(func(s *State) { s.RepeatTrack = cmd.Enabled })
		return nil
	case "load":
		if len(cmd.URIs) == 0 {
			return errors.New("no tracks provided")
		}
		ls.tracks = append([]string(nil), cmd.URIs...)
		ls.index = 0
		return e.loadCurrent(ls, true, cmd.PositionMS)
	case "transfer":
		e.mirror.update(func(s *State) { s.Active = true })
		return nil
	default:
		return fmt.Errorf("unsupported remote command %q", cmd.Name)
	}
}

func (e *Engine) applyCluster(update dealer.ClusterUpdate) {
	if update.Volume != nil {
		e.cfg.Volume.SetVolume(*update.Volume)
		_ = e.cfg.Sink.SetVolume(*update.Volume)
	}
	e.mirror.update(func(s *State) {
		if update.Track != nil {
			s.Track = Track{
				ID:         update.Track.ID,
				URI:        update.Track.URI,
				Title:      update.Track.Title,
				Artist:     update.Track.Artist,
				Album:      update.Track.Album,
				ArtworkURL: update.Track.ArtworkURL,
				DurationMS: update.Track.DurationMS,
			}
		}
		if update.PositionMS != nil {
			s.PositionMS = *update.PositionMS
		}
		if update.Volume != nil {
			s.Volume = *update.Volume
		}
		if update.Shuffle != nil {
			s.Shuffle = *update.Shuffle
		}
		if update.RepeatContext != nil {
			s.RepeatContext = *update.RepeatContext
		}
		if update.RepeatTrack != nil {
			s.RepeatTrack = *update.RepeatTrack
		}
	})
}

// publishState queues a state report, keeping only the latest if the
// sender is behind.
func (e *Engine) publishState() {
	s := e.mirror.read()
	report := dealer.StateReport{
		DeviceID:   e.cfg.DeviceID,
		Active:     s.Active,
		Playback:   s.Playback.String(),
		PositionMS: s.PositionMS,
		Volume:     s.Volume,
		TrackURI:   s.Track.URI,
	}
	for {
		select {
		case e.reports <- report:
			return
		default:
		}
		select {
		case <-e.reports:
		default:
		}
	}
}

func (e *Engine) sendLoop(ctx context.Context, conn dealer.Conn) {
	for {
		select {
		case report := <-e.reports:
			msg, err := dealer.EncodePayload(dealer.TypeState, report)
			if err != nil {
				continue
			}
			sctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := conn.Send(sctx, msg); err != nil {
				cancel()
				return
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) sayGoodbye(conn dealer.Conn) {
	msg, err := dealer.EncodePayload(dealer.TypeGoodbye, dealer.StateReport{
		DeviceID: e.cfg.DeviceID,
	})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = conn.Send(ctx, msg)
}

func decodePayload(msg dealer.Message, v any) error {
	if len(msg.Payload) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(msg.Payload, v)
}
