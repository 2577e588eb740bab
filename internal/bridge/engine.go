// Package bridge hosts the process-scoped reference consumer of the
// boundary API: one engine that runs the whole pairing-to-playback
// pipeline on a background goroutine and exposes it through bool-returning
// commands, a fixed-schema JSON snapshot, and a read-and-clear error slot.
// Embedders with a foreign calling convention (a mobile shell, an MQTT
// module) talk to this instead of juggling the individual handles.
package bridge

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/gospot-dev/gospot/pkg/gospot"
	"github.com/gospot-dev/gospot/pkg/remote"
)

type pipelineFunc func(ctx context.Context, deviceName string)

// Engine is the bridge runtime. All exported methods are safe from any
// goroutine; one mutex guards the whole handle set.
type Engine struct {
	mu sync.Mutex

	running    bool
	ready      bool
	status     string
	lastErr    string
	deviceName string

	discovery  *gospot.Discovery
	session    *gospot.Session
	mixer      *gospot.Mixer
	player     *gospot.Player
	connectCfg *gospot.ConnectConfig
	spirc      *gospot.Spirc
	task       *gospot.SpircTask

	cancel   context.CancelFunc
	stopWait chan struct{}

	log      *zap.Logger
	pipeline pipelineFunc
}

var (
	defaultEngine *Engine
	defaultOnce   sync.Once
)

// Default returns the process singleton.
func Default() *Engine {
	defaultOnce.Do(func() { defaultEngine = New(nil) })
	return defaultEngine
}

// New creates an engine. A nil logger uses the library logger.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = gospot.Logger().Named("bridge")
	}
	e := &Engine{
		status: "stopped",
		log:    log,
	}
	e.pipeline = e.runPipeline
	return e
}

// Start launches the pipeline for the named device. It returns true when
// the engine is running afterwards, including when it already was; a
// second Start while running is a no-op.
func (e *Engine) Start(deviceName string) bool {
	if deviceName == "" {
		e.setError("device name is required")
		return false
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return true
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.running = true
	e.ready = false
	e.deviceName = deviceName
	e.status = "starting"
	e.cancel = cancel
	e.stopWait = make(chan struct{})
	stopWait := e.stopWait
	e.mu.Unlock()

	go func() {
		defer close(stopWait)
		e.pipeline(ctx, deviceName)
	}()
	return true
}

// Stop shuts the session down and joins the background goroutine.
// Idempotent; returns once the pipeline has fully unwound.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	spirc := e.spirc
	discovery := e.discovery
	cancel := e.cancel
	stopWait := e.stopWait
	e.mu.Unlock()

	if spirc != nil {
		spirc.Shutdown()
	}
	if discovery != nil {
		_ = discovery.Close()
	}
	if cancel != nil {
		cancel()
	}
	if stopWait != nil {
		<-stopWait
	}
}

// Running reports whether the pipeline goroutine is alive.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Ready reports whether the session handles exist and accept commands.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// TakeLastError returns the recorded error message and clears the slot.
// The slot keeps only the newest failure: an unread message is
// overwritten by a later one.
func (e *Engine) TakeLastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg := e.lastErr
	e.lastErr = ""
	return msg
}

// Snapshot returns the engine and session state in the fixed wire schema.
func (e *Engine) Snapshot() remote.Snapshot {
	e.mu.Lock()
	snap := remote.Snapshot{
		Running:       e.running,
		Ready:         e.ready,
		StatusMessage: e.status,
		DeviceName:    e.deviceName,
		PlaybackState: gospot.PlaybackStateStopped.String(),
	}
	spirc := e.spirc
	e.mu.Unlock()

	if spirc != nil {
		s := spirc.Snapshot()
		snap.Connected = s.Connected
		snap.PlaybackState = s.Playback.String()
		snap.PositionMS = s.PositionMS
		snap.DurationMS = s.DurationMS
		snap.Volume = s.Volume
		snap.Title = s.Title
		snap.Artist = s.Artist
		snap.Album = s.Album
		snap.ArtworkURL = s.ArtworkURL
	}
	return snap
}

// SnapshotJSON renders Snapshot as JSON for embedders that want a string.
func (e *Engine) SnapshotJSON() string {
	out, err := json.Marshal(e.Snapshot())
	if err != nil {
		return `{"running":false,"ready":false,"statusMessage":"snapshot failed"}`
	}
	return string(out)
}

// Transfer moves playback to this device.
func (e *Engine) Transfer() bool {
	return e.command(func(s *gospot.Spirc) error { return s.Transfer() })
}

// Resume resumes playback.
func (e *Engine) Resume() bool {
	return e.command(func(s *gospot.Spirc) error { return s.Resume() })
}

// Pause pauses playback.
func (e *Engine) Pause() bool {
	return e.command(func(s *gospot.Spirc) error { return s.Pause() })
}

// PlayPause toggles playback.
func (e *Engine) PlayPause() bool {
	return e.command(func(s *gospot.Spirc) error { return s.PlayPause() })
}

// Next skips forward.
func (e *Engine) Next() bool {
	return e.command(func(s *gospot.Spirc) error { return s.Next() })
}

// Previous skips backward.
func (e *Engine) Previous() bool {
	return e.command(func(s *gospot.Spirc) error { return s.Previous() })
}

// SeekTo moves the playhead.
func (e *Engine) SeekTo(positionMS uint32) bool {
	return e.command(func(s *gospot.Spirc) error { return s.SeekTo(positionMS) })
}

// SetVolume applies an absolute volume.
func (e *Engine) SetVolume(volume uint16) bool {
	return e.command(func(s *gospot.Spirc) error { return s.SetVolume(volume) })
}

// VolumeUp raises volume one step.
func (e *Engine) VolumeUp() bool {
	return e.command(func(s *gospot.Spirc) error { return s.VolumeUp() })
}

// VolumeDown lowers volume one step.
func (e *Engine) VolumeDown() bool {
	return e.command(func(s *gospot.Spirc) error { return s.VolumeDown() })
}

// SetShuffle toggles shuffle.
func (e *Engine) SetShuffle(enabled bool) bool {
	return e.command(func(s *gospot.Spirc) error { return s.SetShuffle(enabled) })
}

// SetRepeatContext toggles context repeat.
func (e *Engine) SetRepeatContext(enabled bool) bool {
	return e.command(func(s *gospot.Spirc) error { return s.SetRepeatContext(enabled) })
}

// SetRepeatTrack toggles track repeat.
func (e *Engine) SetRepeatTrack(enabled bool) bool {
	return e.command(func(s *gospot.Spirc) error { return s.SetRepeatTrack(enabled) })
}

// LoadTrack validates the input as a track URI or id and loads it,
// starting playback.
func (e *Engine) LoadTrack(input string) bool {
	uri, err := gospot.TrackURIFromInput(input)
	if err != nil {
		e.setError(err.Error())
		return false
	}
	opts := gospot.NewLoadRequestOptions()
	opts.SetStartPlaying(true)
	defer opts.Close()
	return e.command(func(s *gospot.Spirc) error {
		return s.LoadTracks([]string{uri}, opts)
	})
}

// AddToQueue validates the input and queues it after the current track.
func (e *Engine) AddToQueue(input string) bool {
	uri, err := gospot.TrackURIFromInput(input)
	if err != nil {
		e.setError(err.Error())
		return false
	}
	return e.command(func(s *gospot.Spirc) error { return s.AddToQueue(uri) })
}

// Disconnect withdraws the device as active player.
func (e *Engine) Disconnect(pause bool) bool {
	return e.command(func(s *gospot.Spirc) error { return s.Disconnect(pause) })
}

func (e *Engine) command(fn func(s *gospot.Spirc) error) bool {
	e.mu.Lock()
	spirc := e.spirc
	ready := e.ready
	e.mu.Unlock()

	if !ready || spirc == nil {
		e.setError("engine is not ready")
		return false
	}
	if err := fn(spirc); err != nil {
		e.setError(err.Error())
		return false
	}
	return true
}

func (e *Engine) setError(msg string) {
	e.mu.Lock()
	e.lastErr = msg
	e.mu.Unlock()
	e.log.Warn("bridge error", zap.String("error", msg))
}

func (e *Engine) setStatus(status string) {
	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}
