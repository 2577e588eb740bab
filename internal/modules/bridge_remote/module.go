// Package bridgeremote exposes the connect bridge engine over MQTT: it
// executes command envelopes against the engine and keeps a retained
// snapshot topic fresh.
package bridgeremote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/gospot-dev/gospot/pkg/gospot"
	"github.com/gospot-dev/gospot/pkg/remote"
)

// Broker is the slice of the MQTT client the module needs.
type Broker interface {
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Publish(topic string, payload []byte, retained bool) error
}

// Engine is the slice of the bridge engine the module drives.
type Engine interface {
	Start(deviceName string) bool
	Stop()
	Snapshot() remote.Snapshot
	TakeLastError() string

	Transfer() bool
	Resume() bool
	Pause() bool
	PlayPause() bool
	Next() bool
	Previous() bool
	SeekTo(positionMS uint32) bool
	SetVolume(volume uint16) bool
	VolumeUp() bool
	VolumeDown() bool
	SetShuffle(enabled bool) bool
	SetRepeatContext(enabled bool) bool
	SetRepeatTrack(enabled bool) bool
	LoadTrack(input string) bool
	AddToQueue(input string) bool
	Disconnect(pause bool) bool
}

// Config configures the bridge module.
type Config struct {
	DeviceName       string
	TopicBase        string
	Autostart        bool
	SnapshotInterval time.Duration
}

// Module wires one bridge engine to the broker.
type Module struct {
	log    *zap.Logger
	broker Broker
	engine Engine
	config Config

	deviceID string
}

// NewModule creates the bridge module.
func NewModule(log *zap.Logger, broker Broker, engine Engine, cfg Config) (*Module, error) {
	if cfg.DeviceName == "" {
		return nil, errors.New("bridge_remote requires a device name")
	}
	if cfg.TopicBase == "" {
		cfg.TopicBase = remote.BaseTopic
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 5 * time.Second
	}
	return &Module{
		log:      log,
		broker:   broker,
		engine:   engine,
		config:   cfg,
		deviceID: gospot.DeviceIDFromName(cfg.DeviceName),
	}, nil
}

// DeviceID returns the derived device id the module serves under.
func (m *Module) DeviceID() string {
	return m.deviceID
}

// Run subscribes for commands and maintains the retained snapshot until
// the context ends, then stops the engine.
func (m *Module) Run(ctx context.Context) error {
	cmdTopic := remote.TopicCommands(m.config.TopicBase, m.deviceID)
	if err := m.broker.Subscribe(cmdTopic, m.handleCommand); err != nil {
		return err
	}
	m.log.Info("serving bridge",
		zap.String("device_name", m.config.DeviceName),
		zap.String("device_id", m.deviceID),
		zap.String("cmd_topic", cmdTopic),
	)

	if m.config.Autostart {
		if !m.engine.Start(m.config.DeviceName) {
			m.log.Warn("autostart failed", zap.String("error", m.engine.TakeLastError()))
		}
	}
	m.publishSnapshot()

	ticker := time.NewTicker(m.config.SnapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.publishSnapshot()
		case <-ctx.Done():
			m.engine.Stop()
			m.publishSnapshot()
			return nil
		}
	}
}

func (m *Module) handleCommand(_ string, payload []byte) {
	var cmd remote.CommandEnvelope
	if err := json.Unmarshal(payload, &cmd); err != nil {
		m.log.Warn("dropping malformed command", zap.Error(err))
		return
	}
	if err := remote.ValidateCommandEnvelope(cmd); err != nil {
		m.reply(cmd, nil, &remote.ReplyError{Code: remote.ErrCodeInvalid, Message: err.Error()})
		return
	}

	body, replyErr := m.dispatch(cmd)
	m.reply(cmd, body, replyErr)
	m.publishSnapshot()
}

func (m *Module) dispatch(cmd remote.CommandEnvelope) (json.RawMessage, *remote.ReplyError) {
	switch cmd.Type {
	case remote.CmdStart:
		var body remote.StartBody
		_ = json.Unmarshal(cmd.Body, &body)
		name := body.DeviceName
		if name == "" {
			name = m.config.DeviceName
		}
		return nil, m.boolResult(m.engine.Start(name))
	case remote.CmdStop:
		m.engine.Stop()
		return nil, nil
	case remote.CmdTransfer:
		return nil, m.boolResult(m.engine.Transfer())
	case remote.CmdResume:
		return nil, m.boolResult(m.engine.Resume())
	case remote.CmdPause:
		return nil, m.boolResult(m.engine.Pause())
	case remote.CmdPlayPause:
		return nil, m.boolResult(m.engine.PlayPause())
	case remote.CmdNext:
		return nil, m.boolResult(m.engine.Next())
	case remote.CmdPrev:
		return nil, m.boolResult(m.engine.Previous())
	case remote.CmdSeek:
		var body remote.SeekBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return nil, &remote.ReplyError{Code: remote.ErrCodeInvalid, Message: err.Error()}
		}
		return nil, m.boolResult(m.engine.SeekTo(body.PositionMS))
	case remote.CmdSetVolume:
		var body remote.VolumeBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return nil, &remote.ReplyError{Code: remote.ErrCodeInvalid, Message: err.Error()}
		}
		return nil, m.boolResult(m.engine.SetVolume(body.Volume))
	case remote.CmdVolumeUp:
		return nil, m.boolResult(m.engine.VolumeUp())
	case remote.CmdVolumeDown:
		return nil, m.boolResult(m.engine.VolumeDown())
	case remote.CmdSetShuffle:
		var body remote.ToggleBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return nil, &remote.ReplyError{Code: remote.ErrCodeInvalid, Message: err.Error()}
		}
		return nil, m.boolResult(m.engine.SetShuffle(body.Enabled))
	case remote.CmdSetRepeatCtx:
		var body remote.ToggleBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return nil, &remote.ReplyError{Code: remote.ErrCodeInvalid, Message: err.Error()}
		}
		return nil, m.boolResult(m.engine.SetRepeatContext(body.Enabled))
	case remote.CmdSetRepeatTrk:
		var body remote.ToggleBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return nil, &remote.ReplyError{Code: remote.ErrCodeInvalid, Message: err.Error()}
		}
		return nil, m.boolResult(m.engine.SetRepeatTrack(body.Enabled))
	case remote.CmdLoadTrack:
		var body remote.TrackBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return nil, &remote.ReplyError{Code: remote.ErrCodeInvalid, Message: err.Error()}
		}
		return nil, m.boolResult(m.engine.LoadTrack(body.URI))
	case remote.CmdAddToQueue:
		var body remote.TrackBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return nil, &remote.ReplyError{Code: remote.ErrCodeInvalid, Message: err.Error()}
		}
		return nil, m.boolResult(m.engine.AddToQueue(body.URI))
	case remote.CmdDisconnect:
		var body remote.DisconnectBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return nil, &remote.ReplyError{Code: remote.ErrCodeInvalid, Message: err.Error()}
		}
		return nil, m.boolResult(m.engine.Disconnect(body.Pause))
	case remote.CmdLastError:
		out, err := json.Marshal(remote.LastErrorBody{Message: m.engine.TakeLastError()})
		if err != nil {
			return nil, &remote.ReplyError{Code: remote.ErrCodeRuntime, Message: err.Error()}
		}
		return out, nil
	case remote.CmdSnapshot:
		out, err := json.Marshal(m.engine.Snapshot())
		if err != nil {
			return nil, &remote.ReplyError{Code: remote.ErrCodeRuntime, Message: err.Error()}
		}
		return out, nil
	default:
		return nil, &remote.ReplyError{Code: remote.ErrCodeInvalid, Message: "unknown command " + cmd.Type}
	}
}

// boolResult turns a failed passthrough into a reply error carrying the
// engine's recorded message.
func (m *Module) boolResult(ok bool) *remote.ReplyError {
	if ok {
		return nil
	}
	msg := m.engine.TakeLastError()
	if msg == "" {
		msg = "command failed"
	}
	code := remote.ErrCodeRuntime
	if msg == "engine is not ready" {
		code = remote.ErrCodeNotReady
	}
	return &remote.ReplyError{Code: code, Message: msg}
}

func (m *Module) reply(cmd remote.CommandEnvelope, body json.RawMessage, replyErr *remote.ReplyError) {
	if cmd.ReplyTo == "" {
		return
	}
	env := remote.ReplyEnvelope{
		ID:   cmd.ID,
		Type: cmd.Type,
		OK:   replyErr == nil,
		TS:   time.Now().Unix(),
		Body: body,
		Err:  replyErr,
	}
	out, err := json.Marshal(env)
	if err != nil {
		m.log.Warn("marshal reply failed", zap.Error(err))
		return
	}
	if err := m.broker.Publish(cmd.ReplyTo, out, false); err != nil {
		m.log.Warn("publish reply failed", zap.Error(err))
	}
}

func (m *Module) publishSnapshot() {
	out, err := json.Marshal(m.engine.Snapshot())
	if err != nil {
		m.log.Warn("marshal snapshot failed", zap.Error(err))
		return
	}
	topic := remote.TopicSnapshot(m.config.TopicBase, m.deviceID)
	if err := m.broker.Publish(topic, out, true); err != nil {
		m.log.Warn("publish snapshot failed", zap.Error(err))
	}
}
