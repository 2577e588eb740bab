// Package remote defines the versioned MQTT wire schema of the bridge
// daemon: command and reply envelopes plus the retained snapshot topic.
package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "gospot/v1"

// Command types understood by the bridge daemon.
const (
	CmdStart        = "engine.start"
	CmdStop         = "engine.stop"
	CmdTransfer     = "playback.transfer"
	CmdResume       = "playback.resume"
	CmdPause        = "playback.pause"
	CmdPlayPause    = "playback.playPause"
	CmdNext         = "playback.next"
	CmdPrev         = "playback.prev"
	CmdSeek         = "playback.seek"
	CmdSetVolume    = "playback.setVolume"
	CmdVolumeUp     = "playback.volumeUp"
	CmdVolumeDown   = "playback.volumeDown"
	CmdSetShuffle   = "playback.setShuffle"
	CmdSetRepeatCtx = "playback.setRepeatContext"
	CmdSetRepeatTrk = "playback.setRepeatTrack"
	CmdLoadTrack    = "playback.loadTrack"
	CmdAddToQueue   = "queue.add"
	CmdDisconnect   = "playback.disconnect"
	CmdLastError    = "engine.lastError"
	CmdSnapshot     = "engine.snapshot"
)

// CommandEnvelope is the command envelope published to the cmd topic.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// ReplyEnvelope is the response envelope for commands.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Reply error codes.
const (
	ErrCodeInvalid  = "INVALID"
	ErrCodeNotReady = "NOT_READY"
	ErrCodeRuntime  = "RUNTIME"
)

// Snapshot is the retained device snapshot payload. Field names are part
// of the embedder contract; do not rename.
type Snapshot struct {
	Running       bool   `json:"running"`
	Ready         bool   `json:"ready"`
	Connected     bool   `json:"connected"`
	PlaybackState string `json:"playbackState"`
	PositionMS    uint32 `json:"positionMs"`
	DurationMS    uint32 `json:"durationMs"`
	Volume        uint16 `json:"volume"`
	StatusMessage string `json:"statusMessage"`
	DeviceName    string `json:"deviceName"`
	Title         string `json:"title"`
	Artist        string `json:"artist"`
	Album         string `json:"album"`
	ArtworkURL    string `json:"artworkUrl"`
}

// SeekBody is the body of playback.seek.
type SeekBody struct {
	PositionMS uint32 `json:"positionMs"`
}

// VolumeBody is the body of playback.setVolume.
type VolumeBody struct {
	Volume uint16 `json:"volume"`
}

// ToggleBody is the body of the setShuffle/setRepeat commands.
type ToggleBody struct {
	Enabled bool `json:"enabled"`
}

// TrackBody is the body of playback.loadTrack and queue.add.
type TrackBody struct {
	URI string `json:"uri"`
}

// DisconnectBody is the body of playback.disconnect.
type DisconnectBody struct {
	Pause bool `json:"pause"`
}

// StartBody is the body of engine.start.
type StartBody struct {
	DeviceName string `json:"deviceName,omitempty"`
}

// LastErrorBody is the reply body of engine.lastError.
type LastErrorBody struct {
	Message string `json:"message"`
}

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	env := CommandEnvelope{Type: cmdType}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
		}
		env.Body = payload
	}
	return env, nil
}

// ValidateCommandEnvelope validates required envelope fields.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if cmd.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(cmd.From) == "" {
		return errors.New("from is required")
	}
	if CommandRequiresBody(cmd.Type) && len(cmd.Body) == 0 {
		return errors.New("body is required for " + cmd.Type)
	}
	return nil
}

// CommandRequiresBody reports whether a command type carries a body.
func CommandRequiresBody(cmdType string) bool {
	switch cmdType {
	case CmdSeek, CmdSetVolume, CmdSetShuffle, CmdSetRepeatCtx,
		CmdSetRepeatTrk, CmdLoadTrack, CmdAddToQueue, CmdDisconnect:
		return true
	default:
		return false
	}
}

// TopicCommands builds the command topic for a device.
func TopicCommands(topicBase, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/cmd", topicBase, deviceID)
}

// TopicSnapshot builds the retained snapshot topic for a device.
func TopicSnapshot(topicBase, deviceID string) string {
	return fmt.Sprintf("%s/device/%s/snapshot", topicBase, deviceID)
}

// TopicReply builds the reply topic for a controller instance.
func TopicReply(topicBase, controllerID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, controllerID)
}
