// Package dealer carries the message transport used by the connect engine.
// A Conn exchanges small JSON frames with the connect backend; the engine
// owns reconnection policy, the transport only moves frames.
package dealer

import (
	"context"
	"encoding/json"
	"errors"
)

// Message is a single dealer frame.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame types exchanged with the connect backend.
const (
	TypeHello   = "hello"
	TypeReady   = "ready"
	TypeState   = "state"
	TypeCluster = "cluster"
	TypeCommand = "command"
	TypeGoodbye = "goodbye"
	TypePing    = "ping"
	TypePong    = "pong"
)

// ErrConnClosed is returned by Recv and Send after the connection closed.
var ErrConnClosed = errors.New("dealer: connection closed")

// Conn is a single established dealer connection.
type Conn interface {
	// Recv blocks until a frame arrives, the context ends, or the
	// connection closes (ErrConnClosed).
	Recv(ctx context.Context) (Message, error)
	// Send writes a frame. Safe for concurrent use with Recv.
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Dialer establishes dealer connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) { return f(ctx) }

// Hello is the payload of the first frame the engine sends.
type Hello struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
	ClientID   string `json:"clientId"`
	Username   string `json:"username,omitempty"`
}

// Command is the payload of a remote command frame.
type Command struct {
	Name       string   `json:"name"`
	PositionMS uint32   `json:"positionMs,omitempty"`
	Volume     uint16   `json:"volume,omitempty"`
	Enabled    bool     `json:"enabled,omitempty"`
	URIs       []string `json:"uris,omitempty"`
}

// TrackUpdate describes the track carried by a cluster frame.
type TrackUpdate struct {
	ID         string `json:"id,omitempty"`
	URI        string `json:"uri,omitempty"`
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	DurationMS uint32 `json:"durationMs,omitempty"`
}

// ClusterUpdate is the payload of a cluster frame: the backend's view of
// the playback session, applied to the engine's state mirror as-is.
type ClusterUpdate struct {
	Track         *TrackUpdate `json:"track,omitempty"`
	PositionMS    *uint32      `json:"positionMs,omitempty"`
	Volume        *uint16      `json:"volume,omitempty"`
	Shuffle       *bool        `json:"shuffle,omitempty"`
	RepeatContext *bool        `json:"repeatContext,omitempty"`
	RepeatTrack   *bool        `json:"repeatTrack,omitempty"`
}

// StateReport is the payload of a state frame the engine publishes after
// each local change.
type StateReport struct {
	DeviceID   string `json:"deviceId"`
	Active     bool   `json:"active"`
	Playback   string `json:"playback"`
	PositionMS uint32 `json:"positionMs"`
	Volume     uint16 `json:"volume"`
	TrackURI   string `json:"trackUri,omitempty"`
}

// EncodePayload marshals a payload into a frame of the given type.
func EncodePayload(msgType string, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}
