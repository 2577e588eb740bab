package spirc

import "strings"

// PlaybackState is the engine's coarse playback phase.
type PlaybackState int

// Playback phases, in the order the wire protocol numbers them.
const (
	PlaybackStopped PlaybackState = iota
	PlaybackLoading
	PlaybackPlaying
	PlaybackPaused
	PlaybackInvalid
)

// String returns a lowercase name for logs and state reports.
func (s PlaybackState) String() string {
	switch s {
	case PlaybackStopped:
		return "stopped"
	case PlaybackLoading:
		return "loading"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	default:
		return "invalid"
	}
}

// Track is the metadata of the current track. Empty fields are unknown.
type Track struct {
	ID         string
	URI        string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
	DurationMS uint32
}

// State is one consistent copy of the engine's mirrored protocol state.
type State struct {
	Connected     bool
	Active        bool
	Playback      PlaybackState
	PositionMS    uint32
	Volume        uint16
	Shuffle       bool
	RepeatContext bool
	RepeatTrack   bool
	Track         Track
}

// trackFromURI builds the minimal metadata known for a locally loaded URI.
func trackFromURI(uri string) Track {
	id := uri
	if idx := strings.LastIndexByte(uri, ':'); idx >= 0 {
		id = uri[idx+1:]
	}
	return Track{ID: id, URI: uri}
}
