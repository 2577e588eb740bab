package gospot

import "github.com/gospot-dev/gospot/internal/spirc"

// PlaybackState is the coarse playback phase of the connect session.
type PlaybackState int

const (
	PlaybackStateStopped PlaybackState = iota
	PlaybackStateLoading
	PlaybackStatePlaying
	PlaybackStatePaused
	PlaybackStateInvalid
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackStateStopped:
		return "stopped"
	case PlaybackStateLoading:
		return "loading"
	case PlaybackStatePlaying:
		return "playing"
	case PlaybackStatePaused:
		return "paused"
	default:
		return "invalid"
	}
}

// Snapshot is one consistent copy of the session state. All fields were
// read under the same lock; no field can be newer than another.
type Snapshot struct {
	Connected     bool
	Playback      PlaybackState
	PositionMS    uint32
	DurationMS    uint32
	Volume        uint16
	Shuffle       bool
	RepeatContext bool
	RepeatTrack   bool

	TrackID    string
	TrackURI   string
	Title      string
	Artist     string
	Album      string
	ArtworkURL string
}

func snapshotFrom(s spirc.State) Snapshot {
	return Snapshot{
		Connected:     s.Connected,
		Playback:      playbackStateFrom(s.Playback),
		PositionMS:    s.PositionMS,
		DurationMS:    s.Track.DurationMS,
		Volume:        s.Volume,
		Shuffle:       s.Shuffle,
		RepeatContext: s.RepeatContext,
		RepeatTrack:   s.RepeatTrack,
		TrackID:       s.Track.ID,
		TrackURI:      s.Track.URI,
		Title:         s.Track.Title,
		Artist:        s.Track.Artist,
		Album:         s.Track.Album,
		ArtworkURL:    s.Track.ArtworkURL,
	}
}

func playbackStateFrom(s spirc.PlaybackState) PlaybackState {
	switch s {
	case spirc.PlaybackStopped:
		return PlaybackStateStopped
	case spirc.PlaybackLoading:
		return PlaybackStateLoading
	case spirc.PlaybackPlaying:
		return PlaybackStatePlaying
	case spirc.PlaybackPaused:
		return PlaybackStatePaused
	default:
		return PlaybackStateInvalid
	}
}
