// Package sink holds the audio output drivers sitting behind the player.
package sink

import "fmt"

// Driver renders the audio of the currently loaded track.
type Driver interface {
	// Load prepares a track for playback. play starts it immediately,
	// startMS is the initial seek offset.
	Load(uri string, play bool, startMS uint32) error
	Play() error
	Pause() error
	Stop() error
	Seek(positionMS uint32) error
	SetVolume(volume uint16) error
	// Position reports the playhead. ok is false when nothing is loaded.
	Position() (positionMS uint32, ok bool)
	Close() error
}

// Find returns the named backend, or the default backend for "".
func Find(name string) (Driver, error) {
	switch name {
	case "":
		return newDefaultDriver()
	case "null":
		return NewNull(), nil
	case "gstreamer":
		return newGstDriver()
	default:
		return nil, fmt.Errorf("unknown audio backend %q", name)
	}
}
