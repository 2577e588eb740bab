package gospot

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

const defaultClientID = "65b708073fc0480ea92a077233ca87bd"

const trackIDLength = 22

// DefaultClientID returns the client id used for pairing when the host
// application has none of its own.
func DefaultClientID() string { return defaultClientID }

// DeviceIDFromName derives the stable connect device id for a device name:
// the lowercase hex SHA-1 of the name.
func DeviceIDFromName(name string) string {
	sum := sha1.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}

// TrackURIFromInput normalizes user input to a spotify:track: URI. It
// accepts a full track URI or a bare 22-character base62 track id.
func TrackURIFromInput(input string) (string, error) {
	in := strings.TrimSpace(input)
	if id, ok := strings.CutPrefix(in, "spotify:track:"); ok {
		if !validTrackID(id) {
			return "", WrapError(KindCommand,
				fmt.Sprintf("invalid track id in URI %q", input), nil)
		}
		return "spotify:track:" + id, nil
	}
	if validTrackID(in) {
		return "spotify:track:" + in, nil
	}
	return "", WrapError(KindCommand,
		fmt.Sprintf("not a track URI or id: %q", input), nil)
}

func validTrackID(id string) bool {
	if len(id) != trackIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
