package gospot

import (
	"errors"
	"testing"
)

func TestDeviceIDFromNameIsStableLowercaseHex(t *testing.T) {
	a := DeviceIDFromName("Kitchen Speaker")
	b := DeviceIDFromName("Kitchen Speaker")
	if a != b {
		t.Fatalf("device id not stable: %q vs %q", a, b)
	}
	if len(a) != 40 {
		t.Fatalf("expected 40 hex chars, got %d", len(a))
	}
	for _, r := range a {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("non lowercase-hex rune %q in %q", r, a)
		}
	}
	if a == DeviceIDFromName("Bedroom Speaker") {
		t.Fatal("distinct names produced the same device id")
	}
}

func TestTrackURIFromInput(t *testing.T) {
	const id = "4uLU6hMCjMI75M1A2tKUQC"

	got, err := TrackURIFromInput("spotify:track:" + id)
	if err != nil {
		t.Fatalf("full URI: %v", err)
	}
	if got != "spotify:track:"+id {
		t.Fatalf("unexpected URI %q", got)
	}

	got, err = TrackURIFromInput("  " + id + " ")
	if err != nil {
		t.Fatalf("bare id: %v", err)
	}
	if got != "spotify:track:"+id {
		t.Fatalf("unexpected URI %q", got)
	}

	for _, bad := range []string{
		"",
		"spotify:album:" + id,
		"spotify:track:short",
		"spotify:track:" + id + "!",
		"not-base-sixty-two-at!",
		"https://open.spotify.com/track/" + id,
	} {
		if _, err := TrackURIFromInput(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		} else if !IsKind(err, KindCommand) {
			t.Errorf("expected command kind for %q, got %v", bad, err)
		}
	}
}

func TestErrorKindAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(KindTask, "running task", cause)
	if !IsKind(err, KindTask) {
		t.Fatal("expected task kind")
	}
	if IsKind(err, KindCommand) {
		t.Fatal("kind must not match a different kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected unwrap to cause")
	}
	if err.Error() != "running task: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestParseDeviceTypeRoundTrip(t *testing.T) {
	for _, typ := range []DeviceType{
		DeviceTypeComputer, DeviceTypeSpeaker, DeviceTypeTV,
		DeviceTypeCarThing, DeviceTypeObserver,
	} {
		parsed, err := ParseDeviceType(typ.String())
		if err != nil {
			t.Fatalf("ParseDeviceType(%q): %v", typ.String(), err)
		}
		if parsed != typ {
			t.Fatalf("round trip %v != %v", parsed, typ)
		}
	}
	if _, err := ParseDeviceType("toaster"); err == nil {
		t.Fatal("expected error for unknown device type")
	}
}
