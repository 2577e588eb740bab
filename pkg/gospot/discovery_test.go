package gospot

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDiscoveryRequiresIdentity(t *testing.T) {
	if _, err := NewDiscovery(DiscoveryConfig{Name: "x"}); !IsKind(err, KindInit) {
		t.Fatalf("expected init error without device id, got %v", err)
	}
	if _, err := NewDiscovery(DiscoveryConfig{DeviceID: "x"}); !IsKind(err, KindInit) {
		t.Fatalf("expected init error without name, got %v", err)
	}
}

func TestDiscoveryCloseIsTerminalAndIdempotent(t *testing.T) {
	d, err := NewDiscovery(DiscoveryConfig{
		DeviceID: DeviceIDFromName("test"),
		Name:     "test",
		Listen:   "127.0.0.1:0",
	})
	if err != nil {
		// mDNS may be unavailable in constrained environments.
		t.Skipf("NewDiscovery: %v", err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	var nilDiscovery *Discovery
	if err := nilDiscovery.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := d.Next(context.Background()); !errors.Is(err, ErrDiscoveryEnded) {
			t.Fatalf("call %d: expected ErrDiscoveryEnded, got %v", i, err)
		}
	}
}

func TestDiscoveryNextHonorsContext(t *testing.T) {
	d, err := NewDiscovery(DiscoveryConfig{
		DeviceID: DeviceIDFromName("test"),
		Name:     "test",
		Listen:   "127.0.0.1:0",
	})
	if err != nil {
		t.Skipf("NewDiscovery: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := d.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
