package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gospot-dev/gospot/pkg/remote"
)

// fakePipeline stands in for the real pairing-and-run pipeline: it marks
// the engine ready (optionally failing instead) and blocks until stopped.
type fakePipeline struct {
	mu     sync.Mutex
	starts int
	fail   bool
}

func (f *fakePipeline) run(e *Engine) pipelineFunc {
	return func(ctx context.Context, deviceName string) {
		f.mu.Lock()
		f.starts++
		fail := f.fail
		f.mu.Unlock()

		if fail {
			e.teardown(context.DeadlineExceeded)
			return
		}
		e.attach(func() { e.ready = true })
		e.setStatus("running")
		<-ctx.Done()
		e.teardown(nil)
	}
}

func (f *fakePipeline) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func newTestEngine(t *testing.T, fake *fakePipeline) *Engine {
	t.Helper()
	e := New(zap.NewNop())
	e.pipeline = fake.run(e)
	t.Cleanup(e.Stop)
	return e
}

func waitReady(t *testing.T, e *Engine) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.Ready() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("engine never became ready")
}

func TestStartIsIdempotent(t *testing.T) {
	fake := &fakePipeline{}
	e := newTestEngine(t, fake)

	if !e.Start("Living Room") {
		t.Fatal("Start returned false")
	}
	waitReady(t, e)
	if !e.Start("Living Room") {
		t.Fatal("second Start returned false")
	}
	if !e.Start("Other Name") {
		t.Fatal("Start while running returned false")
	}
	if got := fake.startCount(); got != 1 {
		t.Fatalf("expected a single pipeline, got %d", got)
	}
	if !e.Running() {
		t.Fatal("expected running")
	}
}

func TestStartRequiresDeviceName(t *testing.T) {
	e := newTestEngine(t, &fakePipeline{})
	if e.Start("") {
		t.Fatal("Start with empty name must fail")
	}
	if msg := e.TakeLastError(); msg == "" {
		t.Fatal("expected an error in the slot")
	}
}

func TestStopJoinsPipeline(t *testing.T) {
	fake := &fakePipeline{}
	e := newTestEngine(t, fake)
	e.Start("Living Room")
	waitReady(t, e)

	e.Stop()
	if e.Running() {
		t.Fatal("expected stopped after Stop")
	}
	if e.Ready() {
		t.Fatal("expected not ready after Stop")
	}
	// Second Stop is a no-op.
	e.Stop()

	// Restart launches a fresh pipeline.
	e.Start("Living Room")
	waitReady(t, e)
	if got := fake.startCount(); got != 2 {
		t.Fatalf("expected two pipelines after restart, got %d", got)
	}
}

func TestPipelineFailureLandsInStatusAndSlot(t *testing.T) {
	fake := &fakePipeline{fail: true}
	e := newTestEngine(t, fake)
	e.Start("Living Room")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && e.Running() {
		time.Sleep(5 * time.Millisecond)
	}
	if e.Running() {
		t.Fatal("engine still running after pipeline failure")
	}

	var snap remote.Snapshot
	if err := json.Unmarshal([]byte(e.SnapshotJSON()), &snap); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Ready {
		t.Fatal("must not be ready after failure")
	}
	if snap.StatusMessage == "" || snap.StatusMessage == "stopped" {
		t.Fatalf("expected failure status, got %q", snap.StatusMessage)
	}
	if msg := e.TakeLastError(); msg == "" {
		t.Fatal("expected error slot populated")
	}
}

func TestTakeLastErrorReadsAndClears(t *testing.T) {
	e := newTestEngine(t, &fakePipeline{})

	e.setError("first")
	e.setError("second")
	if got := e.TakeLastError(); got != "second" {
		t.Fatalf("expected last-write-wins, got %q", got)
	}
	if got := e.TakeLastError(); got != "" {
		t.Fatalf("expected cleared slot, got %q", got)
	}
}

func TestCommandsWithoutSessionFail(t *testing.T) {
	e := newTestEngine(t, &fakePipeline{})
	if e.Resume() {
		t.Fatal("Resume without a session must fail")
	}
	if msg := e.TakeLastError(); msg == "" {
		t.Fatal("expected error slot populated")
	}
	if e.LoadTrack("definitely not a track") {
		t.Fatal("LoadTrack with invalid input must fail")
	}
	if msg := e.TakeLastError(); msg == "" {
		t.Fatal("expected validation error in the slot")
	}
}

func TestSnapshotSchemaIsStable(t *testing.T) {
	e := newTestEngine(t, &fakePipeline{})

	var raw map[string]any
	if err := json.Unmarshal([]byte(e.SnapshotJSON()), &raw); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for _, key := range []string{
		"running", "ready", "connected", "playbackState", "positionMs",
		"durationMs", "volume", "statusMessage", "deviceName",
		"title", "artist", "album", "artworkUrl",
	} {
		if _, ok := raw[key]; !ok {
			t.Errorf("snapshot missing key %q", key)
		}
	}
	if len(raw) != 13 {
		t.Fatalf("expected 13 snapshot keys, got %d", len(raw))
	}
}

func TestDefaultIsASingleton(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default must return the same engine")
	}
}
