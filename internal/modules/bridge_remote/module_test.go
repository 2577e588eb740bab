package bridgeremote

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gospot-dev/gospot/pkg/remote"
)

type fakeBroker struct {
	mu       sync.Mutex
	handlers map[string]func(topic string, payload []byte)
	// published messages per topic, newest last
	messages map[string][][]byte
	retained map[string][]byte
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		handlers: map[string]func(string, []byte){},
		messages: map[string][][]byte{},
		retained: map[string][]byte{},
	}
}

func (b *fakeBroker) Subscribe(topic string, handler func(string, []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) Publish(topic string, payload []byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[topic] = append(b.messages[topic], payload)
	if retained {
		b.retained[topic] = payload
	}
	return nil
}

func (b *fakeBroker) deliver(topic string, payload []byte) {
	b.mu.Lock()
	handler := b.handlers[topic]
	b.mu.Unlock()
	if handler != nil {
		handler(topic, payload)
	}
}

func (b *fakeBroker) lastMessage(topic string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.messages[topic]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

type fakeEngine struct {
	mu      sync.Mutex
	started []string
	stopped int
	lastErr string
	fail    bool
	calls   []string
}

func (e *fakeEngine) record(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, name)
	if e.fail {
		e.lastErr = "engine is not ready"
		return false
	}
	return true
}

func (e *fakeEngine) Start(name string) bool {
	e.mu.Lock()
	e.started = append(e.started, name)
	e.mu.Unlock()
	return true
}

func (e *fakeEngine) Stop() {
	e.mu.Lock()
	e.stopped++
	e.mu.Unlock()
}

func (e *fakeEngine) Snapshot() remote.Snapshot {
	return remote.Snapshot{Running: true, DeviceName: "Fake", PlaybackState: "stopped"}
}

func (e *fakeEngine) TakeLastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg := e.lastErr
	e.lastErr = ""
	return msg
}

func (e *fakeEngine) Transfer() bool                { return e.record("transfer") }
func (e *fakeEngine) Resume() bool                  { return e.record("resume") }
func (e *fakeEngine) Pause() bool                   { return e.record("pause") }
func (e *fakeEngine) PlayPause() bool               { return e.record("playPause") }
func (e *fakeEngine) Next() bool                    { return e.record("next") }
func (e *fakeEngine) Previous() bool                { return e.record("previous") }
func (e *fakeEngine) SeekTo(uint32) bool            { return e.record("seek") }
func (e *fakeEngine) SetVolume(uint16) bool         { return e.record("setVolume") }
func (e *fakeEngine) VolumeUp() bool                { return e.record("volumeUp") }
func (e *fakeEngine) VolumeDown() bool              { return e.record("volumeDown") }
func (e *fakeEngine) SetShuffle(bool) bool          { return e.record("setShuffle") }
func (e *fakeEngine) SetRepeatContext(bool) bool    { return e.record("setRepeatContext") }
func (e *fakeEngine) SetRepeatTrack(bool) bool      { return e.record("setRepeatTrack") }
func (e *fakeEngine) LoadTrack(string) bool         { return e.record("loadTrack") }
func (e *fakeEngine) AddToQueue(string) bool        { return e.record("addToQueue") }
func (e *fakeEngine) Disconnect(bool) bool          { return e.record("disconnect") }

func newTestModule(t *testing.T, engine *fakeEngine) (*Module, *fakeBroker) {
	t.Helper()
	broker := newFakeBroker()
	mod, err := NewModule(zap.NewNop(), broker, engine, Config{
		DeviceName:       "Living Room",
		SnapshotInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	return mod, broker
}

func runModule(t *testing.T, mod *Module, broker *fakeBroker) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = mod.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("module did not stop")
		}
	})
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		broker.mu.Lock()
		n := len(broker.handlers)
		broker.mu.Unlock()
		if n > 0 {
			return cancel
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("module never subscribed")
	return cancel
}

func envelope(t *testing.T, cmdType string, body any) []byte {
	t.Helper()
	env, err := remote.NewCommand(cmdType, body)
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	env.ID = "cmd-1"
	env.TS = time.Now().Unix()
	env.From = "test"
	env.ReplyTo = "reply/test"
	out, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return out
}

func lastReply(t *testing.T, broker *fakeBroker) remote.ReplyEnvelope {
	t.Helper()
	payload := broker.lastMessage("reply/test")
	if payload == nil {
		t.Fatal("no reply published")
	}
	var reply remote.ReplyEnvelope
	if err := json.Unmarshal(payload, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	return reply
}

func TestModuleRequiresDeviceName(t *testing.T) {
	if _, err := NewModule(zap.NewNop(), newFakeBroker(), &fakeEngine{}, Config{}); err == nil {
		t.Fatal("expected error without device name")
	}
}

func TestCommandDispatchAndReply(t *testing.T) {
	engine := &fakeEngine{}
	mod, broker := newTestModule(t, engine)
	runModule(t, mod, broker)

	cmdTopic := remote.TopicCommands(remote.BaseTopic, mod.DeviceID())
	broker.deliver(cmdTopic, envelope(t, remote.CmdResume, nil))

	reply := lastReply(t, broker)
	if !reply.OK {
		t.Fatalf("expected ok reply, got %+v", reply.Err)
	}
	if reply.ID != "cmd-1" {
		t.Fatalf("reply not correlated: %q", reply.ID)
	}

	engine.mu.Lock()
	calls := append([]string(nil), engine.calls...)
	engine.mu.Unlock()
	if len(calls) != 1 || calls[0] != "resume" {
		t.Fatalf("unexpected engine calls %v", calls)
	}
}

func TestCommandFailurePropagatesEngineError(t *testing.T) {
	engine := &fakeEngine{fail: true}
	mod, broker := newTestModule(t, engine)
	runModule(t, mod, broker)

	cmdTopic := remote.TopicCommands(remote.BaseTopic, mod.DeviceID())
	broker.deliver(cmdTopic, envelope(t, remote.CmdNext, nil))

	reply := lastReply(t, broker)
	if reply.OK {
		t.Fatal("expected failed reply")
	}
	if reply.Err == nil || reply.Err.Code != remote.ErrCodeNotReady {
		t.Fatalf("expected NOT_READY, got %+v", reply.Err)
	}
}

func TestInvalidEnvelopeRejected(t *testing.T) {
	engine := &fakeEngine{}
	mod, broker := newTestModule(t, engine)
	runModule(t, mod, broker)

	cmdTopic := remote.TopicCommands(remote.BaseTopic, mod.DeviceID())
	env := remote.CommandEnvelope{Type: remote.CmdResume, ReplyTo: "reply/test"}
	payload, _ := json.Marshal(env)
	broker.deliver(cmdTopic, payload)

	reply := lastReply(t, broker)
	if reply.OK {
		t.Fatal("expected validation failure")
	}
	if reply.Err.Code != remote.ErrCodeInvalid {
		t.Fatalf("expected INVALID, got %q", reply.Err.Code)
	}
}

func TestSnapshotRetainedAfterCommand(t *testing.T) {
	engine := &fakeEngine{}
	mod, broker := newTestModule(t, engine)
	runModule(t, mod, broker)

	cmdTopic := remote.TopicCommands(remote.BaseTopic, mod.DeviceID())
	broker.deliver(cmdTopic, envelope(t, remote.CmdPause, nil))

	snapTopic := remote.TopicSnapshot(remote.BaseTopic, mod.DeviceID())
	broker.mu.Lock()
	payload := broker.retained[snapTopic]
	broker.mu.Unlock()
	if payload == nil {
		t.Fatal("no retained snapshot")
	}
	var snap remote.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !snap.Running {
		t.Fatal("expected running snapshot")
	}
}

func TestLastErrorCommandReturnsBody(t *testing.T) {
	engine := &fakeEngine{}
	engine.lastErr = "previous failure"
	mod, broker := newTestModule(t, engine)
	runModule(t, mod, broker)

	cmdTopic := remote.TopicCommands(remote.BaseTopic, mod.DeviceID())
	broker.deliver(cmdTopic, envelope(t, remote.CmdLastError, nil))

	reply := lastReply(t, broker)
	if !reply.OK {
		t.Fatalf("expected ok, got %+v", reply.Err)
	}
	var body remote.LastErrorBody
	if err := json.Unmarshal(reply.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Message != "previous failure" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestAutostartAndStopOnShutdown(t *testing.T) {
	engine := &fakeEngine{}
	broker := newFakeBroker()
	mod, err := NewModule(zap.NewNop(), broker, engine, Config{
		DeviceName:       "Living Room",
		Autostart:        true,
		SnapshotInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = mod.Run(ctx)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		engine.mu.Lock()
		n := len(engine.started)
		engine.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	engine.mu.Lock()
	if len(engine.started) != 1 || engine.started[0] != "Living Room" {
		engine.mu.Unlock()
		t.Fatal("expected autostart with configured name")
	}
	engine.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("module did not stop")
	}
	engine.mu.Lock()
	defer engine.mu.Unlock()
	if engine.stopped != 1 {
		t.Fatalf("expected one engine stop, got %d", engine.stopped)
	}
}
