//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gospot-dev/gospot/internal/adapters/mqtt"
	bridgeremote "github.com/gospot-dev/gospot/internal/modules/bridge_remote"
	embeddedmqtt "github.com/gospot-dev/gospot/internal/modules/embedded_mqtt"
	"github.com/gospot-dev/gospot/pkg/gospot"
	"github.com/gospot-dev/gospot/pkg/remote"
)

const integrationDeviceName = "Integration Speaker"

type fakeEngine struct {
	mu       sync.Mutex
	started  bool
	lastErr  string
	commands []string
}

func (f *fakeEngine) record(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, name)
	if !f.started {
		f.lastErr = "engine is not ready"
		return false
	}
	return true
}

func (f *fakeEngine) Start(deviceName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return true
}

func (f *fakeEngine) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = false
}

func (f *fakeEngine) Snapshot() remote.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return remote.Snapshot{
		Running:       f.started,
		Ready:         f.started,
		Connected:     f.started,
		PlaybackState: "paused",
		DeviceName:    integrationDeviceName,
		Volume:        32768,
	}
}

func (f *fakeEngine) TakeLastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := f.lastErr
	f.lastErr = ""
	return msg
}

func (f *fakeEngine) seen(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cmd := range f.commands {
		if cmd == name {
			return true
		}
	}
	return false
}

func (f *fakeEngine) Transfer() bool                     { return f.record("transfer") }
func (f *fakeEngine) Resume() bool                       { return f.record("resume") }
func (f *fakeEngine) Pause() bool                        { return f.record("pause") }
func (f *fakeEngine) PlayPause() bool                    { return f.record("playPause") }
func (f *fakeEngine) Next() bool                         { return f.record("next") }
func (f *fakeEngine) Previous() bool                     { return f.record("previous") }
func (f *fakeEngine) SeekTo(positionMS uint32) bool      { return f.record("seekTo") }
func (f *fakeEngine) SetVolume(volume uint16) bool       { return f.record("setVolume") }
func (f *fakeEngine) VolumeUp() bool                     { return f.record("volumeUp") }
func (f *fakeEngine) VolumeDown() bool                   { return f.record("volumeDown") }
func (f *fakeEngine) SetShuffle(enabled bool) bool       { return f.record("setShuffle") }
func (f *fakeEngine) SetRepeatContext(enabled bool) bool { return f.record("setRepeatContext") }
func (f *fakeEngine) SetRepeatTrack(enabled bool) bool   { return f.record("setRepeatTrack") }
func (f *fakeEngine) LoadTrack(input string) bool        { return f.record("loadTrack") }
func (f *fakeEngine) AddToQueue(input string) bool       { return f.record("addToQueue") }
func (f *fakeEngine) Disconnect(pause bool) bool         { return f.record("disconnect") }

type integrationOptions struct {
	allowAnonymous bool
	username       string
	password       string
	autostart      bool
}

type integrationHarness struct {
	ctx       context.Context
	brokerURL string
	deviceID  string
	engine    *fakeEngine
	client    *mqtt.Client
}

func TestBridgeRemoteIntegration(t *testing.T) {
	h := setupIntegrationWithOptions(t, integrationOptions{allowAnonymous: true, autostart: true})

	reply := publishCommand(t, h, remote.CmdResume, nil)
	if !reply.OK {
		t.Fatalf("resume rejected: %+v", reply.Err)
	}
	if !h.engine.seen("resume") {
		t.Fatalf("resume did not reach engine")
	}

	reply = publishCommand(t, h, remote.CmdSeek, remote.SeekBody{PositionMS: 42000})
	if !reply.OK {
		t.Fatalf("seek rejected: %+v", reply.Err)
	}

	ctx, cancel := context.WithTimeout(h.ctx, 3*time.Second)
	defer cancel()
	snapshot, err := h.client.GetSnapshot(ctx, h.deviceID)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if !snapshot.Running || snapshot.DeviceName != integrationDeviceName {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestCommandFailureSurfacesEngineError(t *testing.T) {
	h := setupIntegrationWithOptions(t, integrationOptions{allowAnonymous: true, autostart: false})

	reply := publishCommand(t, h, remote.CmdPause, nil)
	if reply.OK {
		t.Fatalf("expected pause to fail without a session")
	}
	if reply.Err == nil || reply.Err.Code != remote.ErrCodeNotReady {
		t.Fatalf("unexpected error: %+v", reply.Err)
	}
}

func TestEmbeddedMQTTAuth(t *testing.T) {
	h := setupIntegrationWithOptions(t, integrationOptions{
		username:  "gospot",
		password:  "secret",
		autostart: true,
	})

	_, err := mqtt.NewClient(mqtt.Options{
		BrokerURL: h.brokerURL,
		TopicBase: remote.BaseTopic,
		Timeout:   500 * time.Millisecond,
	})
	if err == nil {
		t.Fatalf("expected unauthenticated connection to fail")
	}

	reply := publishCommand(t, h, remote.CmdNext, nil)
	if !reply.OK {
		t.Fatalf("authenticated command failed: %+v", reply.Err)
	}
}

func TestCLIDrivesBridge(t *testing.T) {
	h := setupIntegrationWithOptions(t, integrationOptions{allowAnonymous: true, autostart: true})
	cliPath := cliBinary(t)
	baseArgs := []string{"--broker", h.brokerURL, "--device", integrationDeviceName}

	runCLI(t, cliPath, append(baseArgs, "toggle")...)
	if !h.engine.seen("playPause") {
		t.Fatalf("toggle did not reach engine")
	}

	runCLI(t, cliPath, append(baseArgs, "vol", "12000")...)
	if !h.engine.seen("setVolume") {
		t.Fatalf("vol did not reach engine")
	}

	out := runCLI(t, cliPath, append(baseArgs, "--json", "status")...)
	var snapshot remote.Snapshot
	if err := json.Unmarshal([]byte(out), &snapshot); err != nil {
		t.Fatalf("decode status: %v\noutput: %s", err, out)
	}
	if snapshot.DeviceName != integrationDeviceName {
		t.Fatalf("unexpected status: %+v", snapshot)
	}
}

func setupIntegrationWithOptions(t *testing.T, opts integrationOptions) *integrationHarness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := testLogger()
	listen := freeListenAddr(t)
	brokerURL := embeddedmqtt.BrokerURL(listen, false)

	mqttModule, err := embeddedmqtt.NewModule(logger, embeddedmqtt.Config{
		Listen:         listen,
		AllowAnonymous: opts.allowAnonymous,
		Username:       opts.username,
		Password:       opts.password,
	})
	if err != nil {
		t.Fatalf("embedded mqtt module: %v", err)
	}
	runModule(t, ctx, "embedded_mqtt", mqttModule.Run)
	waitForBrokerReady(t, listen)

	moduleClient := waitForMQTTClient(t, brokerURL, opts.username, opts.password)
	engine := &fakeEngine{}
	bridgeModule, err := bridgeremote.NewModule(logger, moduleClient, engine, bridgeremote.Config{
		DeviceName:       integrationDeviceName,
		TopicBase:        remote.BaseTopic,
		Autostart:        opts.autostart,
		SnapshotInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("bridge module: %v", err)
	}
	runModule(t, ctx, "bridge_remote", bridgeModule.Run)

	client := waitForMQTTClient(t, brokerURL, opts.username, opts.password)
	h := &integrationHarness{
		ctx:       ctx,
		brokerURL: brokerURL,
		deviceID:  gospot.DeviceIDFromName(integrationDeviceName),
		engine:    engine,
		client:    client,
	}
	waitForSnapshot(t, h)
	return h
}

func runModule(t *testing.T, ctx context.Context, name string, run func(context.Context) error) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("%s module failed: %v", name, err)
		}
	default:
	}
	t.Cleanup(func() {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Fatalf("%s module failed: %v", name, err)
			}
		case <-time.After(200 * time.Millisecond):
		}
	})
}

func publishCommand(t *testing.T, h *integrationHarness, cmdType string, body any) remote.ReplyEnvelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(h.ctx, 3*time.Second)
	t.Cleanup(cancel)
	env, err := h.client.NewEnvelope(cmdType, body)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	reply, err := h.client.PublishCommand(ctx, h.deviceID, env)
	if err != nil {
		t.Fatalf("publish command: %v", err)
	}
	return reply
}

func waitForSnapshot(t *testing.T, h *integrationHarness) {
	t.Helper()
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(h.ctx, 500*time.Millisecond)
		_, err := h.client.GetSnapshot(ctx, h.deviceID)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for retained snapshot")
}

func waitForMQTTClient(t *testing.T, brokerURL string, username string, password string) *mqtt.Client {
	t.Helper()
	var lastErr error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		client, err := mqtt.NewClient(mqtt.Options{
			BrokerURL: brokerURL,
			TopicBase: remote.BaseTopic,
			Timeout:   2 * time.Second,
			Username:  username,
			Password:  password,
		})
		if err == nil {
			t.Cleanup(client.Close)
			return client
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("connect client: %v", lastErr)
	return nil
}

func freeListenAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EPERM) || strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("network listen not permitted in this environment")
		}
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	if err := listener.Close(); err != nil {
		t.Fatalf("close listener: %v", err)
	}
	return addr
}

func waitForBrokerReady(t *testing.T, listen string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", listen, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		if errors.Is(err, syscall.EPERM) || strings.Contains(err.Error(), "operation not permitted") {
			t.Skip("network dial not permitted in this environment")
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("broker not ready: %v", lastErr)
}

func testLogger() *zap.Logger {
	if strings.EqualFold(os.Getenv("GOSPOT_INTEGRATION_DEBUG"), "1") ||
		strings.EqualFold(os.Getenv("GOSPOT_INTEGRATION_DEBUG"), "true") {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	return zap.NewNop()
}

func runCLI(t *testing.T, cliPath string, args ...string) string {
	t.Helper()
	cmd := exec.Command(cliPath, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("gospot %s failed: %v\nstderr: %s", strings.Join(args, " "), err, stderr.String())
	}
	return stdout.String()
}

var (
	cliBinOnce sync.Once
	cliBinPath string
	cliBinErr  error
)

func cliBinary(t *testing.T) string {
	t.Helper()
	cliBinOnce.Do(func() {
		dir, err := os.MkdirTemp("", "gospot-cli-bin-*")
		if err != nil {
			cliBinErr = err
			return
		}
		binPath := filepath.Join(dir, "gospot")
		cmd := exec.Command("go", "build", "-o", binPath, "./cmd/gospot")
		cmd.Dir = repoRoot(t)
		output, err := cmd.CombinedOutput()
		if err != nil {
			cliBinErr = fmt.Errorf("build gospot: %w: %s", err, strings.TrimSpace(string(output)))
			return
		}
		cliBinPath = binPath
	})
	if cliBinErr != nil {
		t.Fatalf("build gospot binary: %v", cliBinErr)
	}
	return cliBinPath
}

func repoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("repo root not found from %s", dir)
		}
		dir = parent
	}
}
