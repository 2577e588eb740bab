package bridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gospot-dev/gospot/pkg/gospot"
)

// runPipeline is the default pipeline: pairing, handle construction, the
// blocking task run, then teardown in reverse dependency order. It never
// panics the process; any failure lands in the status line and the error
// slot with the engine back in stopped state.
func (e *Engine) runPipeline(ctx context.Context, deviceName string) {
	err := e.buildAndRun(ctx, deviceName)
	if err != nil && isShutdown(err) {
		err = nil
	}
	e.teardown(err)
}

func (e *Engine) buildAndRun(ctx context.Context, deviceName string) error {
	deviceID := gospot.DeviceIDFromName(deviceName)
	e.log.Info("pipeline starting",
		zap.String("device_name", deviceName),
		zap.String("device_id", deviceID),
	)

	discovery, err := gospot.NewDiscovery(gospot.DiscoveryConfig{
		DeviceID: deviceID,
		Name:     deviceName,
	})
	if err != nil {
		return fmt.Errorf("starting discovery: %w", err)
	}
	e.attach(func() { e.discovery = discovery })

	e.setStatus("waiting for pairing")
	creds, err := discovery.Next(ctx)
	if err != nil {
		return fmt.Errorf("waiting for pairing: %w", err)
	}
	e.log.Info("paired", zap.String("username", creds.Username))

	session, err := gospot.NewSession(deviceID)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	e.attach(func() { e.session = session })

	mixer, err := gospot.NewSoftMixer()
	if err != nil {
		return fmt.Errorf("creating mixer: %w", err)
	}
	e.attach(func() { e.mixer = mixer })

	player, err := gospot.NewPlayer(session, mixer)
	if err != nil {
		return fmt.Errorf("creating player: %w", err)
	}
	e.attach(func() { e.player = player })

	cfg := gospot.NewConnectConfig()
	cfg.SetName(deviceName)
	cfg.SetDeviceType(gospot.DeviceTypeSpeaker)
	e.attach(func() { e.connectCfg = cfg })

	spirc, task, err := gospot.NewSpirc(cfg, session, creds, player, mixer)
	if err != nil {
		return fmt.Errorf("creating spirc: %w", err)
	}
	e.attach(func() {
		e.spirc = spirc
		e.task = task
		e.ready = true
	})
	e.setStatus("ready")

	// Best effort; the session may not have settled yet and another
	// device keeps playback until it has.
	if err := spirc.Transfer(); err != nil {
		e.log.Debug("initial transfer declined", zap.Error(err))
	}

	e.setStatus("running")
	if err := task.Run(ctx); err != nil {
		return fmt.Errorf("connect task: %w", err)
	}
	return nil
}

func (e *Engine) attach(set func()) {
	e.mu.Lock()
	set()
	e.mu.Unlock()
}

// teardown detaches every handle under the lock, then closes them in
// reverse dependency order. The task has already returned by the time we
// get here, so the closes cannot race the run.
func (e *Engine) teardown(err error) {
	e.mu.Lock()
	discovery := e.discovery
	session := e.session
	mixer := e.mixer
	player := e.player
	cfg := e.connectCfg
	spirc := e.spirc
	task := e.task
	e.discovery = nil
	e.session = nil
	e.mixer = nil
	e.player = nil
	e.connectCfg = nil
	e.spirc = nil
	e.task = nil
	e.running = false
	e.ready = false
	e.cancel = nil
	if err != nil {
		msg := fmt.Sprintf("gospot error: %v", err)
		e.status = msg
		e.lastErr = err.Error()
	} else {
		e.status = "stopped"
	}
	e.mu.Unlock()

	_ = task.Close()
	_ = spirc.Close()
	_ = cfg.Close()
	_ = player.Close()
	_ = mixer.Close()
	_ = session.Close()
	_ = discovery.Close()

	if err != nil {
		e.log.Error("pipeline failed", zap.Error(err))
	} else {
		e.log.Info("pipeline stopped")
	}
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, gospot.ErrDiscoveryEnded)
}
