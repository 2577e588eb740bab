package gospot

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogRecord is one structured log entry handed to a LogCallback.
type LogRecord struct {
	Time    time.Time
	Level   string
	Message string
	Fields  map[string]any
}

// LogCallback receives records from the library's internals. It is invoked
// synchronously on the logging goroutine and must not block.
type LogCallback func(LogRecord)

// LogConfig configures process-wide library logging.
type LogConfig struct {
	// Level is "debug", "info", "warn" or "error". Empty means "info".
	Level string
	// Callback, when set, receives every record in addition to (not
	// instead of) the standard sink. The Android-style embedders use
	// this to forward into the host's log.
	Callback LogCallback
}

var (
	logInitOnce sync.Once
	logCurrent  atomic.Pointer[zap.Logger]
)

// InitLogging configures library logging for the process. The first call
// wins; later calls are no-ops. Without any call, logging is disabled.
func InitLogging(cfg LogConfig) {
	logInitOnce.Do(func() {
		level := zapcore.InfoLevel
		if cfg.Level != "" {
			if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
				level = parsed
			}
		}

		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		base, err := zcfg.Build()
		if err != nil {
			base = zap.NewNop()
		}

		if cfg.Callback != nil {
			cb := &callbackCore{enab: level, fn: cfg.Callback}
			base = base.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
				return zapcore.NewTee(core, cb)
			}))
		}
		logCurrent.Store(base)
	})
}

// Logger returns the library logger. Before InitLogging it is a no-op
// logger, so internals can log unconditionally.
func Logger() *zap.Logger {
	if l := logCurrent.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// callbackCore forwards entries to a LogCallback.
type callbackCore struct {
	enab   zapcore.LevelEnabler
	fn     LogCallback
	fields []zapcore.Field
}

func (c *callbackCore) Enabled(level zapcore.Level) bool {
	return c.enab.Enabled(level)
}

func (c *callbackCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *callbackCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *callbackCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	c.fn(LogRecord{
		Time:    entry.Time,
		Level:   entry.Level.String(),
		Message: entry.Message,
		Fields:  enc.Fields,
	})
	return nil
}

func (c *callbackCore) Sync() error { return nil }
