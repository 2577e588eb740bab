package gospotd

import (
	"os"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig describes gospotd logging options.
type LogConfig struct {
	Level  string
	Format string
	Output string
	UTC    bool
}

// NewLogger creates a structured logger for gospotd.
func NewLogger(cfg LogConfig) *zap.Logger {
	lvl := zapcore.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}

	writer := zapcore.Lock(os.Stdout)
	if strings.ToLower(cfg.Output) == "stderr" {
		writer = zapcore.Lock(os.Stderr)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.UTC {
		encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			zapcore.ISO8601TimeEncoder(t.UTC(), enc)
		}
	}

	var enc zapcore.Encoder
	if strings.ToLower(cfg.Format) == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	logger := zap.New(zapcore.NewCore(enc, writer, lvl))
	version, commit := buildVersion()
	return logger.With(
		zap.String("app", "gospotd"),
		zap.Int("pid", os.Getpid()),
		zap.String("version", version),
		zap.String("commit", commit),
	)
}

func buildVersion() (string, string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev", "unknown"
	}
	version := info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	commit := "unknown"
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			commit = setting.Value
			break
		}
	}
	return version, commit
}
