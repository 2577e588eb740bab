// Package embeddedmqtt hosts a broker inside the daemon so small setups
// need no external MQTT infrastructure.
package embeddedmqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"
)

// DefaultListen is the broker address when none is configured.
const DefaultListen = "127.0.0.1:1883"

// Config configures the embedded MQTT broker.
type Config struct {
	Listen         string
	AllowAnonymous bool
	Username       string
	Password       string
	TLSCA          string
	TLSCert        string
	TLSKey         string
}

// Module runs an embedded MQTT broker.
type Module struct {
	log    *zap.Logger
	server *mqtt.Server
	config Config
}

// NewModule creates a new embedded broker module.
func NewModule(log *zap.Logger, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = DefaultListen
	}

	options := &mqtt.Options{InlineClient: true, Logger: brokerLogger(log)}
	server := mqtt.New(options)

	switch {
	case cfg.AllowAnonymous:
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, err
		}
	case cfg.Username != "":
		ledger := &auth.Ledger{
			Auth: auth.AuthRules{{
				Username: auth.RString(cfg.Username),
				Password: auth.RString(cfg.Password),
				Allow:    true,
			}},
			ACL: auth.ACLRules{{
				Username: auth.RString(cfg.Username),
				Filters:  auth.Filters{auth.RString("#"): auth.ReadWrite},
			}},
		}
		if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: ledger}); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("embedded mqtt requires allow_anonymous or username")
	}

	return &Module{log: log, server: server, config: cfg}, nil
}

// Run serves the broker until the context ends.
func (m *Module) Run(ctx context.Context) error {
	listenerConfig := listeners.Config{ID: "embedded-tcp", Address: m.config.Listen}
	if m.config.TLSCert != "" || m.config.TLSKey != "" || m.config.TLSCA != "" {
		tlsConfig, err := buildTLSConfig(m.config.TLSCA, m.config.TLSCert, m.config.TLSKey)
		if err != nil {
			return err
		}
		listenerConfig.TLSConfig = tlsConfig
	}

	if err := m.server.AddListener(listeners.NewTCP(listenerConfig)); err != nil {
		return err
	}

	go func() {
		_ = m.server.Serve()
	}()

	<-ctx.Done()
	m.server.Close()
	return nil
}

// BrokerURL returns the broker URL for a listen address.
func BrokerURL(listen string, tlsEnabled bool) string {
	scheme := "mqtt"
	if tlsEnabled {
		scheme = "mqtts"
	}
	return fmt.Sprintf("%s://%s", scheme, listen)
}

func buildTLSConfig(caPath, certPath, keyPath string) (*tls.Config, error) {
	config := &tls.Config{}
	if caPath != "" {
		pem, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("failed to parse CA bundle")
		}
		config.RootCAs = pool
	}

	if certPath != "" || keyPath != "" {
		if certPath == "" || keyPath == "" {
			return nil, errors.New("both tls cert and key are required")
		}
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, err
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

// brokerLogger adapts the zap logger to the slog interface mochi wants.
func brokerLogger(logger *zap.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return slog.New(&slogBridge{logger: logger})
}

type slogBridge struct {
	logger *zap.Logger
	attrs  []slog.Attr
}

func (b *slogBridge) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (b *slogBridge) Handle(_ context.Context, record slog.Record) error {
	fields := make([]zap.Field, 0, len(b.attrs)+record.NumAttrs())
	var errMsg string
	for _, attr := range b.attrs {
		fields = append(fields, attrToField(attr))
	}
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "error" {
			switch attr.Value.Kind() {
			case slog.KindString:
				errMsg = attr.Value.String()
			case slog.KindAny:
				if v, ok := attr.Value.Any().(error); ok {
					errMsg = v.Error()
				}
			}
		}
		fields = append(fields, attrToField(attr))
		return true
	})
	// Clients tearing down their TCP connection is routine churn.
	if errMsg != "" && (strings.Contains(errMsg, "read connection: EOF") || errMsg == "EOF") {
		b.logger.Debug("embedded mqtt connection closed", fields...)
		return nil
	}
	switch {
	case record.Level >= slog.LevelError:
		b.logger.Error(record.Message, fields...)
	case record.Level >= slog.LevelWarn:
		b.logger.Warn(record.Message, fields...)
	case record.Level >= slog.LevelInfo:
		b.logger.Info(record.Message, fields...)
	default:
		b.logger.Debug(record.Message, fields...)
	}
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	next = append(next, b.attrs...)
	next = append(next, attrs...)
	return &slogBridge{logger: b.logger, attrs: next}
}

func (b *slogBridge) WithGroup(_ string) slog.Handler {
	return b
}

func attrToField(attr slog.Attr) zap.Field {
	switch attr.Value.Kind() {
	case slog.KindString:
		return zap.String(attr.Key, attr.Value.String())
	case slog.KindInt64:
		return zap.Int64(attr.Key, attr.Value.Int64())
	case slog.KindUint64:
		return zap.Uint64(attr.Key, attr.Value.Uint64())
	case slog.KindFloat64:
		return zap.Float64(attr.Key, attr.Value.Float64())
	case slog.KindBool:
		return zap.Bool(attr.Key, attr.Value.Bool())
	default:
		return zap.Any(attr.Key, attr.Value.Any())
	}
}
