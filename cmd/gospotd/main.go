package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gospot-dev/gospot/internal/adapters/mqtt"
	"github.com/gospot-dev/gospot/internal/bridge"
	"github.com/gospot-dev/gospot/internal/gospotd"
	bridgeremote "github.com/gospot-dev/gospot/internal/modules/bridge_remote"
	embeddedmqtt "github.com/gospot-dev/gospot/internal/modules/embedded_mqtt"
	"github.com/gospot-dev/gospot/pkg/remote"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath  string
		broker      string
		deviceName  string
		topicBase   string
		logLevel    string
		logFormat   string
		logOutput   string
		logUTC      bool
		printConfig bool
		dryRun      bool
	)

	defaultConfig, err := gospotd.DefaultConfigPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	flag.StringVar(&configPath, "config", defaultConfig, "config file path")
	flag.StringVar(&broker, "broker", "", "MQTT broker URL override")
	flag.StringVar(&deviceName, "device-name", "", "connect device name override")
	flag.StringVar(&topicBase, "topic-base", "", "topic base override")
	flag.StringVar(&logLevel, "log-level", "", "log level override")
	flag.StringVar(&logFormat, "log-format", "", "log format override (text|json)")
	flag.StringVar(&logOutput, "log-output", "", "log output override (stdout|stderr)")
	flag.BoolVar(&logUTC, "log-utc", false, "use UTC timestamps in logs")
	flag.BoolVar(&printConfig, "print-config", false, "print resolved config and exit")
	flag.BoolVar(&dryRun, "dry-run", false, "validate config and exit")
	flag.Parse()

	cfg, err := gospotd.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyOverrides(&cfg, broker, deviceName, topicBase, logLevel, logFormat, logOutput, logUTC)

	if printConfig {
		printResolvedConfig(cfg)
		return
	}
	if dryRun {
		return
	}

	logger := gospotd.NewLogger(gospotd.LogConfig{
		Level:  cfg.Server.LogLevel,
		Format: cfg.Server.LogFormat,
		Output: cfg.Server.LogOutput,
		UTC:    cfg.Server.LogUTC,
	})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	skipEmbedded := false
	if cfg.Modules.EmbeddedMQTT.Enabled && cfg.Server.Broker == embeddedBrokerURL(cfg) {
		if err := startEmbeddedBroker(ctx, cfg, logger, cancel); err != nil {
			logger.Error("embedded mqtt failed", zap.Error(err))
			os.Exit(1)
		}
		skipEmbedded = true
	}
	if cfg.Server.Broker == "" {
		logger.Error("broker is required")
		os.Exit(1)
	}

	logger.Info("gospotd starting",
		zap.String("broker", cfg.Server.Broker),
		zap.String("topic_base", cfg.Server.TopicBase),
		zap.String("log_level", cfg.Server.LogLevel),
		zap.Strings("modules", enabledModules(cfg)),
	)

	client, err := mqtt.NewClient(mqtt.Options{
		BrokerURL: cfg.Server.Broker,
		ClientID:  fmt.Sprintf("gospotd-%d", time.Now().UnixNano()),
		Username:  cfg.Server.Auth.User,
		Password:  cfg.Server.Auth.Pass,
		TLSCA:     cfg.Server.TLS.CA,
		TLSCert:   cfg.Server.TLS.Cert,
		TLSKey:    cfg.Server.TLS.Key,
		TopicBase: cfg.Server.TopicBase,
		Timeout:   2 * time.Second,
	})
	if err != nil {
		logger.Error("mqtt connection failed", zap.Error(err))
		os.Exit(1)
	}
	defer client.Close()

	modules, err := buildModules(cfg, client, logger, skipEmbedded)
	if err != nil {
		logger.Error("failed to build modules", zap.Error(err))
		os.Exit(1)
	}

	supervisor := gospotd.Supervisor{Logger: logger}
	if err := supervisor.Run(ctx, modules); err != nil {
		logger.Error("supervisor error", zap.Error(err))
		os.Exit(1)
	}
}

func applyOverrides(cfg *gospotd.Config, broker, deviceName, topicBase, logLevel, logFormat, logOutput string, logUTC bool) {
	if broker != "" {
		cfg.Server.Broker = broker
	}
	if deviceName != "" {
		cfg.Modules.BridgeRemote.DeviceName = deviceName
	}
	if topicBase != "" {
		cfg.Server.TopicBase = topicBase
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Server.LogFormat = logFormat
	}
	if logOutput != "" {
		cfg.Server.LogOutput = logOutput
	}
	if logUTC {
		cfg.Server.LogUTC = true
	}
	if cfg.Server.TopicBase == "" {
		cfg.Server.TopicBase = remote.BaseTopic
	}
	if cfg.Server.Broker == "" && cfg.Modules.EmbeddedMQTT.Enabled {
		cfg.Server.Broker = embeddedBrokerURL(*cfg)
	}
}

func buildModules(cfg gospotd.Config, client *mqtt.Client, logger *zap.Logger, skipEmbedded bool) ([]gospotd.ModuleRunner, error) {
	modules := []gospotd.ModuleRunner{}
	if cfg.Modules.EmbeddedMQTT.Enabled && !skipEmbedded {
		mod, err := newEmbeddedModule(cfg, logger)
		if err != nil {
			return nil, err
		}
		modules = append(modules, gospotd.ModuleRunner{
			Name: "embedded_mqtt",
			Run:  mod.Run,
		})
	}
	if cfg.Modules.BridgeRemote.Enabled {
		interval := time.Duration(cfg.Modules.BridgeRemote.SnapshotIntervalMS) * time.Millisecond
		mod, err := bridgeremote.NewModule(
			logger.With(zap.String("module", "bridge_remote")),
			client,
			bridge.Default(),
			bridgeremote.Config{
				DeviceName:       cfg.Modules.BridgeRemote.DeviceName,
				TopicBase:        cfg.Server.TopicBase,
				Autostart:        cfg.Modules.BridgeRemote.Autostart,
				SnapshotInterval: interval,
			})
		if err != nil {
			return nil, err
		}
		modules = append(modules, gospotd.ModuleRunner{
			Name: "bridge_remote",
			Run:  mod.Run,
		})
	}
	if len(modules) == 0 {
		return nil, errors.New("no modules enabled")
	}
	return modules, nil
}

func newEmbeddedModule(cfg gospotd.Config, logger *zap.Logger) (*embeddedmqtt.Module, error) {
	return embeddedmqtt.NewModule(logger.With(zap.String("module", "embedded_mqtt")), embeddedmqtt.Config{
		Listen:         cfg.Modules.EmbeddedMQTT.Listen,
		AllowAnonymous: cfg.Modules.EmbeddedMQTT.AllowAnonymous,
		Username:       cfg.Modules.EmbeddedMQTT.Username,
		Password:       cfg.Modules.EmbeddedMQTT.Password,
		TLSCA:          cfg.Modules.EmbeddedMQTT.TLSCA,
		TLSCert:        cfg.Modules.EmbeddedMQTT.TLSCert,
		TLSKey:         cfg.Modules.EmbeddedMQTT.TLSKey,
	})
}

func enabledModules(cfg gospotd.Config) []string {
	out := []string{}
	if cfg.Modules.EmbeddedMQTT.Enabled {
		out = append(out, "embedded_mqtt")
	}
	if cfg.Modules.BridgeRemote.Enabled {
		out = append(out, "bridge_remote")
	}
	return out
}

func printResolvedConfig(cfg gospotd.Config) {
	fmt.Fprintf(os.Stdout,
		"broker=%s topic_base=%s log_level=%s log_format=%s log_output=%s log_utc=%t device_name=%s\n",
		cfg.Server.Broker,
		cfg.Server.TopicBase,
		cfg.Server.LogLevel,
		cfg.Server.LogFormat,
		cfg.Server.LogOutput,
		cfg.Server.LogUTC,
		cfg.Modules.BridgeRemote.DeviceName,
	)
}

func embeddedBrokerURL(cfg gospotd.Config) string {
	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = embeddedmqtt.DefaultListen
	}
	tlsEnabled := cfg.Modules.EmbeddedMQTT.TLSCert != "" || cfg.Modules.EmbeddedMQTT.TLSKey != "" || cfg.Modules.EmbeddedMQTT.TLSCA != ""
	return embeddedmqtt.BrokerURL(listen, tlsEnabled)
}

func startEmbeddedBroker(ctx context.Context, cfg gospotd.Config, logger *zap.Logger, cancel context.CancelFunc) error {
	mod, err := newEmbeddedModule(cfg, logger)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- mod.Run(ctx)
	}()
	go func() {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("embedded mqtt exited", zap.Error(err))
			cancel()
		}
	}()

	listen := cfg.Modules.EmbeddedMQTT.Listen
	if listen == "" {
		listen = embeddedmqtt.DefaultListen
	}
	return waitForListen(listen, 3*time.Second)
}

func waitForListen(listen string, timeout time.Duration) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	addr := net.JoinHostPort(host, port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("embedded mqtt not ready at %s", addr)
}
