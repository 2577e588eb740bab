package gospotd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "gospotd.toml")
	data := []byte("" +
		"[server]\n" +
		"broker = \"mqtt://localhost\"\n" +
		"log_level = \"debug\"\n" +
		"\n" +
		"[modules.embedded_mqtt]\n" +
		"enabled = true\n" +
		"listen = \"127.0.0.1:1883\"\n" +
		"allow_anonymous = true\n" +
		"\n" +
		"[modules.bridge_remote]\n" +
		"enabled = true\n" +
		"device_name = \"Living Room\"\n" +
		"autostart = true\n" +
		"snapshot_interval_ms = 2000\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Broker != "mqtt://localhost" {
		t.Fatalf("expected broker")
	}
	if !cfg.Modules.EmbeddedMQTT.Enabled {
		t.Fatalf("expected embedded broker enabled")
	}
	if cfg.Modules.BridgeRemote.DeviceName != "Living Room" {
		t.Fatalf("expected device name")
	}
	if cfg.Modules.BridgeRemote.SnapshotIntervalMS != 2000 {
		t.Fatalf("expected snapshot interval")
	}
}

func TestLoadConfigRejectsMissingPath(t *testing.T) {
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatalf("expected error for directory path")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("default config path: %v", err)
	}
	if path == "" {
		t.Fatalf("expected path")
	}
}
