package gospotd

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for gospotd.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Modules ModulesConfig `toml:"modules"`
}

// ServerConfig defines shared daemon settings.
type ServerConfig struct {
	Broker    string     `toml:"broker"`
	TopicBase string     `toml:"topic_base"`
	LogLevel  string     `toml:"log_level"`
	LogFormat string     `toml:"log_format"`
	LogOutput string     `toml:"log_output"`
	LogUTC    bool       `toml:"log_utc"`
	TLS       TLSConfig  `toml:"tls"`
	Auth      AuthConfig `toml:"auth"`
}

// TLSConfig holds TLS paths for MQTT.
type TLSConfig struct {
	CA   string `toml:"ca"`
	Cert string `toml:"cert"`
	Key  string `toml:"key"`
}

// AuthConfig holds MQTT auth credentials.
type AuthConfig struct {
	User string `toml:"user"`
	Pass string `toml:"pass"`
}

// ModulesConfig holds module configurations.
type ModulesConfig struct {
	EmbeddedMQTT EmbeddedMQTTConfig `toml:"embedded_mqtt"`
	BridgeRemote BridgeRemoteConfig `toml:"bridge_remote"`
}

// EmbeddedMQTTConfig configures the embedded MQTT broker.
type EmbeddedMQTTConfig struct {
	Enabled        bool   `toml:"enabled"`
	Listen         string `toml:"listen"`
	AllowAnonymous bool   `toml:"allow_anonymous"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	TLSCA          string `toml:"tls_ca"`
	TLSCert        string `toml:"tls_cert"`
	TLSKey         string `toml:"tls_key"`
}

// BridgeRemoteConfig configures the connect bridge module.
type BridgeRemoteConfig struct {
	Enabled            bool   `toml:"enabled"`
	DeviceName         string `toml:"device_name"`
	Autostart          bool   `toml:"autostart"`
	SnapshotIntervalMS int64  `toml:"snapshot_interval_ms"`
}

// LoadConfig loads a config file from path.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Config{}, err
	}
	if info.IsDir() {
		return Config{}, errors.New("config path is a directory")
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultConfigPath returns the default config location.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "gospot", "gospotd.toml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gospot", "gospotd.toml"), nil
}
