package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/eladdad/core-net/screen"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "core-net"
	// DefaultListeningPort is the TCP port used when no user override exists.
	DefaultListeningPort = 24800
	// DefaultDwellSamples is how many consecutive at-edge samples trigger a
	// handoff.
	DefaultDwellSamples = 3
	// DefaultConnectTimeoutMS bounds dial and handshake duration.
	DefaultConnectTimeoutMS = 5000
	// DefaultHeartbeatIntervalMS is the heartbeat send interval.
	DefaultHeartbeatIntervalMS = 1000
	// DefaultMaxClipboardBytes caps synchronized clipboard payloads.
	DefaultMaxClipboardBytes = 10 * 1024 * 1024
	// configFileName is the persisted configuration file.
	configFileName = "config.toml"
)

// Config is the full persisted configuration.
type Config struct {
	General   GeneralConfig     `toml:"general"`
	Screen    ScreenConfig      `toml:"screen"`
	Network   NetworkConfig     `toml:"network"`
	Neighbors map[string]string `toml:"neighbors"`
	Clipboard ClipboardConfig   `toml:"clipboard"`
	Peers     map[string]string `toml:"peers"`
}

// GeneralConfig contains host identity settings.
type GeneralConfig struct {
	HostID  string `toml:"host_id"`
	Name    string `toml:"name"`
	Verbose bool   `toml:"verbose"`
	LogFile string `toml:"log_file"`
}

// ScreenConfig contains local screen geometry and edge behavior.
type ScreenConfig struct {
	Width        uint32 `toml:"width"`
	Height       uint32 `toml:"height"`
	DwellSamples int    `toml:"dwell_samples"`
}

// NetworkConfig contains transport settings.
type NetworkConfig struct {
	Port                int    `toml:"port"`
	BindAddress         string `toml:"bind_address"`
	ConnectTimeoutMS    int    `toml:"connect_timeout_ms"`
	HeartbeatIntervalMS int    `toml:"heartbeat_interval_ms"`
	EnableDiscovery     bool   `toml:"enable_discovery"`
}

// ClipboardConfig controls clipboard synchronization.
type ClipboardConfig struct {
	Enabled      bool `toml:"enabled"`
	MaxSizeBytes int  `toml:"max_size_bytes"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If CORENET_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("CORENET_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.toml for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// Load reads and unmarshals config.toml from disk.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(raw), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if !md.IsDefined("clipboard", "enabled") {
		cfg.Clipboard.Enabled = true
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save marshals and writes config.toml to disk.
func Save(path string, cfg *Config) error {
	raw, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures the data directory and config exist, then returns the
// config and its path.
func LoadOrCreate() (*Config, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create data directory: %w", err)
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = Default()
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}

	return cfg, cfgPath, nil
}

// Default returns a fresh configuration with a generated host ID and the
// machine's hostname.
func Default() *Config {
	name := "core-net-host"
	if host, err := os.Hostname(); err == nil && host != "" {
		name = host
	}

	cfg := &Config{
		General: GeneralConfig{
			HostID: uuid.NewString(),
			Name:   name,
		},
		Clipboard: ClipboardConfig{Enabled: true},
		Neighbors: make(map[string]string),
		Peers:     make(map[string]string),
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.General.HostID == "" {
		c.General.HostID = uuid.NewString()
	}
	if c.General.Name == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			c.General.Name = host
		} else {
			c.General.Name = "core-net-host"
		}
	}
	if c.Screen.DwellSamples == 0 {
		c.Screen.DwellSamples = DefaultDwellSamples
	}
	if c.Network.Port == 0 {
		c.Network.Port = DefaultListeningPort
	}
	if c.Network.ConnectTimeoutMS == 0 {
		c.Network.ConnectTimeoutMS = DefaultConnectTimeoutMS
	}
	if c.Network.HeartbeatIntervalMS == 0 {
		c.Network.HeartbeatIntervalMS = DefaultHeartbeatIntervalMS
	}
	if c.Clipboard.MaxSizeBytes == 0 {
		c.Clipboard.MaxSizeBytes = DefaultMaxClipboardBytes
	}
	if c.Neighbors == nil {
		c.Neighbors = make(map[string]string)
	}
	if c.Peers == nil {
		c.Peers = make(map[string]string)
	}
}

// Validate rejects configurations that cannot produce a working topology.
func (c *Config) Validate() error {
	for edgeName, neighbor := range c.Neighbors {
		if _, err := screen.ParseEdge(edgeName); err != nil {
			return fmt.Errorf("config: neighbors: %w", err)
		}
		if neighbor == "" {
			return fmt.Errorf("config: neighbors: empty host for edge %q", edgeName)
		}
		if neighbor == c.General.Name {
			return fmt.Errorf("config: neighbors: host %q cannot neighbor itself", neighbor)
		}
	}

	if c.Screen.DwellSamples < 1 {
		return errors.New("config: screen.dwell_samples must be at least 1")
	}
	if c.Network.Port < 1 || c.Network.Port > 65535 {
		return fmt.Errorf("config: network.port %d out of range", c.Network.Port)
	}
	if c.Network.ConnectTimeoutMS < 1 {
		return errors.New("config: network.connect_timeout_ms must be positive")
	}
	if c.Network.HeartbeatIntervalMS < 1 {
		return errors.New("config: network.heartbeat_interval_ms must be positive")
	}
	if c.Clipboard.MaxSizeBytes < 0 {
		return errors.New("config: clipboard.max_size_bytes cannot be negative")
	}

	return nil
}

// ListenAddress combines bind address and port into a listen string.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Network.BindAddress, c.Network.Port)
}

// Sample returns an annotated example configuration file.
func Sample() string {
	return `# core-net configuration

[general]
# host_id is generated on first run; leave empty to auto-generate.
host_id = ""
# name identifies this host to its peers. Defaults to the machine hostname.
name = ""
verbose = false

[screen]
# Screen geometry. Leave zero to use the platform-reported size.
width = 0
height = 0
# Consecutive at-edge cursor samples before control transfers.
dwell_samples = 3

[network]
port = 24800
bind_address = ""
connect_timeout_ms = 5000
heartbeat_interval_ms = 1000
enable_discovery = true

# Map screen edges to neighbor host names.
[neighbors]
# right = "desktop"
# left = "laptop"

[clipboard]
enabled = true
max_size_bytes = 10485760

# Static peer addresses, used when discovery is unavailable.
[peers]
# desktop = "192.168.1.10:24800"
`
}
