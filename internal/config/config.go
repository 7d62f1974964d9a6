// Package config handles sonarfleetd configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// searchPathsFunc is overridden in tests to avoid picking up real
// config files present on the developer/deploy machine.
var searchPathsFunc = DefaultSearchPaths

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/sonarfleetd/config.yaml, /config/config.yaml,
// /etc/sonarfleetd/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "sonarfleetd", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/sonarfleetd/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches searchPathsFunc and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range searchPathsFunc() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", searchPathsFunc())
}

// Config holds all sonarfleetd configuration. There is no persisted
// device registry (spec Non-goal) — this only configures how the
// daemon listens, discovers devices, and logs.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	LogLevel  string          `yaml:"log_level"`
}

// ListenConfig defines the request-façade / websocket edge bind settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// DiscoveryConfig controls the auto-provisioning subsystem (§4.4).
type DiscoveryConfig struct {
	// Network enables UDP broadcast discovery on AutoCreate.
	Network bool `yaml:"network"`
	// Serial enables serial port enumeration + baud auto-detect on AutoCreate.
	Serial bool `yaml:"serial"`
	// SkipSerialPorts excludes these device paths from serial enumeration,
	// in addition to any bridge-owned ports reported by the bridge service.
	SkipSerialPorts []string `yaml:"skip_serial_ports"`
}

// BridgeConfig configures the optional sibling bridge-service integration.
type BridgeConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"` // default: http://localhost:9110
}

// Configured reports whether the bridge integration has a usable URL.
func (c BridgeConfig) Configured() bool {
	return c.Enabled && c.BaseURL != ""
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g. ${BRIDGE_URL}). Convenience for
	// container deployments; values may also be placed directly in the file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Bridge.BaseURL == "" {
		c.Bridge.BaseURL = "http://localhost:9110"
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration suitable for local development:
// both discovery strategies enabled, bridge integration off.
func Default() *Config {
	cfg := &Config{
		Discovery: DiscoveryConfig{
			Network: true,
			Serial:  true,
		},
	}
	cfg.applyDefaults()
	return cfg
}
