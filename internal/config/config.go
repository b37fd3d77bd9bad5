package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/rttap/internal/rtt"
	"github.com/muurk/rttap/internal/transport"
)

const (
	appName    = "rttap"
	configFile = "config.yaml"
)

var (
	// Global config instance (loaded lazily)
	global     *Config
	globalOnce sync.Once
	globalErr  error

	// Mutex for thread-safe file operations
	fileMutex sync.Mutex
)

// BridgeConfig configures the probe bridge connection.
type BridgeConfig struct {
	// URL is the bridge websocket endpoint
	URL string `yaml:"url"`
	// Timeout bounds one bridge round trip, e.g. "5s"
	Timeout string `yaml:"timeout"`
}

// AttachConfig configures control block discovery and the retry budget.
type AttachConfig struct {
	// ControlBlockSymbol is looked up in the firmware ELF as an address hint
	ControlBlockSymbol string `yaml:"control_block_symbol"`
	// RAMRanges is the full-scan universe for this target
	RAMRanges []rtt.ScanRange `yaml:"ram_ranges"`
	// MaxAttempts bounds the attach retry loop
	MaxAttempts int `yaml:"max_attempts"`
	// BaseDelay/DelayStep/MaxDelay shape the inter-attempt backoff
	BaseDelay string `yaml:"base_delay"`
	DelayStep string `yaml:"delay_step"`
	MaxDelay  string `yaml:"max_delay"`
}

// Config is the persisted tool configuration.
type Config struct {
	// FirmwareELF is the default firmware image for symbol resolution
	FirmwareELF string       `yaml:"firmware_elf"`
	Bridge      BridgeConfig `yaml:"bridge"`
	Attach      AttachConfig `yaml:"attach"`
}

// Default returns the built-in configuration.
func Default() *Config {
	bridge := transport.DefaultConfig()
	attach := rtt.DefaultAttachConfig()
	return &Config{
		Bridge: BridgeConfig{
			URL:     bridge.URL,
			Timeout: bridge.Timeout.String(),
		},
		Attach: AttachConfig{
			ControlBlockSymbol: attach.SymbolHint,
			RAMRanges:          attach.RAMRanges,
			MaxAttempts:        attach.MaxAttempts,
			BaseDelay:          attach.BaseDelay.String(),
			DelayStep:          attach.DelayStep.String(),
			MaxDelay:           attach.MaxDelay.String(),
		},
	}
}

// GetConfigDir returns the OS-appropriate configuration directory.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/rttap or $HOME/.config/rttap
//   - macOS: $HOME/.config/rttap (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\rttap
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	default:
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load returns the global configuration, reading the config file once.
// A missing file is not an error; defaults apply.
func Load() (*Config, error) {
	globalOnce.Do(func() {
		global, globalErr = loadFromDisk()
	})
	return global, globalErr
}

func loadFromDisk() (*Config, error) {
	cfg := Default()

	path, err := GetConfigPath()
	if err != nil {
		return cfg, nil
	}

	fileMutex.Lock()
	defer fileMutex.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to disk, creating the config directory
// with user-only permissions if needed.
func Save(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	path := filepath.Join(configDir, configFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}

// BridgeOptions converts the persisted bridge section into a transport
// config, validating the timeout string.
func (c *Config) BridgeOptions() (transport.Config, error) {
	out := transport.DefaultConfig()
	if c.Bridge.URL != "" {
		out.URL = c.Bridge.URL
	}
	if c.Bridge.Timeout != "" {
		d, err := time.ParseDuration(c.Bridge.Timeout)
		if err != nil {
			return out, fmt.Errorf("invalid bridge timeout %q: %w", c.Bridge.Timeout, err)
		}
		out.Timeout = d
	}
	return out, nil
}

// AttachOptions converts the persisted attach section into an rtt attach
// config, validating the delay strings.
func (c *Config) AttachOptions() (rtt.AttachConfig, error) {
	out := rtt.DefaultAttachConfig()
	if c.Attach.ControlBlockSymbol != "" {
		out.SymbolHint = c.Attach.ControlBlockSymbol
	}
	if len(c.Attach.RAMRanges) > 0 {
		out.RAMRanges = c.Attach.RAMRanges
	}
	if c.Attach.MaxAttempts > 0 {
		out.MaxAttempts = c.Attach.MaxAttempts
	}

	for _, d := range []struct {
		value string
		dst   *time.Duration
		name  string
	}{
		{c.Attach.BaseDelay, &out.BaseDelay, "base_delay"},
		{c.Attach.DelayStep, &out.DelayStep, "delay_step"},
		{c.Attach.MaxDelay, &out.MaxDelay, "max_delay"},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return out, fmt.Errorf("invalid attach %s %q: %w", d.name, d.value, err)
		}
		*d.dst = parsed
	}
	return out, nil
}
