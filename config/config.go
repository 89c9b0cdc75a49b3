// Package config loads and saves the runtime's TOML configuration: a
// nested struct per concern, a DefaultConfig constructor, and
// Load/LoadFrom/Save/SaveTo built on github.com/BurntSushi/toml, with
// the config file located under the platform's standard config
// directory (GetConfigPath) and logs under its standard data
// directory (GetLogPath).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the JIT runtime's configuration.
type Config struct {
	// Region settings.
	Region struct {
		SizeBytes int `toml:"size_bytes"`
	} `toml:"region"`

	// Cache settings.
	Cache struct {
		Bits int `toml:"bits"` // table has 2^bits entries
	} `toml:"cache"`

	// Translate settings.
	Translate struct {
		MaxInstructionsPerBlock int  `toml:"max_instructions_per_block"`
		StrictWX                bool `toml:"strict_wx"` // toggle W^X per block vs default RWX mapping
	} `toml:"translate"`

	// Dispatch settings.
	Dispatch struct {
		StatsPort   int    `toml:"stats_port"`
		EnableTUI   bool   `toml:"enable_tui"`
		EnableGUI   bool   `toml:"enable_gui"`
		FaultPolicy string `toml:"fault_policy"` // "terminate" or "resume"
	} `toml:"dispatch"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Region.SizeBytes = 16 << 20

	cfg.Cache.Bits = 12 // 2^12 = 4096 entries

	cfg.Translate.MaxInstructionsPerBlock = 128
	cfg.Translate.StrictWX = false

	cfg.Dispatch.StatsPort = 7701
	cfg.Dispatch.EnableTUI = false
	cfg.Dispatch.EnableGUI = false
	cfg.Dispatch.FaultPolicy = "terminate"

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "arm64jit")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "arm64jit")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "arm64jit", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "arm64jit", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, cfg.validate()
}

// validate clamps the region size to 1-256 MiB and replaces a
// non-positive cache bit count or per-block instruction cap with its
// default, rather than failing outright. Those two have no upper bound.
func (c *Config) validate() error {
	const minRegion, maxRegion = 1 << 20, 256 << 20
	if c.Region.SizeBytes < minRegion {
		c.Region.SizeBytes = minRegion
	}
	if c.Region.SizeBytes > maxRegion {
		c.Region.SizeBytes = maxRegion
	}
	if c.Cache.Bits <= 0 {
		c.Cache.Bits = 12
	}
	if c.Translate.MaxInstructionsPerBlock <= 0 {
		c.Translate.MaxInstructionsPerBlock = 128
	}
	return nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
