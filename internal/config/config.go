// Package config provides configuration management for caffeine.
//
// Preferences live in a TOML file under the user's config directory. The
// refresh period is not one of them: it is fixed at build time.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
)

const (
	appDir   = "caffeine"
	fileName = "config.toml"
	logName  = "caffeine.log"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration
type Config struct {
	// Awake selects what each refresh asserts
	Awake AwakeConfig `toml:"awake"`

	// Tray contains tray edition settings
	Tray TrayConfig `toml:"tray"`

	// Log contains logging settings
	Log LogConfig `toml:"log"`
}

// AwakeConfig selects which idle timers are held
type AwakeConfig struct {
	// System keeps the machine from going to sleep
	System bool `toml:"system"`

	// Display keeps the screen from dimming or turning off
	Display bool `toml:"display"`

	// KeyFallback taps F15 on every refresh for programs that only watch input
	KeyFallback bool `toml:"key_fallback"`
}

// TrayConfig contains tray edition settings
type TrayConfig struct {
	// Tooltip is the text shown before the status in the icon's tooltip
	Tooltip string `toml:"tooltip"`
}

// LogConfig contains logging settings
type LogConfig struct {
	// Level is a logrus level name: debug, info, warn, error
	Level string `toml:"level"`

	// File is where the tray edition logs. Empty means caffeine.log next
	// to the config file.
	File string `toml:"file,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Awake: AwakeConfig{
			System:      true,
			Display:     true,
			KeyFallback: true,
		},
		Tray: TrayConfig{
			Tooltip: "Caffeine",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration can be used.
func (c *Config) Validate() error {
	if !c.Awake.System && !c.Awake.Display {
		return fmt.Errorf("%w: at least one of awake.system or awake.display must be true", ErrInvalid)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	return nil
}

// DefaultPath returns the path to the configuration file
func DefaultPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", appDir)
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, appDir)
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(configHome, appDir)
	}

	return filepath.Join(configDir, fileName), nil
}

// Manager handles loading, saving and watching configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     Config
	onChanged  func(Config)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewManager creates a configuration manager for path, or for DefaultPath
// when path is empty. It starts out with the defaults.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
	}

	return &Manager{
		configPath: path,
		config:     *DefaultConfig(),
	}, nil
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// LogPath returns where the tray edition should log
func (m *Manager) LogPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config.Log.File != "" {
		return m.config.Log.File
	}
	return filepath.Join(filepath.Dir(m.configPath), logName)
}

// Load reads the configuration from disk. A missing file leaves the
// defaults in place.
func (m *Manager) Load() error {
	cfg, err := m.read()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = *cfg
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb(*cfg)
	}
	return nil
}

func (m *Manager) read() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", m.configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := toml.Marshal(m.config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	logrus.Infof("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set validates and replaces the configuration
func (m *Manager) Set(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb(cfg)
	}
	return nil
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func(Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
