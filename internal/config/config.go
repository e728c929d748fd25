package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (STORYWAVE_SERVER_URL, ...)
const EnvPrefix = "STORYWAVE"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Player   PlayerConfig   `mapstructure:"player"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	v    *viper.Viper
	path string // file written by Save
}

// ServerConfig holds the story service endpoint and saved credentials
type ServerConfig struct {
	URL       string `mapstructure:"url"`
	Token     string `mapstructure:"token"`
	Principal string `mapstructure:"principal"`
	Username  string `mapstructure:"username"` // Display only
}

// PlayerConfig holds the audio output configuration
type PlayerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// PlaybackConfig holds player and list preferences
type PlaybackConfig struct {
	SkipSeconds   float64 `mapstructure:"skip_seconds"`
	TrendingLimit int     `mapstructure:"trending_limit"`
}

// StorageConfig holds the local database location. Empty means memory-only.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Player: PlayerConfig{
			Command: "mpv",
			Args:    []string{},
		},
		Playback: PlaybackConfig{
			SkipSeconds:   10,
			TrendingLimit: 10,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dataDir(), "data"),
		},
		Logging: LoggingConfig{
			File:  filepath.Join(dataDir(), "storywave.log"),
			Level: "INFO",
		},
	}
}

// dataDir returns the default data directory for the current OS
func dataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "storywave")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "storywave")
	}
}

// Dir returns the default config directory for the current OS
func Dir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "storywave")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "storywave")
	}
}

// Load reads config.yaml from the first of paths that has one (default:
// the config directory, then "."), then applies environment overrides.
// A missing file is not an error.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = []string{Dir(), "."}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.v = v
	cfg.path = v.ConfigFileUsed()
	if cfg.path == "" {
		cfg.path = filepath.Join(paths[0], "config.yaml")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.token", d.Server.Token)
	v.SetDefault("server.principal", d.Server.Principal)
	v.SetDefault("server.username", d.Server.Username)
	v.SetDefault("player.command", d.Player.Command)
	v.SetDefault("player.args", d.Player.Args)
	v.SetDefault("playback.skip_seconds", d.Playback.SkipSeconds)
	v.SetDefault("playback.trending_limit", d.Playback.TrendingLimit)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.level", d.Logging.Level)
}

// Path returns the file Save writes to
func (c *Config) Path() string {
	return c.path
}

// Save writes the current configuration to Path
func (c *Config) Save() error {
	if c.v == nil {
		c.v = viper.New()
	}
	if c.path == "" {
		c.path = filepath.Join(Dir(), "config.yaml")
	}

	// Set fields individually to ensure correct key names (snake_case)
	c.v.Set("server.url", c.Server.URL)
	c.v.Set("server.token", c.Server.Token)
	c.v.Set("server.principal", c.Server.Principal)
	c.v.Set("server.username", c.Server.Username)

	c.v.Set("player.command", c.Player.Command)
	c.v.Set("player.args", c.Player.Args)

	c.v.Set("playback.skip_seconds", c.Playback.SkipSeconds)
	c.v.Set("playback.trending_limit", c.Playback.TrendingLimit)

	c.v.Set("storage.path", c.Storage.Path)

	c.v.Set("logging.file", c.Logging.File)
	c.v.Set("logging.level", c.Logging.Level)

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := c.v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveCredentials stores the identity returned by a successful login
func (c *Config) SaveCredentials(token, principal, username string) error {
	c.Server.Token = token
	c.Server.Principal = principal
	c.Server.Username = username
	return c.Save()
}

// ClearCredentials removes the saved identity while preserving other settings
func (c *Config) ClearCredentials() error {
	return c.SaveCredentials("", "", "")
}

// IsConfigured returns true if the server URL is set
func (c *Config) IsConfigured() bool {
	return c.Server.URL != ""
}

// HasCredentials returns true if a login token is saved
func (c *Config) HasCredentials() bool {
	return c.Server.Token != "" && c.Server.Principal != ""
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}
