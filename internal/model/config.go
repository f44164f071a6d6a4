package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig describes the remote task service.
type ServerConfig struct {
	// BaseURL is the root URL of the task service API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single request, including reading the body.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// Timeout returns TimeoutSec as a duration.
func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// SessionConfig controls where the credential is kept.
type SessionConfig struct {
	// Keyring stores the credential in the system keyring. When false the
	// credential only lives for the duration of the process.
	Keyring bool `mapstructure:"keyring" yaml:"keyring"`
}

// BoardConfig holds board behaviour settings.
type BoardConfig struct {
	// RefreshIntervalSec is how often an idle board is reloaded.
	RefreshIntervalSec int `mapstructure:"refresh_interval_sec" yaml:"refresh_interval_sec"`
}

// LogConfig controls the application log.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// DevServerConfig configures the bundled development server.
type DevServerConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	DBPath      string `mapstructure:"db_path" yaml:"db_path"`
	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	SeedFile    string `mapstructure:"seed_file" yaml:"seed_file"`
	TokenTTLMin int    `mapstructure:"token_ttl_min" yaml:"token_ttl_min"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Board     BoardConfig     `mapstructure:"board" yaml:"board"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
	DevServer DevServerConfig `mapstructure:"devserver" yaml:"devserver"`
}

// ConfigDir returns ~/.config/teamboard, falling back to the working
// directory when the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "teamboard")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/teamboard/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			BaseURL:    "http://localhost:8080",
			TimeoutSec: 15,
		},
		Session: SessionConfig{Keyring: true},
		Board:   BoardConfig{RefreshIntervalSec: 60},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(ConfigDir(), "teamboard.log"),
		},
		Display: DisplayConfig{Theme: "default"},
		DevServer: DevServerConfig{
			Addr:        ":8080",
			DBPath:      filepath.Join(ConfigDir(), "devserver.db"),
			JWTSecret:   "teamboard-dev-secret",
			TokenTTLMin: 60,
		},
	}
}

// SetDefaults registers every default on v so missing keys and
// environment-only setups resolve to sensible values.
func SetDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("server.base_url", d.Server.BaseURL)
	v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	v.SetDefault("session.keyring", d.Session.Keyring)
	v.SetDefault("board.refresh_interval_sec", d.Board.RefreshIntervalSec)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("devserver.addr", d.DevServer.Addr)
	v.SetDefault("devserver.db_path", d.DevServer.DBPath)
	v.SetDefault("devserver.jwt_secret", d.DevServer.JWTSecret)
	v.SetDefault("devserver.seed_file", d.DevServer.SeedFile)
	v.SetDefault("devserver.token_ttl_min", d.DevServer.TokenTTLMin)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return DefaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	return Decode(v)
}

// Decode unmarshals an already-populated viper instance and fills in
// values that must never be zero.
func Decode(v *viper.Viper) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Server.TimeoutSec <= 0 {
		cfg.Server.TimeoutSec = 15
	}
	if cfg.Board.RefreshIntervalSec < 0 {
		cfg.Board.RefreshIntervalSec = 0
	}
	if cfg.DevServer.TokenTTLMin <= 0 {
		cfg.DevServer.TokenTTLMin = 60
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("session", cfg.Session)
	v.Set("board", cfg.Board)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)
	v.Set("devserver", cfg.DevServer)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
