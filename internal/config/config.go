package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	appName    = "trellis"
	configFile = "config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. TRELLIS_SERVER_PORT.
	EnvPrefix = "TRELLIS"

	currentVersion = 1
)

// Config is the complete server configuration file.
type Config struct {
	Version   int               `mapstructure:"version" yaml:"version"`
	Logging   LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Server    ServerConfig      `mapstructure:"server" yaml:"server"`
	Mime      map[string]string `mapstructure:"mime" yaml:"mime,omitempty"`
	Handlers  []HandlerConfig   `mapstructure:"handlers" yaml:"handlers" validate:"dive"`
	WebSocket []WebSocketConfig `mapstructure:"websocket" yaml:"websocket,omitempty" validate:"dive"`
	Sessions  SessionsConfig    `mapstructure:"sessions" yaml:"sessions"`
	Metrics   MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Discovery DiscoveryConfig   `mapstructure:"discovery" yaml:"discovery"`
	TLS       TLSConfig         `mapstructure:"tls" yaml:"tls,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level     string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format    string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=console json"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// ServerConfig holds the listener and worker settings.
type ServerConfig struct {
	ID                    string `mapstructure:"id" yaml:"id"`
	Address               string `mapstructure:"address" yaml:"address" validate:"omitempty,ip|hostname"`
	Port                  int    `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Workers               int    `mapstructure:"workers" yaml:"workers" validate:"gte=0"`
	WorkerPrefix          string `mapstructure:"worker_prefix" yaml:"worker_prefix"`
	SessionCookie         string `mapstructure:"session_cookie" yaml:"session_cookie" validate:"omitempty,alphanum"`
	RegisterSignalHandler bool   `mapstructure:"register_signal_handler" yaml:"register_signal_handler"`
}

// HandlerConfig installs one HTTP handler at one or more locations.
// Everything other than type and location is passed to the handler's factory.
type HandlerConfig struct {
	Type     string         `mapstructure:"type" yaml:"type" validate:"required"`
	Location string         `mapstructure:"location" yaml:"location" validate:"required"`
	Options  map[string]any `mapstructure:",remain" yaml:",inline"`
}

// WebSocketConfig installs a WebSocket handler at one or more locations.
type WebSocketConfig struct {
	Type     string `mapstructure:"type" yaml:"type" validate:"required,oneof=echo null"`
	Location string `mapstructure:"location" yaml:"location" validate:"required"`
}

// SessionsConfig selects where client sessions live.
type SessionsConfig struct {
	Store string        `mapstructure:"store" yaml:"store" validate:"omitempty,oneof=memory badger"`
	Dir   string        `mapstructure:"dir" yaml:"dir,omitempty"`
	TTL   time.Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

// MetricsConfig enables the admin endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen" validate:"omitempty,hostname_port"`
}

// DiscoveryConfig enables mDNS advertisement of the listener.
type DiscoveryConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Instance string `mapstructure:"instance" yaml:"instance,omitempty"`
}

// TLSConfig points at PEM files. Both or neither must be set.
type TLSConfig struct {
	Cert string `mapstructure:"cert" yaml:"cert,omitempty"`
	Key  string `mapstructure:"key" yaml:"key,omitempty"`
}

// Override adjusts a loaded configuration before defaults and validation,
// typically from command-line flags.
type Override func(*Config) error

// Load reads configuration from path (or the default location when empty),
// applies TRELLIS_* environment overrides, then overrides, then defaults, and
// validates the result. A missing file at the default location yields the
// defaults.
func Load(path string, overrides ...Override) (*Config, error) {
	v := viper.New()
	setupViper(v, path)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, o := range overrides {
		if err := o(&cfg); err != nil {
			return nil, err
		}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, path string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults that ApplyDefaults cannot tell apart from an explicit zero.
	v.SetDefault("server.register_signal_handler", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.level", "info")

	if path != "" {
		v.SetConfigFile(path)
		return
	}
	if dir, err := GetConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/trellis or $HOME/.config/trellis
//   - macOS: $HOME/.config/trellis (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\trellis
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			return filepath.Join(xdgConfigHome, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}
