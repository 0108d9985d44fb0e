package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Playback  PlaybackConfig  `toml:"playback"`
	Broadcast BroadcastConfig `toml:"broadcast"`
	Log       LogConfig       `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr joins host and port into a listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// PlaybackConfig contains scheduler and state machine settings.
type PlaybackConfig struct {
	TickMS        int `toml:"tick_ms"`
	PrerollMS     int `toml:"preroll_ms"`
	DefaultVolume int `toml:"default_volume"`
}

// Tick returns the scheduler tick width.
func (c PlaybackConfig) Tick() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// BroadcastConfig contains listener fan-out settings.
type BroadcastConfig struct {
	Buffer       int     `toml:"buffer"`
	CommandRate  float64 `toml:"command_rate"`
	CommandBurst int     `toml:"command_burst"`
	PongWaitMS   int     `toml:"pong_wait_ms"`
}

// PongWait returns how long a silent listener is kept before it is dropped.
func (c BroadcastConfig) PongWait() time.Duration {
	return time.Duration(c.PongWaitMS) * time.Millisecond
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks value ranges the engine and scheduler depend on.
func (c *Config) Validate() error {
	switch {
	case c.Playback.TickMS <= 0:
		return fmt.Errorf("%w: playback.tick_ms must be positive, got %d", ErrInvalidConfig, c.Playback.TickMS)
	case c.Playback.PrerollMS < 0:
		return fmt.Errorf("%w: playback.preroll_ms must not be negative, got %d", ErrInvalidConfig, c.Playback.PrerollMS)
	case c.Playback.DefaultVolume < 0 || c.Playback.DefaultVolume > 100:
		return fmt.Errorf("%w: playback.default_volume must be within 0..100, got %d", ErrInvalidConfig, c.Playback.DefaultVolume)
	case c.Broadcast.Buffer <= 0:
		return fmt.Errorf("%w: broadcast.buffer must be positive, got %d", ErrInvalidConfig, c.Broadcast.Buffer)
	case c.Broadcast.CommandRate <= 0 || c.Broadcast.CommandBurst <= 0:
		return fmt.Errorf("%w: broadcast.command_rate and command_burst must be positive", ErrInvalidConfig)
	case c.Broadcast.PongWaitMS <= 0:
		return fmt.Errorf("%w: broadcast.pong_wait_ms must be positive, got %d", ErrInvalidConfig, c.Broadcast.PongWaitMS)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
