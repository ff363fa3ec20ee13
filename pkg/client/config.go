package client

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nadtcp/nadtcp-go/pkg/connection"
	"github.com/nadtcp/nadtcp-go/pkg/log"
	"github.com/nadtcp/nadtcp-go/pkg/model"
	"github.com/nadtcp/nadtcp-go/pkg/transport"
)

// Config defaults.
const (
	DefaultModel      = "C338"
	DefaultMinVolume  = -80
	DefaultMaxVolume  = -10
	DefaultVolumeStep = 4
)

// Config configures a Client.
type Config struct {
	// Host is the amplifier's hostname or IP address.
	Host string `yaml:"host"`

	// Port overrides the model's control port (0 = model default).
	Port int `yaml:"port"`

	// Model is the catalog model ID (default: DefaultModel).
	Model string `yaml:"model"`

	// ReconnectInterval is the fixed delay between connection attempts.
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`

	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// WriteTimeout bounds each command write (0 = no timeout).
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// KeepAliveInterval enables a periodic power query that detects dead
	// sockets (0 = off).
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`

	// MinVolume and MaxVolume bound volume steps, in dB.
	MinVolume int `yaml:"min_volume"`
	MaxVolume int `yaml:"max_volume"`

	// VolumeStep is the change per volume step, in dB.
	VolumeStep int `yaml:"volume_step"`

	// Catalog resolves Model (default: model.DefaultCatalog).
	Catalog *model.Catalog `yaml:"-"`

	// Dialer opens the socket (default: transport.NetDialer).
	Dialer transport.Dialer `yaml:"-"`

	// Clock schedules reconnects (default: connection.SystemClock).
	Clock connection.Clock `yaml:"-"`

	// Logger is the optional logger for debug output.
	Logger *slog.Logger `yaml:"-"`

	// ProtocolLogger captures protocol traffic (nil = off).
	ProtocolLogger log.Logger `yaml:"-"`
}

// DefaultConfig returns a configuration with default values. Host must
// still be set.
func DefaultConfig() Config {
	return Config{
		Model:             DefaultModel,
		ReconnectInterval: connection.DefaultReconnectInterval,
		ConnectTimeout:    transport.DefaultConnectTimeout,
		MinVolume:         DefaultMinVolume,
		MaxVolume:         DefaultMaxVolume,
		VolumeStep:        DefaultVolumeStep,
	}
}

// LoadConfig reads a YAML configuration file. Keys missing from the file
// keep their DefaultConfig values. Durations use Go syntax ("10s").
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration data on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults fills zero values.
func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = connection.DefaultReconnectInterval
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = transport.DefaultConnectTimeout
	}
	if c.MinVolume == 0 && c.MaxVolume == 0 {
		c.MinVolume = DefaultMinVolume
		c.MaxVolume = DefaultMaxVolume
	}
	if c.VolumeStep == 0 {
		c.VolumeStep = DefaultVolumeStep
	}
	if c.Catalog == nil {
		c.Catalog = model.DefaultCatalog()
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.MinVolume >= c.MaxVolume {
		return fmt.Errorf("%w: min_volume %d must be below max_volume %d", ErrInvalidConfig, c.MinVolume, c.MaxVolume)
	}
	if c.VolumeStep <= 0 {
		return fmt.Errorf("%w: volume_step must be positive", ErrInvalidConfig)
	}
	if c.ReconnectInterval < 0 || c.ConnectTimeout < 0 || c.WriteTimeout < 0 || c.KeepAliveInterval < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	return nil
}
