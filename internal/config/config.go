package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ClientConfig holds client-wide configuration settings.
type ClientConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Proxy      ProxyConfig      `yaml:"proxy"`
	Send       SendConfig       `yaml:"send"`
	FloodGuard FloodGuardConfig `yaml:"flood_guard"`
	Transcript TranscriptConfig `yaml:"transcript"`
}

// ServerConfig identifies the remote line-protocol endpoint.
type ServerConfig struct {
	// Host is the remote hostname or IP address.
	Host string `yaml:"host"`

	// Port is the remote TCP port (1-65535).
	Port int `yaml:"port"`

	// WebSocketURL, if set, dials the server over WebSocket instead of
	// raw TCP (e.g. "ws://example.com:4443/ws").
	WebSocketURL string `yaml:"websocket_url"`
}

// Address returns the host:port endpoint string.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ProxyConfig holds optional SOCKS4 proxy settings.
type ProxyConfig struct {
	// Enabled routes the connection through the proxy when true.
	Enabled bool `yaml:"enabled"`

	// Host is the proxy hostname or IP address.
	Host string `yaml:"host"`

	// Port is the proxy TCP port.
	Port int `yaml:"port"`

	// User is the SOCKS4 user-id field (may be empty).
	User string `yaml:"user"`
}

// SendConfig holds outgoing message pacing settings.
type SendConfig struct {
	// MinIntervalMillis is the minimum delay between the completion of one
	// send and the start of the next, in milliseconds.
	MinIntervalMillis int `yaml:"min_interval_millis"`
}

// FloodGuardConfig holds client-side flood protection settings.
type FloodGuardConfig struct {
	// Enabled turns the flood guard on.
	Enabled bool `yaml:"enabled"`

	// MaxMessages is the maximum messages allowed in the time window.
	MaxMessages int `yaml:"max_messages"`

	// TimeWindowSeconds is the rate-limit window in seconds.
	TimeWindowSeconds int `yaml:"time_window_seconds"`

	// RepeatCooldownSeconds is how long before the same message may be
	// sent again, in seconds.
	RepeatCooldownSeconds int `yaml:"repeat_cooldown_seconds"`
}

// TranscriptConfig holds session transcript persistence settings.
type TranscriptConfig struct {
	// Enabled records sent and received lines when true.
	Enabled bool `yaml:"enabled"`

	// Dialect selects the storage backend: "sqlite" or "postgres".
	Dialect string `yaml:"dialect"`

	// Path is the database file path (sqlite) or DSN (postgres).
	Path string `yaml:"path"`
}

// DefaultConfig returns a ClientConfig with sensible defaults.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Server: ServerConfig{
			Host: "localhost",
			Port: 4000,
		},
		Proxy: ProxyConfig{
			Enabled: false,
			Port:    1080,
		},
		Send: SendConfig{
			MinIntervalMillis: 500,
		},
		FloodGuard: FloodGuardConfig{
			Enabled:               false,
			MaxMessages:           5,
			TimeWindowSeconds:     10,
			RepeatCooldownSeconds: 30,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
			Dialect: "sqlite",
			Path:    "data/mudlink.db",
		},
	}
}

// LoadConfig loads client configuration from a YAML file.
// If the file doesn't exist, returns default config.
func LoadConfig(path string) (*ClientConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Use defaults if file doesn't exist
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), err
	}

	return config, nil
}

// Validate checks the configuration for values the client cannot work with.
func (c *ClientConfig) Validate() error {
	if c.Server.WebSocketURL == "" {
		if c.Server.Host == "" {
			return fmt.Errorf("server host is required")
		}
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return fmt.Errorf("server port %d out of range 1-65535", c.Server.Port)
		}
	}

	if c.Proxy.Enabled {
		if c.Server.WebSocketURL != "" {
			return fmt.Errorf("websocket connections cannot use a SOCKS4 proxy")
		}
		if c.Proxy.Host == "" {
			return fmt.Errorf("proxy host is required when proxy is enabled")
		}
		if c.Proxy.Port < 1 || c.Proxy.Port > 65535 {
			return fmt.Errorf("proxy port %d out of range 1-65535", c.Proxy.Port)
		}
	}

	if c.Send.MinIntervalMillis < 0 {
		return fmt.Errorf("send min interval must not be negative")
	}

	switch c.Transcript.Dialect {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown transcript dialect %q", c.Transcript.Dialect)
	}

	return nil
}
