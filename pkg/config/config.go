// Package config loads the daemon endpoint configuration: the WebSocket URL
// and the client certificate pair the application uses to authenticate to its
// local daemon.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DaemonConfig defines how to reach and authenticate to the daemon.
type DaemonConfig struct {
	URL      string `toml:"url"`
	CertPath string `toml:"certPath"`
	KeyPath  string `toml:"keyPath"`

	RequestTimeoutSeconds int  `toml:"requestTimeoutSeconds"`
	Reconnect             bool `toml:"reconnect"`
	ReconnectMinDelayMS   int  `toml:"reconnectMinDelayMs"`
	ReconnectMaxDelayMS   int  `toml:"reconnectMaxDelayMs"`
}

// LoggingConfig defines basic logging knobs.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// Config aggregates the client configuration.
type Config struct {
	Daemon  DaemonConfig  `toml:"daemon"`
	Logging LoggingConfig `toml:"logging"`
}

// Default returns a config pointing at the conventional local daemon port
// with reconnection enabled.
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			URL:                   "wss://localhost:55400",
			RequestTimeoutSeconds: 30,
			Reconnect:             true,
			ReconnectMinDelayMS:   1000,
			ReconnectMaxDelayMS:   30000,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a config.toml from the provided path.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path as TOML.
func Save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func (cfg *Config) validate() error {
	if cfg.Daemon.URL == "" {
		return fmt.Errorf("daemon.url required")
	}
	if cfg.Daemon.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("daemon.requestTimeoutSeconds must not be negative")
	}
	if cfg.Daemon.ReconnectMinDelayMS <= 0 {
		cfg.Daemon.ReconnectMinDelayMS = 1000
	}
	if cfg.Daemon.ReconnectMaxDelayMS < cfg.Daemon.ReconnectMinDelayMS {
		cfg.Daemon.ReconnectMaxDelayMS = cfg.Daemon.ReconnectMinDelayMS
	}
	return nil
}

// RequestTimeout returns the configured per-request deadline. Zero disables
// the deadline, which long-running daemon commands rely on.
func (cfg *Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.Daemon.RequestTimeoutSeconds) * time.Second
}

// ReconnectDelays returns the backoff bounds for the reconnect loop.
func (cfg *Config) ReconnectDelays() (min, max time.Duration) {
	return time.Duration(cfg.Daemon.ReconnectMinDelayMS) * time.Millisecond,
		time.Duration(cfg.Daemon.ReconnectMaxDelayMS) * time.Millisecond
}

// ClientTLS builds a TLS config from the daemon client certificate pair.
// The daemon issues its certificates from its own local CA, so server
// verification is skipped; authentication runs the other way, client to
// daemon.
func (cfg *Config) ClientTLS() (*tls.Config, error) {
	if cfg.Daemon.CertPath == "" || cfg.Daemon.KeyPath == "" {
		return nil, fmt.Errorf("daemon.certPath and daemon.keyPath required for TLS")
	}
	pair, err := tls.LoadX509KeyPair(cfg.Daemon.CertPath, cfg.Daemon.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load daemon client certificate: %w", err)
	}
	return &tls.Config{
		Certificates:       []tls.Certificate{pair},
		InsecureSkipVerify: true,
	}, nil
}
