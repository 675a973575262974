package rpcclient

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultSendBuffer      = 16
	defaultEventBuffer     = 16
	defaultRequestTimeout  = 30 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultWriteTimeout    = 5 * time.Second
	defaultPingInterval    = 0 * time.Second // disabled; rely on daemon pings
	defaultReconnectMin    = 1 * time.Second
	defaultReconnectMax    = 30 * time.Second
	defaultReconnectTries  = 0 // 0 means infinite when auto-reconnect is on
)

type clientConfig struct {
	logger            *slog.Logger
	tlsConfig         *tls.Config
	dialOptions       *websocket.DialOptions
	requestTimeout    time.Duration // 0 disables the per-request deadline
	dialTimeout       time.Duration
	writeTimeout      time.Duration
	pingInterval      time.Duration
	autoReconnect     bool
	reconnectAttempts int
	reconnectDelayMin time.Duration
	reconnectDelayMax time.Duration
	eventBuffer       int
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a custom logging implementation.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.config.logger = logger
		}
	}
}

// WithTLSConfig supplies the client certificate pair used to authenticate to
// the local daemon. The daemon issues its own CA, so configs built from it
// normally skip verification of the server certificate.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) {
		c.config.tlsConfig = cfg
	}
}

// WithDialOptions sets custom websocket.DialOptions. A TLS config supplied via
// WithTLSConfig still applies unless the dial options carry their own HTTP client.
func WithDialOptions(opts *websocket.DialOptions) Option {
	return func(c *Client) {
		c.config.dialOptions = opts
	}
}

// WithRequestTimeout sets the default deadline for Request operations.
// Zero disables the deadline: requests then settle only on response,
// disconnect, close, or caller context cancellation. Long-running daemon
// commands (plotting, large offer builds) need the zero setting.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout >= 0 {
			c.config.requestTimeout = timeout
		}
	}
}

// WithDialTimeout bounds a single connection attempt.
func WithDialTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.config.dialTimeout = timeout
		}
	}
}

// WithWriteTimeout bounds a single frame write.
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.config.writeTimeout = timeout
		}
	}
}

// WithPingInterval enables client-initiated pings. Zero or negative disables
// them.
func WithPingInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.config.pingInterval = interval
	}
}

// WithAutoReconnect enables automatic reconnection with exponential backoff
// and jitter. maxAttempts = 0 means unlimited attempts.
func WithAutoReconnect(maxAttempts int, minDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.config.autoReconnect = true
		c.config.reconnectAttempts = maxAttempts
		if minDelay > 0 {
			c.config.reconnectDelayMin = minDelay
		}
		if maxDelay > 0 && maxDelay >= minDelay {
			c.config.reconnectDelayMax = maxDelay
		} else if maxDelay < minDelay {
			c.config.reconnectDelayMax = minDelay
		}
	}
}

// WithEventBuffer sets the per-subscription event channel capacity. Events
// beyond a slow subscriber's capacity are dropped, not queued unboundedly.
func WithEventBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.config.eventBuffer = n
		}
	}
}

// WithContext sets a parent context for the client. When the parent is
// cancelled the client shuts down all operations, which lets the client's
// lifetime follow application-level context management.
func WithContext(ctx context.Context) Option {
	return func(c *Client) {
		c.clientCtx, c.clientCancel = context.WithCancel(ctx)
	}
}

// Options is the struct-based equivalent of the functional options, for
// callers that assemble configuration from a file.
type Options struct {
	Logger            *slog.Logger
	TLSConfig         *tls.Config
	DialOptions       *websocket.DialOptions
	RequestTimeout    time.Duration
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	AutoReconnect     bool
	ReconnectAttempts int
	ReconnectDelayMin time.Duration
	ReconnectDelayMax time.Duration
	EventBuffer       int
}

// DefaultOptions returns an Options struct populated with library defaults.
func DefaultOptions() Options {
	return Options{
		Logger:            slog.Default(),
		RequestTimeout:    defaultRequestTimeout,
		DialTimeout:       defaultDialTimeout,
		WriteTimeout:      defaultWriteTimeout,
		PingInterval:      defaultPingInterval,
		ReconnectAttempts: defaultReconnectTries,
		ReconnectDelayMin: defaultReconnectMin,
		ReconnectDelayMax: defaultReconnectMax,
		EventBuffer:       defaultEventBuffer,
	}
}

// options converts an Options struct into the functional form.
func (o Options) options() []Option {
	opts := []Option{}
	if o.Logger != nil {
		opts = append(opts, WithLogger(o.Logger))
	}
	if o.TLSConfig != nil {
		opts = append(opts, WithTLSConfig(o.TLSConfig))
	}
	if o.DialOptions != nil {
		opts = append(opts, WithDialOptions(o.DialOptions))
	}
	opts = append(opts, WithRequestTimeout(o.RequestTimeout))
	if o.DialTimeout > 0 {
		opts = append(opts, WithDialTimeout(o.DialTimeout))
	}
	if o.WriteTimeout > 0 {
		opts = append(opts, WithWriteTimeout(o.WriteTimeout))
	}
	opts = append(opts, WithPingInterval(o.PingInterval))
	if o.AutoReconnect {
		opts = append(opts, WithAutoReconnect(o.ReconnectAttempts, o.ReconnectDelayMin, o.ReconnectDelayMax))
	}
	if o.EventBuffer > 0 {
		opts = append(opts, WithEventBuffer(o.EventBuffer))
	}
	return opts
}

// httpClientFor builds the HTTP client used by the websocket dial, wiring in
// the daemon TLS client certificate when one is configured.
func httpClientFor(cfg *clientConfig) *http.Client {
	if cfg.tlsConfig == nil {
		return http.DefaultClient
	}
	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: cfg.tlsConfig},
	}
}
