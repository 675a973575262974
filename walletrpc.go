// Package walletrpc is a client library for a local cryptocurrency wallet
// daemon. It maintains one persistent, reconnecting WebSocket connection,
// correlates responses to requests by id, streams unsolicited daemon events to
// subscribers, and exposes typed command APIs per daemon service (wallet,
// full node, farmer, daemon control).
package walletrpc

import (
	"github.com/bramblewood/go-walletrpc/pkg/config"
	"github.com/bramblewood/go-walletrpc/pkg/rpcclient"
	"github.com/bramblewood/go-walletrpc/pkg/services"
	"github.com/bramblewood/go-walletrpc/pkg/wire"
)

// Re-export core types.
type (
	Client   = rpcclient.Client
	Options  = rpcclient.Options
	State    = rpcclient.State
	RPCError = rpcclient.RPCError
	Envelope = wire.Envelope
	Config   = config.Config

	WalletService   = services.WalletService
	FullNodeService = services.FullNodeService
	FarmerService   = services.FarmerService
	DaemonService   = services.DaemonService
)

// Re-export error values.
var (
	ErrClientClosed   = rpcclient.ErrClientClosed
	ErrNotConnected   = rpcclient.ErrNotConnected
	ErrConnectionLost = rpcclient.ErrConnectionLost
	ErrMalformed      = wire.ErrMalformed
)

// Re-export connection states.
const (
	StateDisconnected = rpcclient.StateDisconnected
	StateConnecting   = rpcclient.StateConnecting
	StateConnected    = rpcclient.StateConnected
)

// Dial connects to the daemon described by cfg: TLS client certificate,
// request timeout and reconnection policy all come from the config file.
func Dial(cfg *config.Config) (*rpcclient.Client, error) {
	tlsCfg, err := cfg.ClientTLS()
	if err != nil {
		return nil, err
	}
	min, max := cfg.ReconnectDelays()
	opts := []rpcclient.Option{
		rpcclient.WithTLSConfig(tlsCfg),
		rpcclient.WithRequestTimeout(cfg.RequestTimeout()),
	}
	if cfg.Daemon.Reconnect {
		opts = append(opts, rpcclient.WithAutoReconnect(0, min, max))
	}
	return rpcclient.Connect(cfg.Daemon.URL, opts...)
}

// Connect establishes a connection with explicit options, for callers not
// using a config file.
func Connect(urlStr string, opts ...rpcclient.Option) (*rpcclient.Client, error) {
	return rpcclient.Connect(urlStr, opts...)
}

// NewWallet returns the wallet command API for a connection.
func NewWallet(c *rpcclient.Client) *services.WalletService { return services.NewWallet(c) }

// NewFullNode returns the full node command API for a connection.
func NewFullNode(c *rpcclient.Client) *services.FullNodeService { return services.NewFullNode(c) }

// NewFarmer returns the farmer command API for a connection.
func NewFarmer(c *rpcclient.Client) *services.FarmerService { return services.NewFarmer(c) }

// NewDaemon returns the daemon control API for a connection.
func NewDaemon(c *rpcclient.Client) *services.DaemonService { return services.NewDaemon(c) }
