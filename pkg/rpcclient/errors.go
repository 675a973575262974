package rpcclient

import (
	"errors"
	"fmt"
)

var (
	// ErrClientClosed is returned for operations on a permanently closed client.
	ErrClientClosed = errors.New("walletrpc: client is closed")

	// ErrNotConnected is returned when a request is issued while the client is
	// disconnected. Requests are never queued; callers decide whether to retry
	// once the connection is back.
	ErrNotConnected = errors.New("walletrpc: not connected to daemon")

	// ErrConnectionLost is the settlement for every request still pending when
	// the transport closes. No response will ever arrive for those requests.
	ErrConnectionLost = errors.New("walletrpc: connection to daemon lost")
)

// RPCError is a failure the daemon explicitly reported for a specific request
// (a response whose data carries success=false). The message is the daemon's
// own and is suitable for direct display.
type RPCError struct {
	Destination string
	Command     string
	Message     string
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("walletrpc: %s/%s failed", e.Destination, e.Command)
	}
	return fmt.Sprintf("walletrpc: %s/%s failed: %s", e.Destination, e.Command, e.Message)
}
