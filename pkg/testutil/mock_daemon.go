// Package testutil provides common test utilities for the go-walletrpc
// library, chiefly a scriptable in-process daemon that clients can dial over
// a real WebSocket.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/bramblewood/go-walletrpc/pkg/wire"
)

// MockDaemon is a WebSocket server speaking the daemon envelope protocol.
// Register per-command handlers with Handle, or push unsolicited frames with
// SendEvent.
type MockDaemon struct {
	T      *testing.T
	Server *httptest.Server
	URL    string

	conn   *websocket.Conn
	connMu sync.Mutex

	handlersMu sync.Mutex
	handlers   map[string]func(env *wire.Envelope) *wire.Envelope

	// RawHandler, when set, receives every inbound frame and bypasses the
	// per-command handlers. Used for tests that need full control.
	RawHandler func(conn *websocket.Conn, md *MockDaemon)

	activeConn context.CancelFunc
}

// NewMockDaemon starts a mock daemon. It is shut down via t.Cleanup.
func NewMockDaemon(t *testing.T) *MockDaemon {
	t.Helper()
	md := &MockDaemon{
		T:        t,
		handlers: make(map[string]func(env *wire.Envelope) *wire.Envelope),
	}

	md.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connCtx, connCancel := context.WithCancel(context.Background())
		md.activeConn = connCancel

		wsconn, err := websocket.Accept(w, r, nil)
		if err != nil {
			md.T.Logf("MockDaemon: accept error: %v", err)
			connCancel()
			return
		}

		md.connMu.Lock()
		md.conn = wsconn
		md.connMu.Unlock()

		go func() {
			defer connCancel()
			if md.RawHandler != nil {
				md.RawHandler(wsconn, md)
				return
			}
			md.serve(connCtx, wsconn)
		}()

		<-connCtx.Done()
	}))

	md.URL = "ws" + md.Server.URL[4:]
	t.Cleanup(md.Close)
	return md
}

// serve reads frames and dispatches them to registered command handlers.
func (md *MockDaemon) serve(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		env, err := wire.Decode(data)
		if err != nil {
			md.T.Logf("MockDaemon: dropping malformed frame: %v", err)
			continue
		}

		md.handlersMu.Lock()
		handler := md.handlers[env.Command]
		md.handlersMu.Unlock()
		if handler == nil {
			md.T.Logf("MockDaemon: no handler for command %q", env.Command)
			continue
		}

		resp := handler(env)
		if resp != nil {
			md.Send(resp)
		}
	}
}

// Handle registers a handler for a command. The returned envelope, if any, is
// sent back with Ack and the request id filled in.
func (md *MockDaemon) Handle(command string, fn func(env *wire.Envelope) *wire.Envelope) {
	md.handlersMu.Lock()
	md.handlers[command] = fn
	md.handlersMu.Unlock()
}

// Respond builds a standard response envelope for a request.
func Respond(t *testing.T, req *wire.Envelope, payload interface{}) *wire.Envelope {
	t.Helper()
	env, err := wire.NewEvent(req.Destination, req.Command, payload)
	if err != nil {
		t.Fatalf("testutil: building response envelope: %v", err)
	}
	env.Ack = true
	env.RequestID = req.RequestID
	return env
}

// Connected reports whether a client connection is currently open.
func (md *MockDaemon) Connected() bool {
	md.connMu.Lock()
	defer md.connMu.Unlock()
	return md.conn != nil
}

// Send writes an envelope to the connected client.
func (md *MockDaemon) Send(env *wire.Envelope) error {
	md.connMu.Lock()
	defer md.connMu.Unlock()
	if md.conn == nil {
		return nil // no connection, silently ignore
	}
	data, err := wire.Encode(env)
	if err != nil {
		return err
	}
	return md.conn.Write(context.Background(), websocket.MessageText, data)
}

// SendEvent pushes an unsolicited frame to the client.
func (md *MockDaemon) SendEvent(origin, command string, payload interface{}) error {
	env, err := wire.NewEvent(origin, command, payload)
	if err != nil {
		return err
	}
	return md.Send(env)
}

// SendRaw writes arbitrary bytes to the client, for malformed-frame tests.
func (md *MockDaemon) SendRaw(data []byte) error {
	md.connMu.Lock()
	defer md.connMu.Unlock()
	if md.conn == nil {
		return nil
	}
	return md.conn.Write(context.Background(), websocket.MessageText, data)
}

// CloseCurrentConnection drops the active client connection without stopping
// the server, simulating a daemon restart.
func (md *MockDaemon) CloseCurrentConnection() {
	md.connMu.Lock()
	defer md.connMu.Unlock()
	if md.conn != nil {
		md.conn.Close(websocket.StatusGoingAway, "test closing connection")
		md.conn = nil
	}
	if md.activeConn != nil {
		md.activeConn()
		md.activeConn = nil
	}
}

// Close shuts the mock daemon down.
func (md *MockDaemon) Close() {
	md.CloseCurrentConnection()
	if md.Server != nil {
		md.Server.Close()
	}
}
