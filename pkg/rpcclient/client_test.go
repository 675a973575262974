package rpcclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/bramblewood/go-walletrpc/pkg/rpcclient"
	"github.com/bramblewood/go-walletrpc/pkg/testutil"
	"github.com/bramblewood/go-walletrpc/pkg/wire"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

func newTestClient(t *testing.T, urlStr string, opts ...rpcclient.Option) *rpcclient.Client {
	t.Helper()
	finalOpts := append([]rpcclient.Option{rpcclient.WithLogger(testLogger)}, opts...)
	c, err := rpcclient.Connect(urlStr, finalOpts...)
	if err != nil {
		t.Fatalf("Failed to connect client: %v", err)
	}
	return c
}

func TestRequestResponse(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	md.Handle("get_wallet_balance", func(env *wire.Envelope) *wire.Envelope {
		if env.Destination != "wallet" {
			t.Errorf("destination = %q, want wallet", env.Destination)
		}
		var req struct {
			WalletID uint32 `json:"wallet_id"`
		}
		if err := env.DecodeData(&req); err != nil {
			t.Errorf("decoding request data: %v", err)
		}
		if req.WalletID != 1 {
			t.Errorf("wallet_id = %d, want 1", req.WalletID)
		}
		return testutil.Respond(t, env, map[string]interface{}{
			"success": true,
			"wallet_balance": map[string]interface{}{
				"confirmed_wallet_balance": uint64(1000000000000),
			},
		})
	})

	cli := newTestClient(t, md.URL)
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := cli.Request(ctx, "wallet", "get_wallet_balance", map[string]interface{}{"wallet_id": 1})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	var resp struct {
		WalletBalance struct {
			ConfirmedWalletBalance uint64 `json:"confirmed_wallet_balance"`
		} `json:"wallet_balance"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.WalletBalance.ConfirmedWalletBalance != 1000000000000 {
		t.Errorf("confirmed balance = %d, want 1000000000000", resp.WalletBalance.ConfirmedWalletBalance)
	}
}

func TestDaemonReportedError(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	md.Handle("get_wallet_balance", func(env *wire.Envelope) *wire.Envelope {
		return testutil.Respond(t, env, map[string]interface{}{
			"success": false,
			"error":   "not_initialized",
		})
	})

	cli := newTestClient(t, md.URL)
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := cli.Request(ctx, "wallet", "get_wallet_balance", map[string]interface{}{"wallet_id": 1})
	var rpcErr *rpcclient.RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("got %v, want *RPCError", err)
	}
	if rpcErr.Message != "not_initialized" {
		t.Errorf("daemon message = %q, want not_initialized", rpcErr.Message)
	}
	if rpcErr.Command != "get_wallet_balance" || rpcErr.Destination != "wallet" {
		t.Errorf("error names %s/%s, want wallet/get_wallet_balance", rpcErr.Destination, rpcErr.Command)
	}
}

func TestDisconnectMidFlight(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	md.RawHandler = func(conn *websocket.Conn, d *testutil.MockDaemon) {
		// Swallow the first request and drop the connection instead of
		// answering.
		if _, _, err := conn.Read(context.Background()); err != nil {
			return
		}
		d.CloseCurrentConnection()
	}

	cli := newTestClient(t, md.URL)
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := cli.Request(ctx, "wallet", "get_wallets", nil)
	if !errors.Is(err, rpcclient.ErrConnectionLost) {
		t.Fatalf("got %v, want ErrConnectionLost", err)
	}
}

func TestOutOfOrderResponses(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	md.RawHandler = func(conn *websocket.Conn, d *testutil.MockDaemon) {
		ctx := context.Background()
		var reqs []*wire.Envelope
		for len(reqs) < 2 {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			env, err := wire.Decode(data)
			if err != nil {
				continue
			}
			reqs = append(reqs, env)
		}
		// Answer in reverse arrival order; correlation must still hold.
		for i := len(reqs) - 1; i >= 0; i-- {
			d.Send(testutil.Respond(t, reqs[i], map[string]interface{}{
				"success": true,
				"echo":    reqs[i].Command,
			}))
		}
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}

	cli := newTestClient(t, md.URL)
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for _, command := range []string{"get_sync_status", "get_height_info"} {
		wg.Add(1)
		go func(command string) {
			defer wg.Done()
			raw, err := cli.Request(ctx, "wallet", command, nil)
			if err != nil {
				t.Errorf("%s: %v", command, err)
				return
			}
			var resp struct {
				Echo string `json:"echo"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				t.Errorf("%s: unmarshal: %v", command, err)
				return
			}
			if resp.Echo != command {
				t.Errorf("response for %s carried echo %q", command, resp.Echo)
			}
		}(command)
	}
	wg.Wait()
}

func TestDuplicateResponseIsNoOp(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	md.Handle("get_height_info", func(env *wire.Envelope) *wire.Envelope {
		resp := testutil.Respond(t, env, map[string]interface{}{"success": true, "height": 42})
		md.Send(resp) // duplicate frame for the same request id
		return resp
	})

	cli := newTestClient(t, md.URL)
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := cli.Request(ctx, "wallet", "get_height_info", nil); err != nil {
		t.Fatalf("first request: %v", err)
	}
	// The duplicate must not corrupt the table: a fresh request still works.
	if _, err := cli.Request(ctx, "wallet", "get_height_info", nil); err != nil {
		t.Fatalf("request after duplicate frame: %v", err)
	}
}

func TestConcurrentConnectSingleDial(t *testing.T) {
	var dials int32
	md := testutil.NewMockDaemon(t)
	md.RawHandler = func(conn *websocket.Conn, d *testutil.MockDaemon) {
		atomic.AddInt32(&dials, 1)
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
		}
	}

	cli := rpcclient.New(md.URL, rpcclient.WithLogger(testLogger))
	defer cli.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cli.Connect(context.Background()); err != nil {
				t.Errorf("Connect: %v", err)
			}
		}()
	}
	wg.Wait()

	time.Sleep(200 * time.Millisecond)
	if n := atomic.LoadInt32(&dials); n != 1 {
		t.Errorf("server saw %d connection attempts, want 1", n)
	}
	if cli.State() != rpcclient.StateConnected {
		t.Errorf("state = %v, want connected", cli.State())
	}
}

func TestRequestWhileDisconnected(t *testing.T) {
	cli := rpcclient.New("ws://127.0.0.1:0", rpcclient.WithLogger(testLogger))
	defer cli.Close()

	_, err := cli.Request(context.Background(), "wallet", "get_wallets", nil)
	if !errors.Is(err, rpcclient.ErrNotConnected) {
		t.Fatalf("got %v, want ErrNotConnected", err)
	}
}

func TestRequestTimeout(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	// No handler registered: the daemon never answers.

	cli := newTestClient(t, md.URL, rpcclient.WithRequestTimeout(150*time.Millisecond))
	defer cli.Close()

	_, err := cli.Request(context.Background(), "wallet", "get_wallets", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want deadline exceeded", err)
	}
}

func TestRequestCancellation(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	// No handler registered: the daemon never answers.

	cli := newTestClient(t, md.URL, rpcclient.WithRequestTimeout(0))
	defer cli.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := cli.Request(ctx, "wallet", "get_wallets", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context canceled", err)
	}
}

func TestMalformedFrameDoesNotKillConnection(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	md.Handle("get_height_info", func(env *wire.Envelope) *wire.Envelope {
		return testutil.Respond(t, env, map[string]interface{}{"success": true, "height": 7})
	})

	cli := newTestClient(t, md.URL)
	defer cli.Close()

	if err := testutil.WaitFor(t, "daemon sees connection", 2*time.Second, md.Connected); err != nil {
		t.Fatal(err)
	}
	if err := md.SendRaw([]byte("{this is not json")); err != nil {
		t.Fatalf("sending malformed frame: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cli.Request(ctx, "wallet", "get_height_info", nil); err != nil {
		t.Fatalf("request after malformed frame: %v", err)
	}
}

func TestCloseSettlesPending(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	// No handler registered: the request hangs until the client closes.

	cli := newTestClient(t, md.URL, rpcclient.WithRequestTimeout(0))

	errCh := make(chan error, 1)
	go func() {
		_, err := cli.Request(context.Background(), "wallet", "get_wallets", nil)
		errCh <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cli.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, rpcclient.ErrConnectionLost) {
			t.Fatalf("got %v, want ErrConnectionLost", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("request did not settle after Close")
	}
}

func TestAutoReconnect(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping in short mode")
	}
	var attempts int32
	md := testutil.NewMockDaemon(t)
	md.RawHandler = func(conn *websocket.Conn, d *testutil.MockDaemon) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			// Drop the first connection to trigger the reconnect loop.
			time.Sleep(100 * time.Millisecond)
			d.CloseCurrentConnection()
			return
		}
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			env, err := wire.Decode(data)
			if err != nil {
				continue
			}
			if env.Command == "get_height_info" {
				d.Send(testutil.Respond(t, env, map[string]interface{}{"success": true, "height": 7}))
			}
		}
	}

	cli := newTestClient(t, md.URL,
		rpcclient.WithAutoReconnect(5, 50*time.Millisecond, 200*time.Millisecond))
	defer cli.Close()

	err := testutil.WaitFor(t, "client reconnected", 5*time.Second, func() bool {
		return atomic.LoadInt32(&attempts) >= 2 && cli.State() == rpcclient.StateConnected
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	raw, err := cli.Request(ctx, "wallet", "get_height_info", nil)
	if err != nil {
		t.Fatalf("request after reconnect: %v", err)
	}
	var resp struct {
		Height uint32 `json:"height"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Height != 7 {
		t.Errorf("height = %d, want 7", resp.Height)
	}
}
