package rpcclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/bramblewood/go-walletrpc/pkg/rpcclient"
	"github.com/bramblewood/go-walletrpc/pkg/testutil"
	"github.com/bramblewood/go-walletrpc/pkg/wire"
)

func TestEventDelivery(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	cli := newTestClient(t, md.URL)
	defer cli.Close()

	events, unsubscribe := cli.Subscribe("wallet", "coin_added")
	defer unsubscribe()

	if err := testutil.WaitFor(t, "daemon sees connection", 2*time.Second, md.Connected); err != nil {
		t.Fatal(err)
	}
	if err := md.SendEvent("wallet", "coin_added", map[string]interface{}{"wallet_id": 1}); err != nil {
		t.Fatalf("sending event: %v", err)
	}

	select {
	case env := <-events:
		if env.Origin != "wallet" || env.Command != "coin_added" {
			t.Errorf("event routed as %s/%s, want wallet/coin_added", env.Origin, env.Command)
		}
		var data struct {
			WalletID uint32 `json:"wallet_id"`
		}
		if err := env.DecodeData(&data); err != nil {
			t.Fatalf("decoding event data: %v", err)
		}
		if data.WalletID != 1 {
			t.Errorf("wallet_id = %d, want 1", data.WalletID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestEventWildcardSubscription(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	cli := newTestClient(t, md.URL)
	defer cli.Close()

	events, unsubscribe := cli.Subscribe("wallet", rpcclient.EventWildcard)
	defer unsubscribe()

	if err := testutil.WaitFor(t, "daemon sees connection", 2*time.Second, md.Connected); err != nil {
		t.Fatal(err)
	}
	for _, command := range []string{"sync_changed", "coin_added"} {
		if err := md.SendEvent("wallet", command, nil); err != nil {
			t.Fatalf("sending %s: %v", command, err)
		}
	}

	got := map[string]bool{}
	for len(got) < 2 {
		select {
		case env := <-events:
			got[env.Command] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("wildcard subscriber saw %v, want both events", got)
		}
	}
}

func TestEventsInterleaveWithPendingRequest(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	md.Handle("get_sync_status", func(env *wire.Envelope) *wire.Envelope {
		// Push an event before answering; the pending request must be
		// untouched by the event path.
		md.SendEvent("wallet", "sync_changed", nil)
		return testutil.Respond(t, env, map[string]interface{}{"success": true, "synced": true})
	})

	cli := newTestClient(t, md.URL)
	defer cli.Close()

	events, unsubscribe := cli.Subscribe("wallet", "sync_changed")
	defer unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cli.Request(ctx, "wallet", "get_sync_status", nil); err != nil {
		t.Fatalf("request: %v", err)
	}

	select {
	case env := <-events:
		if env.Command != "sync_changed" {
			t.Errorf("event command = %q", env.Command)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered alongside the response")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	md := testutil.NewMockDaemon(t)
	cli := newTestClient(t, md.URL)
	defer cli.Close()

	events, unsubscribe := cli.Subscribe("wallet", "coin_added")
	unsubscribe()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("received event on unsubscribed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}
