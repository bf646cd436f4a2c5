package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func startHub(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
}

// testClient registers a bare client with a custom buffer. The pumps
// are not started; tests read from send directly.
func testClient(t *testing.T, h *Hub, buffer int) *Client {
	t.Helper()
	c := &Client{id: "test", hub: h, send: make(chan []byte, buffer)}
	select {
	case h.register <- c:
	case <-time.After(time.Second):
		t.Fatal("register blocked; hub not running")
	}
	return c
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	h := New("test")
	startHub(t, h)
	a := testClient(t, h, 8)
	b := testClient(t, h, 8)
	waitFor(t, func() bool { return h.ClientCount() == 2 }, "clients not registered")

	if err := h.BroadcastJSON(map[string]string{"gesture": "jump"}); err != nil {
		t.Fatalf("BroadcastJSON() error: %v", err)
	}

	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.send:
			var got map[string]string
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("client received invalid JSON: %v", err)
			}
			if got["gesture"] != "jump" {
				t.Errorf("gesture = %q, want %q", got["gesture"], "jump")
			}
		case <-time.After(time.Second):
			t.Fatal("client did not receive broadcast")
		}
	}
}

func TestHub_SlowClientEvicted(t *testing.T) {
	h := New("test")
	startHub(t, h)
	slow := testClient(t, h, 1)
	waitFor(t, func() bool { return h.ClientCount() == 1 }, "client not registered")

	for i := 0; i < 3; i++ {
		h.Broadcast([]byte(`{}`))
	}

	waitFor(t, func() bool { return h.ClientCount() == 0 }, "slow client was not evicted")

	// The one buffered frame survives, then the closed channel shows.
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("send channel still open after eviction")
	}
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	h := New("test")
	startHub(t, h)
	c := testClient(t, h, 8)
	waitFor(t, func() bool { return h.ClientCount() == 1 }, "client not registered")

	h.unregister <- c
	waitFor(t, func() bool { return h.ClientCount() == 0 }, "client not unregistered")
	if _, ok := <-c.send; ok {
		t.Error("send channel still open after unregister")
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	c := testClient(t, h, 8)
	waitFor(t, func() bool { return h.ClientCount() == 1 }, "client not registered")

	cancel()
	waitFor(t, func() bool {
		select {
		case _, ok := <-c.send:
			return !ok
		default:
			return false
		}
	}, "client channel not closed on shutdown")
}
