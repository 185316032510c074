package transport

import (
	"bytes"
	"testing"
	"time"
)

func newListener(t *testing.T, n Network, port uint16, maxPeers int) Host {
	t.Helper()

	h, err := n.NewHost(Options{Listen: true, Port: port, MaxPeers: maxPeers, ChannelCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Destroy)
	return h
}

func newDialer(t *testing.T, n Network) Host {
	t.Helper()

	h, err := n.NewHost(Options{MaxPeers: 1, ChannelCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Destroy)
	return h
}

// serviceUntil polls h until an event of the wanted type shows up or the
// deadline passes.
func serviceUntil(t *testing.T, h Host, want EventType) Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev, err := h.Service(10)
		if err != nil {
			t.Fatal(err)
		}
		if ev.Type == want {
			return ev
		}
	}
	t.Fatalf("no %v event before deadline", want)
	return Event{}
}

func TestMemoryListenConflict(t *testing.T) {
	n := NewMemory()
	newListener(t, n, 15701, 4)

	if _, err := n.NewHost(Options{Listen: true, Port: 15701, MaxPeers: 4, ChannelCount: 2}); err == nil {
		t.Fatal("expected bind conflict on port 15701")
	}
}

func TestMemoryConnectAndExchange(t *testing.T) {
	n := NewMemory()
	server := newListener(t, n, 15702, 4)
	client := newDialer(t, n)

	peer, err := client.Connect("127.0.0.1", 15702, 2)
	if err != nil {
		t.Fatal(err)
	}

	serviceUntil(t, client, EventConnect)
	sev := serviceUntil(t, server, EventConnect)

	if err := peer.Send([]byte("ping"), 0, true); err != nil {
		t.Fatal(err)
	}
	rev := serviceUntil(t, server, EventReceive)
	if !bytes.Equal(rev.Data, []byte("ping")) {
		t.Fatalf("got %q, want %q", rev.Data, "ping")
	}
	if rev.Channel != 0 {
		t.Fatalf("got channel %d, want 0", rev.Channel)
	}
	if rev.Peer.Key() != sev.Peer.Key() {
		t.Fatalf("receive peer key %q != connect peer key %q", rev.Peer.Key(), sev.Peer.Key())
	}

	// And back, via broadcast.
	if err := server.Broadcast([]byte("pong"), 1, false); err != nil {
		t.Fatal(err)
	}
	rev = serviceUntil(t, client, EventReceive)
	if !bytes.Equal(rev.Data, []byte("pong")) || rev.Channel != 1 {
		t.Fatalf("got %q on channel %d, want %q on 1", rev.Data, rev.Channel, "pong")
	}
}

func TestMemoryReceiveOrder(t *testing.T) {
	n := NewMemory()
	server := newListener(t, n, 15703, 4)
	client := newDialer(t, n)

	peer, err := client.Connect("127.0.0.1", 15703, 2)
	if err != nil {
		t.Fatal(err)
	}
	serviceUntil(t, client, EventConnect)
	serviceUntil(t, server, EventConnect)

	for _, msg := range []string{"one", "two", "three"} {
		if err := peer.Send([]byte(msg), 0, true); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range []string{"one", "two", "three"} {
		ev := serviceUntil(t, server, EventReceive)
		if string(ev.Data) != want {
			t.Fatalf("got %q, want %q", ev.Data, want)
		}
	}
}

func TestMemoryConnectNobodyListening(t *testing.T) {
	n := NewMemory()
	client := newDialer(t, n)

	if _, err := client.Connect("127.0.0.1", 15999, 2); err != nil {
		t.Fatal(err)
	}

	// The attempt must stay pending: no event, and a positive timeout has to
	// return in bounded time.
	start := time.Now()
	ev, err := client.Service(50)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventNone {
		t.Fatalf("got event %v, want none", ev.Type)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("service blocked for %v", elapsed)
	}
}

func TestMemoryRefusesWhenFull(t *testing.T) {
	n := NewMemory()
	newListener(t, n, 15704, 1)

	first := newDialer(t, n)
	if _, err := first.Connect("127.0.0.1", 15704, 2); err != nil {
		t.Fatal(err)
	}
	serviceUntil(t, first, EventConnect)

	second := newDialer(t, n)
	if _, err := second.Connect("127.0.0.1", 15704, 2); err != nil {
		t.Fatal(err)
	}
	serviceUntil(t, second, EventDisconnect)
}

func TestMemoryDisconnectReachesBothSides(t *testing.T) {
	n := NewMemory()
	server := newListener(t, n, 15705, 4)
	client := newDialer(t, n)

	peer, err := client.Connect("127.0.0.1", 15705, 2)
	if err != nil {
		t.Fatal(err)
	}
	serviceUntil(t, client, EventConnect)
	serviceUntil(t, server, EventConnect)

	peer.Disconnect(0)
	serviceUntil(t, client, EventDisconnect)
	serviceUntil(t, server, EventDisconnect)
}
