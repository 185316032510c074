package netcode

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func newTestHost(t *testing.T, port uint16, maxClients int) *Host {
	t.Helper()

	cfg := DefaultHostConfig()
	cfg.Port = port
	cfg.MaxClients = maxClients

	h, err := NewHost(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(h.Close)
	return h
}

func connectTestClient(t *testing.T, h *Host, port uint16) *Client {
	t.Helper()

	c, err := NewClient(DefaultConnectConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)

	if err := c.ConnectBlocking("127.0.0.1", port, 2, 2000); err != nil {
		t.Fatal(err)
	}
	hostServiceUntil(t, h, HostEventPeerConnected)
	return c
}

// hostServiceUntil services h until the wanted event shows up as the last
// event of a drain, or the deadline passes.
func hostServiceUntil(t *testing.T, h *Host, want HostEvent) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.Service(10) == want {
			return
		}
	}
	t.Fatalf("no %v event before deadline", want)
}

func TestHostPortInUse(t *testing.T) {
	initMemory(t)
	newTestHost(t, 15610, 4)

	cfg := DefaultHostConfig()
	cfg.Port = 15610
	if _, err := NewHost(cfg); !errors.Is(err, ErrHostCreation) {
		t.Fatalf("expected ErrHostCreation, got %v", err)
	}
}

func TestHostAccessors(t *testing.T) {
	initMemory(t)
	h := newTestHost(t, 15611, 4)

	if h.Port() != 15611 {
		t.Fatalf("got port %d, want 15611", h.Port())
	}
	if h.MaxPeers() != 4 {
		t.Fatalf("got max peers %d, want 4", h.MaxPeers())
	}
	if h.PeerCount() != 0 || h.HasPackets() || h.PacketCount() != 0 {
		t.Fatal("fresh host is not empty")
	}
	if h.LastEvent() != HostEventNone {
		t.Fatalf("got last event %v, want none", h.LastEvent())
	}
}

func TestHostServiceNonBlocking(t *testing.T) {
	initMemory(t)
	h := newTestHost(t, 15612, 4)

	start := time.Now()
	ev := h.Service(0)
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Service(0) blocked for %v", elapsed)
	}
	if ev != HostEventNone {
		t.Fatalf("got event %v, want none", ev)
	}
}

func TestHostBroadcastNoPeers(t *testing.T) {
	initMemory(t)
	h := newTestHost(t, 15613, 4)

	if err := h.Broadcast(0, []byte("lobby"), true); err != nil {
		t.Fatalf("broadcast with zero peers failed: %v", err)
	}
	h.Flush()
}

func TestHostReceiveFIFO(t *testing.T) {
	initMemory(t)
	h := newTestHost(t, 15614, 4)
	c := connectTestClient(t, h, 15614)

	payloads := []string{"alpha", "bravo", "charlie", "delta"}
	for i, msg := range payloads {
		if err := c.Send(uint8(i%2), []byte(msg), i%2 == 0); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.PacketCount() < len(payloads) && time.Now().Before(deadline) {
		h.Service(10)
	}
	if h.PacketCount() != len(payloads) {
		t.Fatalf("got %d queued packets, want %d", h.PacketCount(), len(payloads))
	}

	for i, want := range payloads {
		pkt, ok := h.Receive()
		if !ok {
			t.Fatalf("queue ran dry at %d", i)
		}
		if string(pkt.Data) != want {
			t.Fatalf("packet %d: got %q, want %q", i, pkt.Data, want)
		}
		if pkt.Channel != uint8(i%2) {
			t.Fatalf("packet %d: got channel %d, want %d", i, pkt.Channel, i%2)
		}
		if pkt.PeerIndex != 0 {
			t.Fatalf("packet %d: got peer %d, want 0", i, pkt.PeerIndex)
		}
	}
	if _, ok := h.Receive(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestHostPeerIndexAssignmentAndReuse(t *testing.T) {
	initMemory(t)
	h := newTestHost(t, 15615, 4)

	c1 := connectTestClient(t, h, 15615)
	if h.LastPeerIndex() != 0 {
		t.Fatalf("first peer got index %d, want 0", h.LastPeerIndex())
	}

	connectTestClient(t, h, 15615)
	if h.LastPeerIndex() != 1 {
		t.Fatalf("second peer got index %d, want 1", h.LastPeerIndex())
	}
	if h.PeerCount() != 2 {
		t.Fatalf("got peer count %d, want 2", h.PeerCount())
	}

	c1.Disconnect()
	hostServiceUntil(t, h, HostEventPeerDisconnected)
	if h.LastPeerIndex() != 0 {
		t.Fatalf("disconnect reported index %d, want 0", h.LastPeerIndex())
	}
	if h.PeerCount() != 1 {
		t.Fatalf("got peer count %d, want 1", h.PeerCount())
	}

	// The freed slot is handed to the next connect.
	connectTestClient(t, h, 15615)
	if h.LastPeerIndex() != 0 {
		t.Fatalf("reconnect got index %d, want reused 0", h.LastPeerIndex())
	}

	indices := h.PeerIndices()
	if len(indices) != 2 || indices[0] != 0 || indices[1] != 1 {
		t.Fatalf("got indices %v, want [0 1]", indices)
	}
}

func TestHostBroadcastReachesAllPeers(t *testing.T) {
	initMemory(t)
	h := newTestHost(t, 15616, 4)

	c1 := connectTestClient(t, h, 15616)
	c2 := connectTestClient(t, h, 15616)

	if err := h.Broadcast(1, []byte("tick"), false); err != nil {
		t.Fatal(err)
	}

	for _, c := range []*Client{c1, c2} {
		deadline := time.Now().Add(2 * time.Second)
		for !c.HasPackets() && time.Now().Before(deadline) {
			c.Service(10)
		}
		data, ok := c.Receive()
		if !ok || !bytes.Equal(data, []byte("tick")) {
			t.Fatalf("got %q, want %q", data, "tick")
		}
		if c.LastChannel() != 1 {
			t.Fatalf("got channel %d, want 1", c.LastChannel())
		}
	}
}

func TestHostNilSafety(t *testing.T) {
	var h *Host

	if h.Service(0) != HostEventNone {
		t.Fatal("nil Service must report none")
	}
	if _, ok := h.Receive(); ok {
		t.Fatal("nil Receive must report empty")
	}
	if err := h.Broadcast(0, []byte("x"), true); err == nil {
		t.Fatal("nil Broadcast must fail")
	}
	if h.PeerCount() != 0 || h.MaxPeers() != 0 || h.Port() != 0 {
		t.Fatal("nil accessors must return zero")
	}
	if h.HasPackets() || h.PacketCount() != 0 {
		t.Fatal("nil queue accessors must return zero")
	}
	if h.LastEvent() != HostEventNone || h.LastPeerIndex() != 0 {
		t.Fatal("nil event accessors must return zero")
	}
	if h.PeerIndices() != nil {
		t.Fatal("nil PeerIndices must return nil")
	}
	h.Flush()
	h.Close()
}

func TestHostCloseIdempotent(t *testing.T) {
	initMemory(t)
	h := newTestHost(t, 15617, 4)

	h.Close()
	h.Close()

	if h.Service(0) != HostEventNone {
		t.Fatal("closed host must report no events")
	}
	if err := h.Broadcast(0, []byte("x"), true); err == nil {
		t.Fatal("closed host must refuse broadcasts")
	}
}
