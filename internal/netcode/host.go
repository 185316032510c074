package netcode

import (
	"fmt"
	"log/slog"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/skirmish-engine/netplay/internal/transport"
)

// HostEvent is the integer event code returned by Host.Service.
type HostEvent int

const (
	HostEventNone             HostEvent = 0
	HostEventPeerConnected    HostEvent = 1
	HostEventPeerDisconnected HostEvent = 2
	HostEventPacketReceived   HostEvent = 3
)

func (e HostEvent) String() string {
	switch e {
	case HostEventNone:
		return "none"
	case HostEventPeerConnected:
		return "peer_connected"
	case HostEventPeerDisconnected:
		return "peer_disconnected"
	case HostEventPacketReceived:
		return "packet_received"
	default:
		return "unknown"
	}
}

// HostConfig configures a Host. It is copied at construction time and never
// mutated afterwards.
type HostConfig struct {
	// Port to bind (default 5555).
	Port uint16
	// MaxClients caps concurrent peers (default 8).
	MaxClients int
	// ChannelCount is the number of delivery streams per connection
	// (default 2: channel 0 reliable, channel 1 unreliable by convention).
	ChannelCount int
	// Bandwidth caps in bytes/second, 0 = unlimited.
	IncomingBandwidth uint32
	OutgoingBandwidth uint32
	// Logger for connection and service diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// DefaultHostConfig returns the conventional session settings.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		Port:         5555,
		MaxClients:   8,
		ChannelCount: 2,
	}
}

// ReceivedPacket is a packet popped from the host's receive queue, with the
// identity of the peer that sent it. The caller owns Data after Receive.
type ReceivedPacket struct {
	PeerIndex uint32
	Channel   uint8
	Data      []byte
}

// Host is the server side of a session: it accepts inbound connections,
// assigns each a stable small-integer identity, queues received packets in
// arrival order and broadcasts to everyone connected.
//
// Host is single-owner; see the package comment for the threading contract.
type Host struct {
	th     transport.Host
	logger *slog.Logger

	queue    []ReceivedPacket
	indices  map[string]uint32 // transport peer key -> peer index
	maxPeers int
	port     uint16

	lastEvent     HostEvent
	lastPeerIndex uint32

	closed bool
}

// NewHost binds the configured port and starts accepting connections.
// Requires Init to have run. Binding failures (port in use, privileges)
// are reported as ErrHostCreation with the transport detail attached.
func NewHost(cfg HostConfig) (*Host, error) {
	n, err := requireInitialized()
	if err != nil {
		return nil, err
	}

	if cfg.MaxClients < 1 {
		cfg.MaxClients = 1
	}
	if cfg.ChannelCount < 1 {
		cfg.ChannelCount = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	th, err := n.NewHost(transport.Options{
		Listen:            true,
		Port:              cfg.Port,
		MaxPeers:          cfg.MaxClients,
		ChannelCount:      cfg.ChannelCount,
		IncomingBandwidth: cfg.IncomingBandwidth,
		OutgoingBandwidth: cfg.OutgoingBandwidth,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostCreation, err)
	}

	logger.Info("Network host created",
		slog.Int("port", int(cfg.Port)),
		slog.Int("max_clients", cfg.MaxClients))

	return &Host{
		th:       th,
		logger:   logger,
		indices:  make(map[string]uint32),
		maxPeers: cfg.MaxClients,
		port:     cfg.Port,
	}, nil
}

// Service drains every pending transport event: new connections are assigned
// a peer index, disconnects release theirs, and received packets are appended
// to the queue. The return value is the last event seen during the drain
// (HostEventNone if nothing was pending). A zero timeout never blocks; a
// positive timeout waits up to that many milliseconds for the first event.
//
// Transport-level errors are logged and treated as "no event this call" so a
// single anomalous event can't kill the service loop.
func (h *Host) Service(timeoutMS uint32) HostEvent {
	if h == nil || h.closed {
		return HostEventNone
	}

	h.lastEvent = HostEventNone

	wait := timeoutMS
	for {
		ev, err := h.th.Service(wait)
		if err != nil {
			h.logger.Error("Host service error", slog.Any("err", err))
			break
		}
		wait = 0

		switch ev.Type {
		case transport.EventConnect:
			idx, ok := h.allocIndex(ev.Peer.Key())
			if !ok {
				h.logger.Warn("Peer table full, dropping connect event",
					slog.String("peer_key", ev.Peer.Key()))
				continue
			}
			h.lastEvent = HostEventPeerConnected
			h.lastPeerIndex = idx
			h.logger.Info("Peer connected", slog.Uint64("peer", uint64(idx)))

		case transport.EventDisconnect:
			idx := h.releaseIndex(ev.Peer.Key())
			h.lastEvent = HostEventPeerDisconnected
			h.lastPeerIndex = idx
			h.logger.Info("Peer disconnected", slog.Uint64("peer", uint64(idx)))

		case transport.EventReceive:
			idx := h.lookupIndex(ev.Peer.Key())
			h.queue = append(h.queue, ReceivedPacket{
				PeerIndex: idx,
				Channel:   ev.Channel,
				Data:      ev.Data,
			})
			h.lastEvent = HostEventPacketReceived
			h.lastPeerIndex = idx

		default:
			return h.lastEvent
		}
	}

	return h.lastEvent
}

// Receive pops the oldest queued packet. Queue order is strict FIFO across
// all peers and channels combined.
func (h *Host) Receive() (ReceivedPacket, bool) {
	if h == nil || len(h.queue) == 0 {
		return ReceivedPacket{}, false
	}
	pkt := h.queue[0]
	h.queue = h.queue[1:]
	return pkt, true
}

// Broadcast queues data for delivery to every connected peer. Broadcasting
// with zero peers connected is a successful no-op.
func (h *Host) Broadcast(channel uint8, data []byte, reliable bool) error {
	if h == nil || h.closed {
		return ErrDisconnected
	}
	if err := h.th.Broadcast(data, channel, reliable); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Flush forces transmission of anything queued by prior broadcasts instead
// of waiting for the next Service tick.
func (h *Host) Flush() {
	if h == nil || h.closed {
		return
	}
	h.th.Flush()
}

// HasPackets reports whether Receive would return a packet.
func (h *Host) HasPackets() bool {
	return h != nil && len(h.queue) > 0
}

// PacketCount returns the number of queued packets.
func (h *Host) PacketCount() int {
	if h == nil {
		return 0
	}
	return len(h.queue)
}

// PeerCount returns the number of currently connected peers.
func (h *Host) PeerCount() int {
	if h == nil {
		return 0
	}
	return len(h.indices)
}

// MaxPeers returns the configured connection cap.
func (h *Host) MaxPeers() int {
	if h == nil {
		return 0
	}
	return h.maxPeers
}

// Port returns the bound port.
func (h *Host) Port() uint16 {
	if h == nil {
		return 0
	}
	return h.port
}

// LastEvent returns the event code from the most recent Service call.
func (h *Host) LastEvent() HostEvent {
	if h == nil {
		return HostEventNone
	}
	return h.lastEvent
}

// LastPeerIndex returns the peer index from the most recent connect,
// disconnect or receive handled by Service.
func (h *Host) LastPeerIndex() uint32 {
	if h == nil {
		return 0
	}
	return h.lastPeerIndex
}

// PeerIndices returns a sorted snapshot of the currently assigned peer
// identities.
func (h *Host) PeerIndices() []uint32 {
	if h == nil {
		return nil
	}
	indices := maps.Values(h.indices)
	slices.Sort(indices)
	return indices
}

// Close releases the bound port and drops all queued packets. Idempotent.
// Peer indices and packets produced by this host are invalid afterwards.
func (h *Host) Close() {
	if h == nil || h.closed {
		return
	}
	h.closed = true
	h.th.Destroy()
	h.queue = nil
	h.indices = make(map[string]uint32)
	h.logger.Info("Network host closed", slog.Int("port", int(h.port)))
}

// allocIndex assigns the lowest free identity in [0, maxPeers) to the peer
// key, so a slot freed by a disconnect is reused by the next connect.
func (h *Host) allocIndex(key string) (uint32, bool) {
	if idx, ok := h.indices[key]; ok {
		return idx, true
	}

	taken := make(map[uint32]bool, len(h.indices))
	for _, idx := range h.indices {
		taken[idx] = true
	}
	for i := 0; i < h.maxPeers; i++ {
		if !taken[uint32(i)] {
			h.indices[key] = uint32(i)
			return uint32(i), true
		}
	}
	return 0, false
}

func (h *Host) releaseIndex(key string) uint32 {
	idx, ok := h.indices[key]
	if !ok {
		return 0
	}
	delete(h.indices, key)
	return idx
}

func (h *Host) lookupIndex(key string) uint32 {
	return h.indices[key]
}
