package transport

import (
	"fmt"
	"sync"

	enet "github.com/codecat/go-enet"
)

// enetNetwork adapts github.com/codecat/go-enet, the reliable-UDP library
// the production build runs on.
type enetNetwork struct {
	mu     sync.Mutex
	closed bool
}

// NewENet initializes the ENet globals and returns the production network.
// Close deinitializes them; create at most one ENet network at a time.
func NewENet() Network {
	enet.Initialize()
	return &enetNetwork{}
}

func (n *enetNetwork) NewHost(opts Options) (Host, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, fmt.Errorf("enet network is closed")
	}

	var addr enet.Address
	if opts.Listen {
		addr = enet.NewListenAddress(opts.Port)
	}

	maxPeers := opts.MaxPeers
	if maxPeers < 1 {
		maxPeers = 1
	}
	channels := opts.ChannelCount
	if channels < 1 {
		channels = 1
	}

	h, err := enet.NewHost(addr, uint64(maxPeers), uint64(channels),
		opts.IncomingBandwidth, opts.OutgoingBandwidth)
	if err != nil {
		return nil, err
	}
	return &enetHost{host: h}, nil
}

func (n *enetNetwork) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.closed = true
		enet.Deinitialize()
	}
	return nil
}

type enetHost struct {
	host enet.Host
}

func (h *enetHost) Service(timeoutMS uint32) (Event, error) {
	ev := h.host.Service(timeoutMS)

	switch ev.GetType() {
	case enet.EventConnect:
		return Event{Type: EventConnect, Peer: enetPeer{ev.GetPeer()}}, nil

	case enet.EventDisconnect:
		return Event{Type: EventDisconnect, Peer: enetPeer{ev.GetPeer()}}, nil

	case enet.EventReceive:
		pkt := ev.GetPacket()
		// The packet buffer belongs to enet; copy before destroying it.
		data := make([]byte, len(pkt.GetData()))
		copy(data, pkt.GetData())
		pkt.Destroy()
		return Event{
			Type:    EventReceive,
			Peer:    enetPeer{ev.GetPeer()},
			Channel: ev.GetChannelID(),
			Data:    data,
		}, nil

	default:
		return Event{Type: EventNone}, nil
	}
}

func (h *enetHost) Connect(address string, port uint16, channelCount int) (Peer, error) {
	if channelCount < 1 {
		channelCount = 1
	}
	p, err := h.host.Connect(enet.NewAddress(address, port), channelCount, 0)
	if err != nil {
		return nil, err
	}
	return enetPeer{p}, nil
}

func (h *enetHost) Broadcast(data []byte, channel uint8, reliable bool) error {
	return h.host.BroadcastBytes(data, channel, packetFlags(reliable))
}

func (h *enetHost) Flush() {
	h.host.Flush()
}

func (h *enetHost) Destroy() {
	h.host.Destroy()
}

type enetPeer struct {
	peer enet.Peer
}

func (p enetPeer) Key() string {
	addr := p.peer.GetAddress()
	return fmt.Sprintf("%s:%d", addr.String(), addr.GetPort())
}

func (p enetPeer) Send(data []byte, channel uint8, reliable bool) error {
	return p.peer.SendBytes(data, channel, packetFlags(reliable))
}

func (p enetPeer) Disconnect(reason uint32) {
	p.peer.Disconnect(reason)
}

// packetFlags maps the reliable bit onto enet's packet flags. The zero flag
// set is enet's default unreliable-sequenced delivery.
func packetFlags(reliable bool) enet.PacketFlags {
	if reliable {
		return enet.PacketFlagReliable
	}
	return 0
}
