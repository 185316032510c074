package transport

import (
	"fmt"
	"sync"
	"time"
)

// memNetwork is an in-process loopback network for tests and offline play.
// Hosts created from the same memNetwork can reach each other by port; the
// address string is ignored. Delivery is immediate and loss-free.
type memNetwork struct {
	mu        sync.Mutex
	listeners map[uint16]*memHost
	nextPort  uint16
	nextConn  int
	closed    bool
}

// NewMemory creates an in-process loopback Network.
func NewMemory() Network {
	return &memNetwork{
		listeners: make(map[uint16]*memHost),
		nextPort:  49152,
	}
}

func (n *memNetwork) NewHost(opts Options) (Host, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, fmt.Errorf("memory network is closed")
	}

	h := &memHost{
		net:    n,
		opts:   opts,
		events: make(chan Event, 1024),
		peers:  make(map[string]*memPeer),
	}

	if opts.Listen {
		port := opts.Port
		if port == 0 {
			for n.listeners[n.nextPort] != nil {
				n.nextPort++
			}
			port = n.nextPort
			n.nextPort++
		}
		if n.listeners[port] != nil {
			return nil, fmt.Errorf("bind port %d: address already in use", port)
		}
		h.port = port
		n.listeners[port] = h
	}

	return h, nil
}

func (n *memNetwork) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.listeners = make(map[uint16]*memHost)
	return nil
}

func (n *memNetwork) connKey() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextConn++
	return fmt.Sprintf("mem-conn-%d", n.nextConn)
}

type memHost struct {
	net    *memNetwork
	opts   Options
	port   uint16
	events chan Event

	mu        sync.Mutex
	peers     map[string]*memPeer // established connections by peer key
	destroyed bool
}

// memPeer is one end of an established (or pending) loopback connection.
// owner is the host this peer handle belongs to; remote is the other side's
// matching handle.
type memPeer struct {
	key    string
	owner  *memHost
	mu     sync.Mutex
	remote *memPeer
	closed bool
}

func (h *memHost) Service(timeoutMS uint32) (Event, error) {
	h.mu.Lock()
	destroyed := h.destroyed
	h.mu.Unlock()
	if destroyed {
		return Event{Type: EventNone}, fmt.Errorf("host is destroyed")
	}

	if timeoutMS == 0 {
		select {
		case ev := <-h.events:
			return ev, nil
		default:
			return Event{Type: EventNone}, nil
		}
	}

	timer := time.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
	defer timer.Stop()
	select {
	case ev := <-h.events:
		return ev, nil
	case <-timer.C:
		return Event{Type: EventNone}, nil
	}
}

func (h *memHost) Connect(address string, port uint16, channelCount int) (Peer, error) {
	h.net.mu.Lock()
	target := h.net.listeners[port]
	h.net.mu.Unlock()

	key := h.net.connKey()
	local := &memPeer{key: key + "/out", owner: h}

	if target == nil || target == h {
		// Nobody is listening; the attempt stays pending forever, the same
		// as an unanswered connect on the wire. The caller's timeout is the
		// only thing that ends it.
		return local, nil
	}

	remote := &memPeer{key: key + "/in", owner: target}

	target.mu.Lock()
	full := len(target.peers) >= target.opts.MaxPeers && target.opts.MaxPeers > 0
	if !full {
		target.peers[remote.key] = remote
	}
	target.mu.Unlock()

	if full {
		// Refused: the connecting side observes a disconnect.
		h.post(Event{Type: EventDisconnect, Peer: local})
		return local, nil
	}

	local.remote = remote
	remote.remote = local

	h.mu.Lock()
	h.peers[local.key] = local
	h.mu.Unlock()

	h.post(Event{Type: EventConnect, Peer: local})
	target.post(Event{Type: EventConnect, Peer: remote})
	return local, nil
}

func (h *memHost) Broadcast(data []byte, channel uint8, reliable bool) error {
	h.mu.Lock()
	peers := make([]*memPeer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		// Best effort per peer, same as sending to each in turn.
		_ = p.Send(data, channel, reliable)
	}
	return nil
}

func (h *memHost) Flush() {
	// Loopback delivery is immediate; nothing is ever queued for the wire.
}

func (h *memHost) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.destroyed = true
	peers := make([]*memPeer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.peers = make(map[string]*memPeer)
	h.mu.Unlock()

	for _, p := range peers {
		p.Disconnect(0)
	}

	if h.opts.Listen {
		h.net.mu.Lock()
		if h.net.listeners[h.port] == h {
			delete(h.net.listeners, h.port)
		}
		h.net.mu.Unlock()
	}
}

// post enqueues an event, dropping it if the queue is full so a stalled
// reader can't deadlock senders.
func (h *memHost) post(ev Event) {
	h.mu.Lock()
	destroyed := h.destroyed
	h.mu.Unlock()
	if destroyed {
		return
	}
	select {
	case h.events <- ev:
	default:
	}
}

func (p *memPeer) Key() string { return p.key }

func (p *memPeer) Send(data []byte, channel uint8, reliable bool) error {
	p.mu.Lock()
	remote := p.remote
	closed := p.closed
	p.mu.Unlock()

	if closed || remote == nil {
		return fmt.Errorf("peer %s is not connected", p.key)
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	remote.owner.post(Event{Type: EventReceive, Peer: remote, Channel: channel, Data: buf})
	return nil
}

func (p *memPeer) Disconnect(reason uint32) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	remote := p.remote
	p.mu.Unlock()

	p.owner.mu.Lock()
	delete(p.owner.peers, p.key)
	p.owner.mu.Unlock()

	p.owner.post(Event{Type: EventDisconnect, Peer: p})

	if remote != nil {
		remote.mu.Lock()
		alreadyClosed := remote.closed
		remote.closed = true
		remote.mu.Unlock()

		remote.owner.mu.Lock()
		delete(remote.owner.peers, remote.key)
		remote.owner.mu.Unlock()

		if !alreadyClosed {
			remote.owner.post(Event{Type: EventDisconnect, Peer: remote})
		}
	}
}
