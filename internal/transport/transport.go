// Package transport abstracts the reliable-UDP library the network core is
// built on. The core uses these interfaces exclusively so that tests can
// inject an in-memory network without touching real sockets.
package transport

// EventType identifies what a call to Host.Service observed.
type EventType int

const (
	// EventNone means the poll returned without anything happening.
	EventNone EventType = iota
	// EventConnect means a peer finished its connection handshake.
	EventConnect
	// EventDisconnect means a peer disconnected or was refused.
	EventDisconnect
	// EventReceive means a data packet arrived.
	EventReceive
)

func (t EventType) String() string {
	switch t {
	case EventNone:
		return "none"
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// Event is the result of a single Service poll. Data is owned by the caller;
// implementations must copy packet payloads out of the underlying library
// before returning.
type Event struct {
	Type    EventType
	Peer    Peer
	Channel uint8
	Data    []byte
}

// Options configures a Host at creation time.
type Options struct {
	// Listen makes the host bind Port and accept inbound connections.
	// When false the host is outbound-only (client mode) and Port is ignored.
	Listen bool
	Port   uint16
	// MaxPeers caps concurrent connections (1 for client mode).
	MaxPeers int
	// ChannelCount is the number of delivery streams per connection.
	ChannelCount int
	// Bandwidth caps in bytes/second, 0 = unlimited.
	IncomingBandwidth uint32
	OutgoingBandwidth uint32
}

// Peer is a handle to a remote endpoint. A Peer obtained from a Connect call
// or event stays valid until the Disconnect event for it is delivered or the
// owning Host is destroyed.
type Peer interface {
	// Key returns a stable address token, unique per connection on the
	// owning host. Suitable as a map key for identity tracking.
	Key() string

	// Send queues data for delivery on the given channel. Reliable sends are
	// retransmitted until acknowledged; unreliable sends are best-effort.
	Send(data []byte, channel uint8, reliable bool) error

	// Disconnect requests a graceful disconnect, notifying the remote side.
	Disconnect(reason uint32)
}

// Host is one endpoint of the transport: bound and accepting in server mode,
// unbound and outbound-only in client mode.
type Host interface {
	// Service polls for at most one pending event. A zero timeout never
	// blocks; a positive timeout waits up to that many milliseconds for the
	// first event. No pending event yields Event{Type: EventNone}.
	Service(timeoutMS uint32) (Event, error)

	// Connect starts an asynchronous connection attempt. The returned Peer
	// is live but not yet connected; completion is reported by a later
	// EventConnect (or EventDisconnect on refusal).
	Connect(address string, port uint16, channelCount int) (Peer, error)

	// Broadcast queues data for every currently connected peer. Sending to
	// zero peers is a no-op.
	Broadcast(data []byte, channel uint8, reliable bool) error

	// Flush forces transmission of queued outgoing packets without waiting
	// for the next Service call.
	Flush()

	// Destroy releases the socket and all peer state. The Host and every
	// Peer derived from it are invalid afterwards.
	Destroy()
}

// Network creates transport hosts. Implementations: NewENet (production),
// NewMemory (in-process loopback).
type Network interface {
	NewHost(opts Options) (Host, error)

	// Close releases process-wide library state. Hosts must be destroyed
	// before the network is closed.
	Close() error
}
