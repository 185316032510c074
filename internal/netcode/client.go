package netcode

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/skirmish-engine/netplay/internal/transport"
)

// ClientState is the connection state machine, with the integer codes of the
// external contract.
type ClientState int

const (
	// StateDisconnected is the initial state, and the terminal state after
	// an explicit or remote disconnect.
	StateDisconnected ClientState = 0
	// StateConnecting means ConnectAsync has been issued and the handshake
	// is in flight.
	StateConnecting ClientState = 1
	// StateConnected means the transport reported the connect event.
	StateConnected ClientState = 2
	// StateFailed means the attempt timed out or was rejected.
	StateFailed ClientState = 3
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ClientEvent is the integer event code returned by Client.Service.
type ClientEvent int

const (
	ClientEventNone             ClientEvent = 0
	ClientEventConnected        ClientEvent = 1
	ClientEventDisconnected     ClientEvent = 2
	ClientEventPacketReceived   ClientEvent = 3
	ClientEventConnectionFailed ClientEvent = 4
)

func (e ClientEvent) String() string {
	switch e {
	case ClientEventNone:
		return "none"
	case ClientEventConnected:
		return "connected"
	case ClientEventDisconnected:
		return "disconnected"
	case ClientEventPacketReceived:
		return "packet_received"
	case ClientEventConnectionFailed:
		return "connection_failed"
	default:
		return "unknown"
	}
}

// ConnectConfig configures a Client. Copied at construction time, never
// mutated afterwards.
type ConnectConfig struct {
	// ChannelCount must match the server (default 2).
	ChannelCount int
	// TimeoutMS is the default blocking-connect timeout (default 5000).
	TimeoutMS uint32
	// Bandwidth caps in bytes/second, 0 = unlimited.
	IncomingBandwidth uint32
	OutgoingBandwidth uint32
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConnectConfig returns the conventional client settings.
func DefaultConnectConfig() ConnectConfig {
	return ConnectConfig{
		ChannelCount: 2,
		TimeoutMS:    5000,
	}
}

// Client manages exactly one outbound connection and its data channels.
// Single-owner; see the package comment for the threading contract.
type Client struct {
	th     transport.Host
	logger *slog.Logger

	queue  [][]byte
	server transport.Peer

	state       ClientState
	lastEvent   ClientEvent
	lastChannel uint8

	serverAddress string
	serverPort    uint16

	closed bool
}

// NewClient constructs an unbound transport object suitable only for
// outgoing connections. Requires Init to have run.
func NewClient(cfg ConnectConfig) (*Client, error) {
	n, err := requireInitialized()
	if err != nil {
		return nil, err
	}

	if cfg.ChannelCount < 1 {
		cfg.ChannelCount = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	th, err := n.NewHost(transport.Options{
		MaxPeers:          1, // just the server
		ChannelCount:      cfg.ChannelCount,
		IncomingBandwidth: cfg.IncomingBandwidth,
		OutgoingBandwidth: cfg.OutgoingBandwidth,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHostCreation, err)
	}

	return &Client{
		th:     th,
		logger: logger,
		state:  StateDisconnected,
	}, nil
}

// ConnectAsync validates the address, issues the transport-level connect
// request and moves the state machine to Connecting. It returns before the
// connection is confirmed or refused; drive Service until State reports the
// outcome. Rejected if a connection already exists or is in progress.
func (c *Client) ConnectAsync(address string, port uint16, channelCount int) error {
	if c == nil || c.closed {
		return ErrDisconnected
	}
	if c.state == StateConnecting || c.state == StateConnected {
		return fmt.Errorf("%w: connection already in progress", ErrAlreadyInitialized)
	}

	// Malformed input fails here, before any network activity.
	if _, err := netip.ParseAddr(address); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	peer, err := c.th.Connect(address, port, channelCount)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c.server = peer
	c.state = StateConnecting
	c.serverAddress = address
	c.serverPort = port

	c.logger.Info("Connecting to server",
		slog.String("address", address),
		slog.Int("port", int(port)))
	return nil
}

// ConnectBlocking is ConnectAsync followed by short Service slices until the
// state machine settles: Connected returns nil, Failed or Disconnected
// returns ErrConnectionFailed, and an elapsed deadline returns ErrTimeout
// with the state forced to Failed. It never blocks past timeoutMS plus one
// service slice, even if the remote never answers.
func (c *Client) ConnectBlocking(address string, port uint16, channelCount int, timeoutMS uint32) error {
	if c == nil || c.closed {
		return ErrDisconnected
	}

	if err := c.ConnectAsync(address, port, channelCount); err != nil {
		return err
	}

	const sliceMS = 20
	deadline := time.Now().Add(time.Duration(timeoutMS) * time.Millisecond)

	for time.Now().Before(deadline) {
		c.Service(sliceMS)

		switch c.state {
		case StateConnected:
			return nil
		case StateFailed, StateDisconnected:
			return fmt.Errorf("%w: connection rejected", ErrConnectionFailed)
		}
	}

	c.state = StateFailed
	return ErrTimeout
}

// Service drains every pending transport event, updating the state machine
// and the receive queue; the return value is the last event seen. A zero
// timeout never blocks. Transport errors are logged and swallowed so the
// polling loop stays alive.
func (c *Client) Service(timeoutMS uint32) ClientEvent {
	if c == nil || c.closed {
		return ClientEventNone
	}

	c.lastEvent = ClientEventNone

	wait := timeoutMS
	for {
		ev, err := c.th.Service(wait)
		if err != nil {
			c.logger.Error("Client service error", slog.Any("err", err))
			break
		}
		wait = 0

		switch ev.Type {
		case transport.EventConnect:
			c.state = StateConnected
			c.lastEvent = ClientEventConnected
			c.logger.Info("Connected to server",
				slog.String("address", c.serverAddress),
				slog.Int("port", int(c.serverPort)))

		case transport.EventDisconnect:
			if c.state == StateConnecting {
				// Rejected before the handshake completed.
				c.state = StateFailed
				c.lastEvent = ClientEventConnectionFailed
				c.logger.Warn("Connection refused",
					slog.String("address", c.serverAddress),
					slog.Int("port", int(c.serverPort)))
			} else {
				c.state = StateDisconnected
				c.lastEvent = ClientEventDisconnected
				c.logger.Info("Disconnected from server")
			}
			c.server = nil

		case transport.EventReceive:
			c.queue = append(c.queue, ev.Data)
			c.lastChannel = ev.Channel
			c.lastEvent = ClientEventPacketReceived

		default:
			return c.lastEvent
		}
	}

	return c.lastEvent
}

// Send queues data for the server. It fails fast with ErrDisconnected unless
// the state is Connected; sends are never buffered while disconnected.
func (c *Client) Send(channel uint8, data []byte, reliable bool) error {
	if c == nil || c.closed || c.state != StateConnected || c.server == nil {
		return ErrDisconnected
	}
	if err := c.server.Send(data, channel, reliable); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Receive pops the oldest received payload, FIFO.
func (c *Client) Receive() ([]byte, bool) {
	if c == nil || len(c.queue) == 0 {
		return nil, false
	}
	data := c.queue[0]
	c.queue = c.queue[1:]
	return data, true
}

// HasPackets reports whether Receive would return a payload.
func (c *Client) HasPackets() bool {
	return c != nil && len(c.queue) > 0
}

// PacketCount returns the number of queued payloads.
func (c *Client) PacketCount() int {
	if c == nil {
		return 0
	}
	return len(c.queue)
}

// LastChannel returns the channel of the most recently received packet.
func (c *Client) LastChannel() uint8 {
	if c == nil {
		return 0
	}
	return c.lastChannel
}

// State returns the current connection state.
func (c *Client) State() ClientState {
	if c == nil {
		return StateDisconnected
	}
	return c.state
}

// IsConnected reports whether the state is Connected.
func (c *Client) IsConnected() bool {
	return c != nil && c.state == StateConnected
}

// ServerAddress returns the address of the last connection attempt.
func (c *Client) ServerAddress() string {
	if c == nil {
		return ""
	}
	return c.serverAddress
}

// ServerPort returns the port of the last connection attempt.
func (c *Client) ServerPort() uint16 {
	if c == nil {
		return 0
	}
	return c.serverPort
}

// Disconnect notifies the remote peer, flushes, and unconditionally leaves
// the state Disconnected. Idempotent; Close calls it, so forgetting an
// explicit Disconnect does not leak a half-open connection.
func (c *Client) Disconnect() {
	if c == nil || c.closed {
		return
	}
	if c.server != nil && (c.state == StateConnected || c.state == StateConnecting) {
		c.server.Disconnect(0)
		c.th.Flush()
		c.logger.Info("Disconnect initiated")
	}
	c.server = nil
	c.state = StateDisconnected
}

// Flush forces transmission of queued outgoing packets.
func (c *Client) Flush() {
	if c == nil || c.closed {
		return
	}
	c.th.Flush()
}

// Close disconnects gracefully if needed, releases the transport object and
// drops all queued packets. Idempotent.
func (c *Client) Close() {
	if c == nil || c.closed {
		return
	}
	c.Disconnect()
	c.closed = true
	c.th.Destroy()
	c.queue = nil
}
