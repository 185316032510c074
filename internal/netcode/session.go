package netcode

import (
	"fmt"
	"log/slog"
)

// Mode is the session role, with the integer codes of the external contract.
type Mode int

const (
	// ModeNone means no session is active.
	ModeNone Mode = 0
	// ModeHosting means this machine is the session authority.
	ModeHosting Mode = 1
	// ModeJoined means this machine joined a remote session.
	ModeJoined Mode = 2
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeHosting:
		return "hosting"
	case ModeJoined:
		return "joined"
	default:
		return "unknown"
	}
}

// maxSessionName bounds the session name carried in lobby announcements.
const maxSessionName = 63

// SessionInfo describes the active session.
type SessionInfo struct {
	Name          string
	Port          uint16
	PlayerCount   uint8
	MaxPlayers    uint8
	LocalPlayerID uint8
}

// Packet is a received packet in the unified session format. PeerID is the
// host-assigned identity of the sender; when joined, packets always come
// from the host and carry PeerID 0.
type Packet struct {
	PeerID  uint32
	Channel uint8
	Data    []byte
}

// SessionManager unifies Host and Client behind one API: host a game or join
// one, then Update every frame and pull packets from a single queue. It does
// not interpret packet contents; sync and command sequencing belong to the
// game layer.
type SessionManager struct {
	mode   Mode
	host   *Host
	client *Client
	logger *slog.Logger

	info  SessionInfo
	queue []Packet
}

// NewSessionManager returns a manager in ModeNone. A nil logger means
// slog.Default().
func NewSessionManager(logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{logger: logger}
}

// Mode returns the current session role.
func (m *SessionManager) Mode() Mode {
	if m == nil {
		return ModeNone
	}
	return m.mode
}

// IsHost reports whether this machine is the session authority.
func (m *SessionManager) IsHost() bool {
	return m != nil && m.mode == ModeHosting
}

// IsConnected reports whether a session is live: hosts always count as
// connected, joined sessions only once the client finishes its handshake.
func (m *SessionManager) IsConnected() bool {
	if m == nil {
		return false
	}
	switch m.mode {
	case ModeHosting:
		return true
	case ModeJoined:
		return m.client.IsConnected()
	default:
		return false
	}
}

// Info returns the active session description.
func (m *SessionManager) Info() SessionInfo {
	if m == nil {
		return SessionInfo{}
	}
	return m.info
}

// HostGame starts a session as the authority. An active session is torn
// down first. The host is always player 0.
func (m *SessionManager) HostGame(name string, port uint16, maxPlayers int) error {
	if m == nil {
		return ErrNotInitialized
	}
	if m.mode != ModeNone {
		m.Disconnect()
	}

	cfg := DefaultHostConfig()
	cfg.Port = port
	cfg.MaxClients = maxPlayers
	cfg.Logger = m.logger

	host, err := NewHost(cfg)
	if err != nil {
		return err
	}

	if len(name) > maxSessionName {
		name = name[:maxSessionName]
	}

	m.host = host
	m.mode = ModeHosting
	m.info = SessionInfo{
		Name:          name,
		Port:          port,
		PlayerCount:   1, // the host itself
		MaxPlayers:    uint8(maxPlayers),
		LocalPlayerID: 0,
	}

	m.logger.Info("Hosting game",
		slog.String("name", name),
		slog.Int("port", int(port)),
		slog.Int("max_players", maxPlayers))
	return nil
}

// JoinGame connects to a remote session, blocking until the handshake
// settles or timeoutMS elapses.
func (m *SessionManager) JoinGame(address string, port uint16, timeoutMS uint32) error {
	client, err := m.startJoin(address, port)
	if err != nil {
		return err
	}

	if err := client.ConnectBlocking(address, port, DefaultConnectConfig().ChannelCount, timeoutMS); err != nil {
		client.Close()
		m.client = nil
		m.mode = ModeNone
		return err
	}

	m.logger.Info("Joined game",
		slog.String("address", address),
		slog.Int("port", int(port)))
	return nil
}

// JoinGameAsync starts a connection attempt without blocking; drive Update
// and check IsConnected for completion.
func (m *SessionManager) JoinGameAsync(address string, port uint16) error {
	client, err := m.startJoin(address, port)
	if err != nil {
		return err
	}

	if err := client.ConnectAsync(address, port, DefaultConnectConfig().ChannelCount); err != nil {
		client.Close()
		m.client = nil
		m.mode = ModeNone
		return err
	}

	m.logger.Info("Connecting to game",
		slog.String("address", address),
		slog.Int("port", int(port)))
	return nil
}

func (m *SessionManager) startJoin(address string, port uint16) (*Client, error) {
	if m == nil {
		return nil, ErrNotInitialized
	}
	if m.mode != ModeNone {
		m.Disconnect()
	}

	cfg := DefaultConnectConfig()
	cfg.Logger = m.logger

	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	m.client = client
	m.mode = ModeJoined
	m.info = SessionInfo{Port: port}
	return client, nil
}

// Disconnect leaves the current session and resets the session info.
// Idempotent.
func (m *SessionManager) Disconnect() {
	if m == nil {
		return
	}
	switch m.mode {
	case ModeHosting:
		m.host.Close()
		m.host = nil
		m.logger.Info("Stopped hosting game")
	case ModeJoined:
		m.client.Close()
		m.client = nil
		m.logger.Info("Left game")
	}

	m.mode = ModeNone
	m.info = SessionInfo{}
	m.queue = nil
}

// Update services the underlying role with a zero timeout, moves completed
// packets into the unified queue and refreshes the player count. It returns
// the number of packets gathered this call. Call once per frame.
func (m *SessionManager) Update() int {
	if m == nil {
		return 0
	}

	var gathered int
	switch m.mode {
	case ModeHosting:
		m.host.Service(0)
		for {
			pkt, ok := m.host.Receive()
			if !ok {
				break
			}
			m.queue = append(m.queue, Packet{PeerID: pkt.PeerIndex, Channel: pkt.Channel, Data: pkt.Data})
			gathered++
		}
		m.info.PlayerCount = uint8(m.host.PeerCount() + 1)

	case ModeJoined:
		m.client.Service(0)
		for {
			data, ok := m.client.Receive()
			if !ok {
				break
			}
			m.queue = append(m.queue, Packet{PeerID: 0, Channel: m.client.LastChannel(), Data: data})
			gathered++
		}
	}

	return gathered
}

// SendData delivers raw bytes to the session: a broadcast to every peer when
// hosting, a send to the host when joined.
func (m *SessionManager) SendData(channel uint8, data []byte, reliable bool) error {
	if m == nil {
		return ErrNotInitialized
	}
	switch m.mode {
	case ModeHosting:
		return m.host.Broadcast(channel, data, reliable)
	case ModeJoined:
		return m.client.Send(channel, data, reliable)
	default:
		return fmt.Errorf("%w: no active session", ErrNotInitialized)
	}
}

// Receive pops the oldest packet from the unified queue.
func (m *SessionManager) Receive() (Packet, bool) {
	if m == nil || len(m.queue) == 0 {
		return Packet{}, false
	}
	pkt := m.queue[0]
	m.queue = m.queue[1:]
	return pkt, true
}

// HasPackets reports whether Receive would return a packet.
func (m *SessionManager) HasPackets() bool {
	return m != nil && len(m.queue) > 0
}

// PacketCount returns the number of queued packets.
func (m *SessionManager) PacketCount() int {
	if m == nil {
		return 0
	}
	return len(m.queue)
}

// PeerCount returns the number of remote peers in the session.
func (m *SessionManager) PeerCount() int {
	if m == nil {
		return 0
	}
	switch m.mode {
	case ModeHosting:
		return m.host.PeerCount()
	case ModeJoined:
		if m.IsConnected() {
			return 1
		}
	}
	return 0
}

// Close leaves the session. Idempotent; equivalent to Disconnect.
func (m *SessionManager) Close() {
	m.Disconnect()
}
