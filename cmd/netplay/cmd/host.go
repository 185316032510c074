package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skirmish-engine/netplay/internal/db"
	"github.com/skirmish-engine/netplay/internal/netcode"
	"github.com/skirmish-engine/netplay/internal/repo"
)

var (
	hostCmd = &cobra.Command{
		Use:   "host",
		Short: "Host a game session and relay packets between connected peers",
		Run:   startHost,
	}
	hostFlags = struct {
		Name       string
		Port       uint16
		MaxPlayers int
		DB         string
	}{}
)

func init() {
	hostCmd.Flags().StringVar(&hostFlags.Name, "name", "netplay session", "the session name")
	hostCmd.Flags().Uint16Var(&hostFlags.Port, "port", 5555, "the UDP port to bind")
	hostCmd.Flags().IntVar(&hostFlags.MaxPlayers, "max-players", 8, "the maximum number of clients")
	hostCmd.Flags().StringVar(&hostFlags.DB, "db", "", "sqlite file to record session events to")
	Root.AddCommand(hostCmd)
}

func startHost(cmd *cobra.Command, args []string) {
	logger := newLogger()

	if err := netcode.Init(); err != nil {
		logErrorAndExit(logger, "Unable to initialize network subsystem", slog.Any("err", err))
		return
	}
	defer netcode.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := newSessionLog(ctx, logger, hostFlags.DB, hostFlags.Name, "host", int(hostFlags.Port))
	defer log.end()

	cfg := netcode.DefaultHostConfig()
	cfg.Port = hostFlags.Port
	cfg.MaxClients = hostFlags.MaxPlayers
	cfg.Logger = logger

	host, err := netcode.NewHost(cfg)
	if err != nil {
		logErrorAndExit(logger, "Unable to create host", slog.Any("err", err))
		return
	}
	defer host.Close()

	logger.Info("Session is up",
		slog.String("name", hostFlags.Name),
		slog.Int("port", int(host.Port())),
		slog.Int("max_players", host.MaxPeers()))

	// One frame every 20ms, the pace a game loop would service at.
	const tickMS = 20
	for ctx.Err() == nil {
		ev := host.Service(tickMS)
		switch ev {
		case netcode.HostEventPeerConnected:
			logger.Info("Player joined",
				slog.Uint64("peer", uint64(host.LastPeerIndex())),
				slog.Int("players", host.PeerCount()))
			log.event(ev.String(), int(host.LastPeerIndex()), 0, 0)

		case netcode.HostEventPeerDisconnected:
			logger.Info("Player left",
				slog.Uint64("peer", uint64(host.LastPeerIndex())),
				slog.Int("players", host.PeerCount()))
			log.event(ev.String(), int(host.LastPeerIndex()), 0, 0)
		}

		// Relay everything that arrived this tick to all peers.
		for {
			pkt, ok := host.Receive()
			if !ok {
				break
			}
			logger.Debug("Relaying packet",
				slog.Uint64("peer", uint64(pkt.PeerIndex)),
				slog.Int("channel", int(pkt.Channel)),
				slog.Int("size", len(pkt.Data)))
			log.event(netcode.HostEventPacketReceived.String(), int(pkt.PeerIndex), int(pkt.Channel), len(pkt.Data))

			if err := host.Broadcast(pkt.Channel, pkt.Data, pkt.Channel == 0); err != nil {
				logger.Error("Unable to relay packet", slog.Any("err", err))
			}
		}
		host.Flush()
	}

	logger.Info("Stopping session")
}

// sessionLog wraps the optional sqlite event recording so the serve loops
// don't have to care whether --db was given.
type sessionLog struct {
	ctx    context.Context
	logger *slog.Logger
	repo   *repo.SessionsRepo
	id     int64
	close  func() error
}

func newSessionLog(ctx context.Context, logger *slog.Logger, dbFile, name, role string, port int) *sessionLog {
	if dbFile == "" {
		return &sessionLog{}
	}

	db.RegisterPragmaHook(2000)
	conn, err := db.Open(ctx, dbFile)
	if err != nil {
		logErrorAndExit(logger, "Unable to open session log", slog.Any("err", err))
		return nil
	}

	r := repo.New(conn)
	session, err := r.CreateSession(ctx, name, role, port)
	if err != nil {
		logErrorAndExit(logger, "Unable to record session", slog.Any("err", err))
		return nil
	}

	logger.Info("Recording session events",
		slog.String("db", dbFile),
		slog.Int64("session", session.ID))

	return &sessionLog{ctx: ctx, logger: logger, repo: r, id: session.ID, close: conn.Close}
}

func (l *sessionLog) event(kind string, peerIndex, channel, size int) {
	if l == nil || l.repo == nil {
		return
	}
	if err := l.repo.AddEvent(l.ctx, l.id, kind, peerIndex, channel, size); err != nil && l.ctx.Err() == nil {
		l.logger.Warn("Unable to record event", slog.Any("err", err))
	}
}

func (l *sessionLog) end() {
	if l == nil || l.repo == nil {
		return
	}
	// The signal context is likely canceled by now; stamping the end time
	// still has to go through.
	if err := l.repo.EndSession(context.Background(), l.id); err != nil {
		l.logger.Warn("Unable to end session record", slog.Any("err", err))
	}
	_ = l.close()
}
