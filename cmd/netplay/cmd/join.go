package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skirmish-engine/netplay/internal/netcode"
)

var (
	joinCmd = &cobra.Command{
		Use:   "join ADDRESS",
		Short: "Join a hosted game session and chat over channel 0",
		Args:  cobra.ExactArgs(1),
		Run:   startJoin,
	}
	joinFlags = struct {
		Port    uint16
		Timeout uint32
		DB      string
	}{}
)

func init() {
	joinCmd.Flags().Uint16Var(&joinFlags.Port, "port", 5555, "the UDP port the host listens on")
	joinCmd.Flags().Uint32Var(&joinFlags.Timeout, "timeout", 5000, "the connect timeout in milliseconds")
	joinCmd.Flags().StringVar(&joinFlags.DB, "db", "", "sqlite file to record session events to")
	Root.AddCommand(joinCmd)
}

func startJoin(cmd *cobra.Command, args []string) {
	logger := newLogger()
	address := args[0]

	if err := netcode.Init(); err != nil {
		logErrorAndExit(logger, "Unable to initialize network subsystem", slog.Any("err", err))
		return
	}
	defer netcode.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	manager := netcode.NewSessionManager(logger)
	defer manager.Close()

	logger.Info("Connecting",
		slog.String("address", address),
		slog.Int("port", int(joinFlags.Port)))

	if err := manager.JoinGame(address, joinFlags.Port, joinFlags.Timeout); err != nil {
		logErrorAndExit(logger, "Unable to join session", slog.Any("err", err))
		return
	}
	logger.Info("Connected", slog.Int("player_id", int(manager.Info().LocalPlayerID)))

	log := newSessionLog(ctx, logger, joinFlags.DB, address, "client", int(joinFlags.Port))
	defer log.end()

	// Stdin lines become chat packets. The reader goroutine exits with the
	// process; Scan has no cancelable form.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Disconnecting")
			return

		case line, ok := <-lines:
			if !ok {
				logger.Info("Input closed, disconnecting")
				return
			}
			if line == "" {
				continue
			}
			if err := manager.SendData(0, []byte(line), true); err != nil {
				logErrorAndExit(logger, "Unable to send", slog.Any("err", err))
				return
			}

		case <-ticker.C:
			manager.Update()
			for {
				pkt, ok := manager.Receive()
				if !ok {
					break
				}
				log.event("packet_received", int(pkt.PeerID), int(pkt.Channel), len(pkt.Data))
				fmt.Printf("[peer %d] %s\n", pkt.PeerID, pkt.Data)
			}
			if !manager.IsConnected() {
				logErrorAndExit(logger, "Lost connection to host")
				return
			}
		}
	}
}
