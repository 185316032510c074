package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	Root = &cobra.Command{
		Use:   "netplay",
		Short: "Host or join multiplayer game sessions over reliable UDP",
	}
	rootFlags = struct {
		LogLevel string
	}{}
)

func init() {
	Root.PersistentFlags().StringVar(&rootFlags.LogLevel, "log-level", "info", "the log level to use")
}

func Execute() {
	if err := Root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(rootFlags.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "bad log level: %s\n", rootFlags.LogLevel)
		os.Exit(1)
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:   level,
		NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}

func logErrorAndExit(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}
