package cmd

import (
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/skirmish-engine/netplay/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Version information",
	Run:   startVersion,
}

func init() {
	Root.AddCommand(versionCmd)
}

func startVersion(cmd *cobra.Command, args []string) {
	sqliteVersion, _, _ := sqlite3.Version()

	fmt.Print(version.String())
	if ts := version.HumanRevisionTime(); ts != "" {
		fmt.Printf(" (%s)", ts)
	}
	fmt.Println()
	fmt.Printf("sqlite: %s\n", sqliteVersion)
}
