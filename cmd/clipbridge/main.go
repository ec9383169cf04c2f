// clipbridge: clipboard synchronization bridge over TCP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.klb.dev/clipbridge/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipbridge",
		Short: "Clipboard synchronization bridge over TCP",
		Long: `clipbridge relays plain-text clipboard content between this host and any
number of connected peers over a persistent TCP connection, keeping every
endpoint's clipboard eventually consistent.

Run "clipbridge server" on the host whose clipboard should be shared.
Run "clipbridge client" on each peer, or use "clipbridge copy/paste" as
one-shot CLI tools against a running server.

Config file search order (first found wins):
  /etc/clipbridge/clipbridge.toml
  $HOME/.config/clipbridge/clipbridge.toml
  path supplied via --config

All flags can be set via CLIPBRIDGE_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServerCmd(),
		newClientCmd(),
		newCopyCmd(),
		newPasteCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipbridge %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
