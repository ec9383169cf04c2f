package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/bridge"
	"go.klb.dev/clipbridge/internal/clip"
)

func newServerCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the clipboard broadcast server",
		Long: `Starts the clipbridge server. Every connected peer receives clipboard
changes made on this host, and text a peer sends is applied to this host's
clipboard and relayed to all other peers.

The listen port also answers HTTP: GET /healthz and GET /status.

Config file search order:
  /etc/clipbridge/clipbridge.toml
  $HOME/.config/clipbridge/clipbridge.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPBRIDGE_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServer(v) },
	}

	f := cmd.Flags()
	f.String("host", "0.0.0.0", "bind host")
	f.Int("port", bridge.DefaultPort, "bind port")
	f.Int("poll-ms", int(bridge.DefaultPollInterval/time.Millisecond),
		"clipboard poll interval in milliseconds (floor 50)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServer(v *viper.Viper) error {
	setupLogging(v)

	cfg := bridge.Config{
		Host:         v.GetString("host"),
		Port:         v.GetInt("port"),
		PollInterval: time.Duration(v.GetInt("poll-ms")) * time.Millisecond,
		Version:      Version,
	}

	backend := clip.New()
	slog.Info("clipbridge server starting",
		"version", Version,
		"host", cfg.Host,
		"port", cfg.Port,
		"poll", cfg.PollInterval,
		"backend", backend.Name(),
	)

	srv := bridge.New(cfg, backend)
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("interrupted, shutting down")
	srv.Shutdown()
	return nil
}
