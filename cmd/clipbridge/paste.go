package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/frame"
)

func newPasteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "paste",
		Short: "Print the clipbridge clipboard to stdout (like pbpaste)",
		Long: `Connects to a clipbridge server and prints the clipboard text it pushes
to new connections. If the server clipboard is empty nothing is pushed;
paste then prints nothing and exits 0 (pbpaste behaviour).`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runPaste(v) },
	}

	f := cmd.Flags()
	f.String("server", defaultServerAddr(), "clipbridge server address (host:port)")
	f.Duration("timeout", 2*time.Second, "how long to wait for the server's push")
	addConfigFlag(cmd)

	return cmd
}

func runPaste(v *viper.Viper) error {
	serverAddr := v.GetString("server")
	timeout := v.GetDuration("timeout")

	conn, err := net.DialTimeout("tcp", serverAddr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect %s: %w", serverAddr, err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	text, err := frame.Read(conn)
	if err != nil {
		// No push before the deadline: the server clipboard is empty.
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return fmt.Errorf("read: %w", err)
	}

	_, err = os.Stdout.WriteString(text)
	return err
}
