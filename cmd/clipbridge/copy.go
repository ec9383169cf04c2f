package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipbridge/internal/frame"
)

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy stdin to the clipbridge clipboard (like pbcopy)",
		Long: `Reads stdin and sends it to a clipbridge server as one text frame. The
server applies it to its clipboard and relays it to every connected peer.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runCopy(v) },
	}

	f := cmd.Flags()
	f.String("server", defaultServerAddr(), "clipbridge server address (host:port)")
	addConfigFlag(cmd)

	return cmd
}

func runCopy(v *viper.Viper) error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("stdin is not valid UTF-8 text")
	}

	payload, err := frame.Encode(string(data))
	if err != nil {
		return err
	}

	serverAddr := v.GetString("server")
	conn, err := net.DialTimeout("tcp", serverAddr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect %s: %w", serverAddr, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
