package main

import (
	"fmt"

	"go.klb.dev/clipbridge/internal/bridge"
)

func defaultServerAddr() string {
	return fmt.Sprintf("localhost:%d", bridge.DefaultPort)
}
