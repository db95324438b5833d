// Command frame-server is the demo host for the Framed Messaging / Timer
// Manager / transport collaborators: a TCP server that reassembles frames
// on every connection, fires a timer-driven heartbeat broadcast, and
// dispatches event hooks on connection and timer lifecycle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "frame-server",
		Short:   "Framed-messaging demo server: TCP transport, timer heartbeat, event hooks",
		Version: version,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newTimersCmd())
	return root
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
