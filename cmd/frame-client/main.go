// Command frame-client is the demo blocking client for the TCP transport
// collaborator: it dials a frame-server, sends lines read from stdin as
// framed messages, and prints whatever frames come back.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "frame-client",
		Short:   "Framed-messaging demo client: dial a frame-server and exchange frames",
		Version: version,
	}
	root.AddCommand(newDialCmd())
	return root
}
