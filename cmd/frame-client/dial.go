package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aghoras/netprim/internal/framing"
	"github.com/aghoras/netprim/internal/logger"
	"github.com/aghoras/netprim/internal/transport/tcp"
)

type dialFlags struct {
	addr     string
	port     int
	logLevel string
}

func newDialCmd() *cobra.Command {
	f := &dialFlags{}
	cmd := &cobra.Command{
		Use:   "dial",
		Short: "Connect to a frame-server and exchange frames over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDial(f)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.addr, "addr", "127.0.0.1", "server host to dial")
	flags.IntVar(&f.port, "port", 9000, "server port to dial")
	flags.StringVar(&f.logLevel, "log-level", "info", "log level debug|info|warn|error")
	return cmd
}

func runDial(f *dialFlags) error {
	logger.Init()
	if err := logger.SetLevel(f.logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid log level %q, using default\n", f.logLevel)
	}
	log := logger.Logger().With("component", "frame-client")

	client := tcp.NewClient()
	err := client.Connect(f.addr, f.port, func(msg framing.Message) {
		fmt.Printf("< %s\n", string(msg.Body))
	})
	if err != nil {
		return fmt.Errorf("connect %s:%d: %w", f.addr, f.port, err)
	}
	defer func() { _ = client.Disconnect() }()
	log.Info("connected", "addr", f.addr, "port", f.port)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := client.Send([]byte(line)); err != nil {
			log.Error("send failed", "error", err)
			continue
		}
	}
	return scanner.Err()
}
