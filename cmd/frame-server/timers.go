package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aghoras/netprim/internal/logger"
	"github.com/aghoras/netprim/internal/timer"
)

type timersFlags struct {
	count    int
	interval time.Duration
}

func newTimersCmd() *cobra.Command {
	f := &timersFlags{}
	cmd := &cobra.Command{
		Use:   "timers",
		Short: "Run a standalone Timer Manager demo, printing fired and active timers for a fixed period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTimers(f)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&f.count, "count", 5, "number of auto-resetting demo timers to create")
	flags.DurationVar(&f.interval, "interval", 2*time.Second, "interval for each demo timer, staggered by index")
	return cmd
}

func runTimers(f *timersFlags) error {
	logger.Init()
	log := logger.Logger().With("component", "frame-server-timers")

	tm := timer.NewManager(timer.Config{Log: log})
	defer func() { _ = tm.Close() }()

	fired := make(chan uint32, f.count*4)
	for i := 0; i < f.count; i++ {
		interval := f.interval + time.Duration(i)*50*time.Millisecond
		handle := tm.CreateTimer(interval, func(h uint32, _ any) {
			select {
			case fired <- h:
			default:
			}
		}, nil, timer.StateActive, true)
		if handle == timer.InvalidHandle {
			return fmt.Errorf("failed to create demo timer %d", i)
		}
	}

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	deadline := time.After(f.interval*3 + 2*time.Second)
	for {
		select {
		case h := <-fired:
			fmt.Printf("timer %d fired\n", h)
		case <-ticker.C:
			active := tm.DumpActive()
			fmt.Printf("%d timers active\n", len(active))
			for _, s := range active {
				fmt.Printf("  handle=%d interval=%s next=%s auto_reset=%t\n",
					s.Handle, s.Interval, s.Expiration.Format(time.RFC3339), s.AutoReset)
			}
		case <-deadline:
			return nil
		}
	}
}
