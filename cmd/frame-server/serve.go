package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aghoras/netprim/internal/config"
	"github.com/aghoras/netprim/internal/framing"
	"github.com/aghoras/netprim/internal/hooks"
	"github.com/aghoras/netprim/internal/logger"
	"github.com/aghoras/netprim/internal/timer"
	"github.com/aghoras/netprim/internal/transport/tcp"
)

type serveFlags struct {
	configPath      string
	listen          string
	logLevel        string
	heartbeatEvery  time.Duration
	hookScripts     []string
	hookWebhooks    []string
	hookStdioFormat string
	hookTimeout     string
	hookConcurrency int
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the TCP frame server with timer-driven heartbeat and event hooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "path to a YAML config file (optional; flags override its values)")
	flags.StringVar(&f.listen, "listen", "", "TCP listen address, overrides config server.listen")
	flags.StringVar(&f.logLevel, "log-level", "", "log level debug|info|warn|error, overrides config logging.level")
	flags.DurationVar(&f.heartbeatEvery, "heartbeat-every", 0, "heartbeat broadcast interval, overrides config timer.heartbeat_every (0 keeps config value)")
	flags.StringArrayVar(&f.hookScripts, "hook-script", nil, "hook script in event_type=script_path form (repeatable)")
	flags.StringArrayVar(&f.hookWebhooks, "hook-webhook", nil, "hook webhook in event_type=url form (repeatable)")
	flags.StringVar(&f.hookStdioFormat, "hook-stdio-format", "", "structured stdio hook output: json|env, overrides config")
	flags.StringVar(&f.hookTimeout, "hook-timeout", "", "hook execution timeout, overrides config hooks.timeout")
	flags.IntVar(&f.hookConcurrency, "hook-concurrency", 0, "max concurrent hook executions, overrides config hooks.concurrency")

	return cmd
}

func runServe(cmd *cobra.Command, f *serveFlags) error {
	cfg, err := loadConfigWithOverrides(f)
	if err != nil {
		return err
	}

	logger.Init()
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid log level %q, using default\n", cfg.Logging.Level)
	}
	log := logger.Logger().With("component", "frame-server")

	hm := buildHookManager(cfg, log)
	defer hm.Close()

	var server *tcp.Server
	server = tcp.New(tcp.Config{
		ListenAddr:  cfg.Server.Listen,
		HookManager: hm,
	}, func(connID string, msg framing.Message) {
		log.Info("frame received", "conn_id", connID, "length", len(msg.Body))
		if err := server.Send(connID, msg.Body); err != nil {
			log.Warn("echo failed", "conn_id", connID, "error", err)
		}
	})

	if err := server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	log.Info("server started", "addr", server.Addr().String())

	tm := timer.NewManager(timer.Config{
		Capacity:    cfg.Timer.Capacity,
		MaxInterval: cfg.Timer.MaxInterval,
		HookManager: hm,
		Log:         log,
	})
	defer func() { _ = tm.Close() }()

	if cfg.Timer.HeartbeatEvery > 0 {
		tm.CreateTimer(cfg.Timer.HeartbeatEvery, func(handle uint32, _ any) {
			server.Broadcast([]byte("heartbeat"))
		}, nil, timer.StateActive, true)
		log.Info("heartbeat scheduled", "every", cfg.Timer.HeartbeatEvery)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		if err := server.Stop(); err != nil {
			log.Error("server stop error", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("server stopped cleanly")
	case <-shutdownCtx.Done():
		log.Error("forced exit after timeout")
	}
	return nil
}

func loadConfigWithOverrides(f *serveFlags) (*config.Config, error) {
	var cfg *config.Config
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if f.listen != "" {
		cfg.Server.Listen = f.listen
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.heartbeatEvery > 0 {
		cfg.Timer.HeartbeatEvery = f.heartbeatEvery
	}
	if f.hookStdioFormat != "" {
		cfg.Hooks.StdioFormat = f.hookStdioFormat
	}
	if f.hookTimeout != "" {
		cfg.Hooks.Timeout = f.hookTimeout
	}
	if f.hookConcurrency > 0 {
		cfg.Hooks.Concurrency = f.hookConcurrency
	}
	cfg.Hooks.Scripts = append(cfg.Hooks.Scripts, f.hookScripts...)
	cfg.Hooks.Webhooks = append(cfg.Hooks.Webhooks, f.hookWebhooks...)

	return cfg, nil
}

func buildHookManager(cfg *config.Config, log *slog.Logger) *hooks.Manager {
	timeout, err := time.ParseDuration(cfg.Hooks.Timeout)
	if err != nil {
		timeout = 30 * time.Second
	}

	hm := hooks.NewManager(hooks.Config{
		Timeout:     cfg.Hooks.Timeout,
		Concurrency: cfg.Hooks.Concurrency,
		StdioFormat: cfg.Hooks.StdioFormat,
	}, log)

	for i, assignment := range cfg.Hooks.Scripts {
		eventType, scriptPath := config.ParseAssignment(assignment)
		hook := hooks.NewShellHook(fmt.Sprintf("script-%d", i), scriptPath, timeout)
		if err := hm.RegisterHook(hooks.EventType(eventType), hook); err != nil {
			log.Warn("failed to register hook script", "assignment", assignment, "error", err)
		}
	}
	for i, assignment := range cfg.Hooks.Webhooks {
		eventType, url := config.ParseAssignment(assignment)
		hook := hooks.NewWebhookHook(fmt.Sprintf("webhook-%d", i), url, timeout)
		if err := hm.RegisterHook(hooks.EventType(eventType), hook); err != nil {
			log.Warn("failed to register hook webhook", "assignment", assignment, "error", err)
		}
	}
	return hm
}
