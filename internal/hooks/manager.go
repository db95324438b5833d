package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Manager registers hooks per event type and dispatches triggered events to
// them through a bounded execution pool.
type Manager struct {
	hooks     map[EventType][]Hook
	stdioHook *StdioHook
	mu        sync.RWMutex
	pool      *executionPool
	log       *slog.Logger
	cfg       Config
}

// NewManager constructs a Manager; an empty Config is safe and disables
// stdio output while keeping hook dispatch usable.
func NewManager(cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout != "" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			log.Warn("invalid hook timeout, using default", "timeout", cfg.Timeout, "error", err)
		}
	}
	m := &Manager{
		hooks: make(map[EventType][]Hook),
		log:   log,
		cfg:   cfg,
		pool:  newExecutionPool(cfg.Concurrency, log),
	}
	if cfg.StdioFormat != "" {
		_ = m.EnableStdioOutput(cfg.StdioFormat)
	}
	return m
}

// RegisterHook attaches hook to fire whenever eventType is triggered.
func (m *Manager) RegisterHook(eventType EventType, hook Hook) error {
	if hook == nil {
		return fmt.Errorf("cannot register nil hook")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[eventType] = append(m.hooks[eventType], hook)
	m.log.Info("hook registered", "event_type", eventType, "hook_type", hook.Type(), "hook_id", hook.ID())
	return nil
}

// UnregisterHook removes a previously registered hook by id.
func (m *Manager) UnregisterHook(eventType EventType, hookID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.hooks[eventType]
	for i, h := range list {
		if h.ID() == hookID {
			m.hooks[eventType] = append(list[:i], list[i+1:]...)
			m.log.Info("hook unregistered", "event_type", eventType, "hook_id", hookID)
			return true
		}
	}
	return false
}

// TriggerEvent fires every hook registered for event.Type asynchronously.
func (m *Manager) TriggerEvent(ctx context.Context, event Event) {
	if m == nil {
		return
	}
	m.mu.RLock()
	list := make([]Hook, len(m.hooks[event.Type]))
	copy(list, m.hooks[event.Type])
	m.mu.RUnlock()

	if m.stdioHook != nil {
		list = append(list, m.stdioHook)
	}
	if len(list) == 0 {
		return
	}

	m.log.Debug("triggering event", "event_type", event.Type, "hook_count", len(list), "event", event.String())
	for _, h := range list {
		m.pool.execute(ctx, h, event)
	}
}

// EnableStdioOutput turns on structured stdout/stderr reporting for every
// triggered event, regardless of registered hooks.
func (m *Manager) EnableStdioOutput(format string) error {
	if format != "json" && format != "env" {
		return fmt.Errorf("unsupported stdio format: %s", format)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stdioHook = NewStdioHook("stdio", format)
	m.log.Info("stdio hook output enabled", "format", format)
	return nil
}

// Close shuts down the execution pool, waiting for in-flight hooks to drain.
func (m *Manager) Close() error {
	if m.pool != nil {
		m.pool.close()
	}
	m.log.Info("hook manager closed")
	return nil
}

// executionPool bounds concurrent hook execution via a buffered semaphore.
type executionPool struct {
	workers chan struct{}
	size    int
	active  int
	mu      sync.Mutex
	log     *slog.Logger
}

func newExecutionPool(size int, log *slog.Logger) *executionPool {
	if size <= 0 {
		size = 10
	}
	return &executionPool{workers: make(chan struct{}, size), size: size, log: log}
}

func (p *executionPool) execute(ctx context.Context, hook Hook, event Event) {
	go func() {
		p.workers <- struct{}{}
		defer func() { <-p.workers }()

		p.mu.Lock()
		p.active++
		p.mu.Unlock()
		defer func() {
			p.mu.Lock()
			p.active--
			p.mu.Unlock()
		}()

		start := time.Now()
		err := hook.Execute(ctx, event)
		dur := time.Since(start)
		if err != nil {
			p.log.Error("hook execution failed", "hook_type", hook.Type(), "hook_id", hook.ID(),
				"event_type", event.Type, "duration_ms", dur.Milliseconds(), "error", err)
			return
		}
		p.log.Debug("hook executed", "hook_type", hook.Type(), "hook_id", hook.ID(),
			"event_type", event.Type, "duration_ms", dur.Milliseconds())
	}()
}

// close blocks until every in-flight execution has released its slot.
func (p *executionPool) close() {
	for i := 0; i < cap(p.workers); i++ {
		p.workers <- struct{}{}
	}
}
