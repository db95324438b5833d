package hooks

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellHook runs a script when triggered, passing event data as environment
// variables. Nothing is written to the script's stdin.
type ShellHook struct {
	id       string
	command  string
	args     []string
	env      []string
	passJSON bool
	timeout  time.Duration
}

// NewShellHook builds a ShellHook that runs scriptPath with /bin/bash.
func NewShellHook(id, scriptPath string, timeout time.Duration) *ShellHook {
	return &ShellHook{id: id, command: "/bin/bash", args: []string{scriptPath}, timeout: timeout}
}

// SetEnv sets additional environment variables passed to the script.
func (h *ShellHook) SetEnv(env []string) *ShellHook {
	h.env = env
	return h
}

// Execute runs the configured command with a timeout derived context.
func (h *ShellHook) Execute(ctx context.Context, event Event) error {
	execCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, h.command, h.args...)
	cmd.Env = append(cmd.Env, h.buildEnvironment(event)...)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("shell hook %s: execution failed: %w", h.id, err)
	}
	return nil
}

// Type identifies this hook's kind.
func (h *ShellHook) Type() string { return "shell" }

// ID returns this hook's registration identifier.
func (h *ShellHook) ID() string { return h.id }

func (h *ShellHook) buildEnvironment(event Event) []string {
	env := append([]string{}, h.env...)
	env = append(env, "NETPRIM_EVENT_TYPE="+string(event.Type))
	env = append(env, fmt.Sprintf("NETPRIM_TIMESTAMP=%d", event.Timestamp))
	if event.ConnID != "" {
		env = append(env, "NETPRIM_CONN_ID="+event.ConnID)
	}
	if event.Key != "" {
		env = append(env, "NETPRIM_KEY="+event.Key)
	}
	for key, value := range event.Data {
		env = append(env, "NETPRIM_"+strings.ToUpper(key)+fmt.Sprintf("=%v", value))
	}
	return env
}
