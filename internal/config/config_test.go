package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "frame-server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":9100\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.Server.Listen)
	require.Equal(t, "info", cfg.Logging.Level)
	require.EqualValues(t, 100, cfg.Timer.Capacity)
	require.Equal(t, 30*time.Second, cfg.Timer.HeartbeatEvery)
	require.Equal(t, 3, cfg.Framing.SendRetry)
	require.Equal(t, 10*time.Millisecond, cfg.Framing.SendRetryDelay)
	require.Equal(t, 10, cfg.Hooks.Concurrency)
}

func TestLoadFullySpecified(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9200"
logging:
  level: debug
timer:
  capacity: 50
  heartbeat_every: 5s
framing:
  send_retry: 5
  send_retry_delay: 25ms
hooks:
  scripts:
    - "connection_accept=/usr/local/bin/on-accept.sh"
  webhooks:
    - "timer_fired=https://example.invalid/hook"
  stdio_format: json
  timeout: 10s
  concurrency: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.EqualValues(t, 50, cfg.Timer.Capacity)
	require.Equal(t, 5*time.Second, cfg.Timer.HeartbeatEvery)
	require.Equal(t, 5, cfg.Framing.SendRetry)
	require.Equal(t, 25*time.Millisecond, cfg.Framing.SendRetryDelay)
	require.Equal(t, "json", cfg.Hooks.StdioFormat)
	require.Len(t, cfg.Hooks.Scripts, 1)
	require.Len(t, cfg.Hooks.Webhooks, 1)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: verbose\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "logging.level")
}

func TestLoadRejectsBadStdioFormat(t *testing.T) {
	path := writeConfig(t, "hooks:\n  stdio_format: xml\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "stdio_format")
}

func TestLoadRejectsUnknownEventType(t *testing.T) {
	path := writeConfig(t, "hooks:\n  scripts:\n    - \"stream_create=/tmp/x.sh\"\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown event type")
}

func TestLoadRejectsMalformedAssignment(t *testing.T) {
	path := writeConfig(t, "hooks:\n  webhooks:\n    - \"no-equals-sign\"\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "expected event_type=target")
}

func TestParseAssignment(t *testing.T) {
	eventType, target := ParseAssignment("timer_fired=https://example.invalid/hook")
	require.Equal(t, "timer_fired", eventType)
	require.Equal(t, "https://example.invalid/hook", target)

	eventType, target = ParseAssignment("no-equals-sign")
	require.Empty(t, eventType)
	require.Empty(t, target)
}

func TestDefaultNeedsNoFile(t *testing.T) {
	cfg := Default()
	require.Equal(t, ":9000", cfg.Server.Listen)
	require.Equal(t, "info", cfg.Logging.Level)
}
