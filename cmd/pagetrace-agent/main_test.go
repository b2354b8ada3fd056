package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/pagetrace/internal/logging"
	"github.com/vincentbai/pagetrace/internal/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

func TestConfigCommand(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "pagetrace.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server:\n  address: 127.0.0.1:9000\nanalytics:\n  api_secret: hunter2\n"), 0o600))

	out, err := run(t, "config", "--config", file)
	require.NoError(t, err)
	assert.Contains(t, out, "address: 127.0.0.1:9000")
	assert.Contains(t, out, "measurement_id: G-0Z8WEDB2LG")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigCommandRejectsInvalidFile(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "pagetrace.yaml")
	require.NoError(t, os.WriteFile(file, []byte("tracking:\n  section_threshold: 2\n"), 0o600))

	_, err := run(t, "config", "--config", file)
	assert.Error(t, err)
}

func TestLogOutputFile(t *testing.T) {
	dir := isolate(t)
	logFile := filepath.Join(dir, "agent.log")
	t.Setenv("PAGETRACE_LOG_OUTPUT", logFile)

	_, err := run(t, "config")
	require.NoError(t, err)
	_, err = os.Stat(logFile)
	assert.NoError(t, err)
}

func TestCallsCommand(t *testing.T) {
	dir := isolate(t)
	dbPath := filepath.Join(dir, "data", "events.db")
	t.Setenv("PAGETRACE_DATABASE_PATH", dbPath)

	db, err := openDatabase(dbPath, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, db.InsertCalls([]models.Call{
		{TSUTC: 1, TSISO: "1970-01-01T00:00:00Z", ClientID: "tab-1", Command: models.CommandConfig, Target: "G-0Z8WEDB2LG", Params: map[string]any{"page_path": "/"}},
		{TSUTC: 2, TSISO: "1970-01-01T00:00:00Z", ClientID: "tab-2", Command: models.CommandEvent, Target: "window_focus", Params: map[string]any{"event_category": "engagement", "event_label": "window_focus"}},
	}))
	require.NoError(t, db.Close())

	out, err := run(t, "calls", "--client-id", "tab-2", "-o", "json")
	require.NoError(t, err)
	var calls []models.Call
	require.NoError(t, json.Unmarshal([]byte(out), &calls))
	require.Len(t, calls, 1)
	assert.Equal(t, "window_focus", calls[0].Target)

	out, err = run(t, "calls")
	require.NoError(t, err)
	assert.Contains(t, out, "page_path")
	assert.Contains(t, out, "window_focus")

	_, err = run(t, "calls", "-o", "xml")
	assert.Error(t, err)
}
