package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	assert.Equal(t, "mcp-ssh", cfg.Tmux.ContainerName)
	assert.Equal(t, 40, cfg.Capture.Lines)
	assert.Equal(t, 2000, cfg.Capture.HistoryLines)
	assert.Equal(t, 10*1024*1024, cfg.Capture.MaxOutputBytes)
	assert.Equal(t, 2*time.Second, cfg.Sync.SendBudget())
	assert.Equal(t, 200*time.Millisecond, cfg.Sync.PollInterval())
	assert.Equal(t, 10, cfg.Sync.ReadAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.ReadInterval())
	assert.True(t, cfg.Validation.GetCheckDangerous())
	assert.True(t, cfg.Validation.GetPtyAware())
	assert.Equal(t, "info", cfg.Logs.Level)
	assert.Equal(t, "json", cfg.Logs.Format)
	assert.True(t, cfg.Logs.GetCompress())
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[tmux]
container_name = "work-deck"

[capture]
lines = 100

[sync]
send_budget_ms = 5000

[validation]
check_dangerous = false

[logs]
level = "debug"
format = "text"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "work-deck", cfg.Tmux.ContainerName)
	assert.Equal(t, 100, cfg.Capture.Lines)
	assert.Equal(t, 5*time.Second, cfg.Sync.SendBudget())
	assert.False(t, cfg.Validation.GetCheckDangerous())
	// Unset sections still default.
	assert.True(t, cfg.Validation.GetPtyAware())
	assert.Equal(t, 2000, cfg.Capture.HistoryLines)
	assert.Equal(t, "debug", cfg.Logs.Level)
	assert.Equal(t, "text", cfg.Logs.Format)
}

func TestLoadMalformedReturnsDefaultsAndError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[tmux\nbroken"), 0o600))

	cfg, err := Load(path)
	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "mcp-ssh", cfg.Tmux.ContainerName)
}

func TestDirHonorsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SSH_DECK_DIR", dir)

	got, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestCreateExample(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SSH_DECK_DIR", dir)

	require.NoError(t, CreateExample())

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[capture]")

	// Must parse cleanly and must never clobber an existing file.
	_, err = Load(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("# mine\n"), 0o600))
	require.NoError(t, CreateExample())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))
}

func TestWatcherFiresOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[capture]\nlines = 40\n"), 0o600))

	changed := make(chan struct{}, 1)
	w, err := NewWatcher(path, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[capture]\nlines = 80\n"), 0o600))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not fire after write")
	}
}
