// Package config loads user configuration for ssh-deck from a TOML
// file under ~/.ssh-deck.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/asheshgoplani/ssh-deck/internal/validate"
)

// FileName is the TOML config file for user preferences
const FileName = "config.toml"

// Config represents user-facing configuration in TOML format
type Config struct {
	// Tmux defines the shared tmux container settings
	Tmux TmuxSettings `toml:"tmux"`

	// Capture defines snapshot and scrollback settings
	Capture CaptureSettings `toml:"capture"`

	// Sync defines the bounded-poll timing for command sends and
	// marker-based file reads
	Sync SyncSettings `toml:"sync"`

	// Validation defines the command safety gate settings
	Validation ValidationSettings `toml:"validation"`

	// Logs defines structured log settings
	Logs LogSettings `toml:"logs"`
}

// TmuxSettings defines the shared tmux container configuration
type TmuxSettings struct {
	// ContainerName is the tmux session that hosts all windows
	// Default: "mcp-ssh"
	ContainerName string `toml:"container_name"`
}

// CaptureSettings defines snapshot and scrollback configuration
type CaptureSettings struct {
	// Lines is the default snapshot tail length (default: 40)
	Lines int `toml:"lines"`

	// HistoryLines is the scrollback depth captured for file reads
	// (default: 2000)
	HistoryLines int `toml:"history_lines"`

	// MaxOutputBytes caps the size of any text returned to a client
	// (default: 10485760, i.e. 10MB)
	MaxOutputBytes int `toml:"max_output_bytes"`
}

// SyncSettings defines the bounded-poll timing configuration
type SyncSettings struct {
	// SendBudgetMS is the total wait budget after sending a command,
	// in milliseconds (default: 2000)
	SendBudgetMS int `toml:"send_budget_ms"`

	// PollIntervalMS is the capture cadence while waiting, in
	// milliseconds (default: 200)
	PollIntervalMS int `toml:"poll_interval_ms"`

	// ReadAttempts is the number of marker polls for file reads
	// (default: 10)
	ReadAttempts int `toml:"read_attempts"`

	// ReadIntervalMS is the pause between marker polls, in
	// milliseconds (default: 500)
	ReadIntervalMS int `toml:"read_interval_ms"`
}

// ValidationSettings defines the command safety gate configuration
type ValidationSettings struct {
	// CheckDangerous enables the dangerous-pattern rules (rm -rf on
	// system paths, dd to devices, fork bombs, mkfs)
	// Default: true (pointer to distinguish "not set" from "explicitly false")
	CheckDangerous *bool `toml:"check_dangerous"`

	// PtyAware allows read-only tmux/screen inspection commands while
	// still blocking attach and new-session forms
	// Default: true (pointer to distinguish "not set" from "explicitly false")
	PtyAware *bool `toml:"pty_aware"`
}

// GetCheckDangerous returns whether dangerous-pattern checks run, defaulting to true
func (v *ValidationSettings) GetCheckDangerous() bool {
	if v.CheckDangerous == nil {
		return true
	}
	return *v.CheckDangerous
}

// GetPtyAware returns whether pty-aware relaxation applies, defaulting to true
func (v *ValidationSettings) GetPtyAware() bool {
	if v.PtyAware == nil {
		return true
	}
	return *v.PtyAware
}

// LogSettings defines structured log configuration
type LogSettings struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `toml:"level"`

	// Format sets the log format: "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB is the max size in MB for ssh-deck.log before rotation
	// Default: 10
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups is the number of rotated log files to keep
	// Default: 5
	MaxBackups int `toml:"max_backups"`

	// RetentionDays is the number of days to keep rotated logs
	// Default: 10
	RetentionDays int `toml:"retention_days"`

	// Compress enables gzip compression for rotated logs
	// Default: true (pointer to distinguish "not set" from "explicitly false")
	Compress *bool `toml:"compress"`
}

// GetCompress returns whether rotated logs are compressed, defaulting to true
func (l *LogSettings) GetCompress() bool {
	if l.Compress == nil {
		return true
	}
	return *l.Compress
}

// Dir returns the ssh-deck state directory, honoring SSH_DECK_DIR for
// tests and multi-profile setups.
func Dir() (string, error) {
	if dir := os.Getenv("SSH_DECK_DIR"); dir != "" {
		return expandTilde(dir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ssh-deck"), nil
}

// Path returns the path to the user config file
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the configuration file at path, or from the default
// location when path is empty. A missing file yields defaults, not an
// error; a malformed file yields defaults plus the parse error so the
// caller can surface it without dying.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return withDefaults(&Config{}), nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return withDefaults(&Config{}), nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return withDefaults(&Config{}), fmt.Errorf("config.toml parse error: %w", err)
	}
	return withDefaults(&cfg), nil
}

func withDefaults(cfg *Config) *Config {
	if cfg.Tmux.ContainerName == "" {
		cfg.Tmux.ContainerName = "mcp-ssh"
	}
	if cfg.Capture.Lines <= 0 {
		cfg.Capture.Lines = 40
	}
	if cfg.Capture.HistoryLines <= 0 {
		cfg.Capture.HistoryLines = 2000
	}
	if cfg.Capture.MaxOutputBytes <= 0 {
		cfg.Capture.MaxOutputBytes = validate.DefaultMaxOutputSize
	}
	if cfg.Sync.SendBudgetMS <= 0 {
		cfg.Sync.SendBudgetMS = 2000
	}
	if cfg.Sync.PollIntervalMS <= 0 {
		cfg.Sync.PollIntervalMS = 200
	}
	if cfg.Sync.ReadAttempts <= 0 {
		cfg.Sync.ReadAttempts = 10
	}
	if cfg.Sync.ReadIntervalMS <= 0 {
		cfg.Sync.ReadIntervalMS = 500
	}
	if cfg.Logs.Level == "" {
		cfg.Logs.Level = "info"
	}
	if cfg.Logs.Format == "" {
		cfg.Logs.Format = "json"
	}
	if cfg.Logs.MaxSizeMB <= 0 {
		cfg.Logs.MaxSizeMB = 10
	}
	if cfg.Logs.MaxBackups <= 0 {
		cfg.Logs.MaxBackups = 5
	}
	if cfg.Logs.RetentionDays <= 0 {
		cfg.Logs.RetentionDays = 10
	}
	return cfg
}

// SendBudget returns the poll budget as a duration.
func (s SyncSettings) SendBudget() time.Duration {
	return time.Duration(s.SendBudgetMS) * time.Millisecond
}

// PollInterval returns the capture cadence as a duration.
func (s SyncSettings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

// ReadInterval returns the marker poll pause as a duration.
func (s SyncSettings) ReadInterval() time.Duration {
	return time.Duration(s.ReadIntervalMS) * time.Millisecond
}

// CreateExample writes a commented example config file if none exists.
// An existing file is never overwritten.
func CreateExample() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	example := `# ssh-deck User Configuration
# This file is loaded on startup. Delete any section to use defaults.

# Shared tmux container that hosts all session windows
# [tmux]
# container_name = "mcp-ssh"

# Snapshot and scrollback settings
[capture]
# Default snapshot tail length in lines (default: 40)
lines = 40
# Scrollback depth captured for file reads (default: 2000)
history_lines = 2000
# Cap on any text returned to a client, in bytes (default: 10MB)
# max_output_bytes = 10485760

# Bounded-poll timing for command sends and file reads
[sync]
# Total wait budget after sending a command, ms (default: 2000)
send_budget_ms = 2000
# Capture cadence while waiting, ms (default: 200)
poll_interval_ms = 200
# Marker polls for file reads (default: 10)
read_attempts = 10
# Pause between marker polls, ms (default: 500)
read_interval_ms = 500

# Command safety gate
[validation]
# Block rm -rf on system paths, dd to devices, fork bombs (default: true)
check_dangerous = true
# Allow read-only tmux/screen inspection; attach stays blocked (default: true)
pty_aware = true

# Structured logs under the state directory
[logs]
# Minimum level: "debug", "info", "warn", "error" (default: "info")
level = "info"
# Format: "json" (default) or "text"
format = "json"
# Max log file size in MB before rotation (default: 10)
max_size_mb = 10
# Rotated files to keep (default: 5)
max_backups = 5
# Days to keep rotated logs (default: 10)
retention_days = 10
`

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(example), 0o600)
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
