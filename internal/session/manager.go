// Package session manages named remote-shell sessions hosted in a
// shared tmux server: lifecycle, sanitized screen capture, bounded
// poll synchronization, and file transfer over the shell channel.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/ssh-deck/internal/logging"
	"github.com/asheshgoplani/ssh-deck/internal/store"
	"github.com/asheshgoplani/ssh-deck/internal/term"
	"github.com/asheshgoplani/ssh-deck/internal/tmux"
)

var sessLog = logging.ForComponent(logging.CompSession)

// ErrNotFound is returned when an operation references a session id
// with no live backing window.
var ErrNotFound = errors.New("session not found")

// placeholderWindows are the default window names a fresh tmux session
// spawns. They are killed opportunistically so the container actually
// empties out when the last real session closes.
var placeholderWindows = map[string]bool{
	"0":    true,
	"bash": true,
	"fish": true,
	"zsh":  true,
}

// Options configures a Manager. The zero value gets sensible defaults.
type Options struct {
	// ContainerName is the tmux session hosting all windows.
	ContainerName string

	// CaptureLines is the snapshot tail length (default 40).
	CaptureLines int

	// HistoryLines is the scrollback depth for file reads (default 2000).
	HistoryLines int

	// SendBudget is the total poll budget after sending a command
	// (default 2s).
	SendBudget time.Duration

	// PollInterval is the capture cadence inside SendAndAwait
	// (default 200ms).
	PollInterval time.Duration

	// ReadAttempts is the number of marker polls for file reads
	// (default 10).
	ReadAttempts int

	// ReadInterval is the pause between marker polls (default 500ms).
	ReadInterval time.Duration
}

func (o *Options) applyDefaults() {
	if o.ContainerName == "" {
		o.ContainerName = tmux.DefaultContainerName
	}
	if o.CaptureLines <= 0 {
		o.CaptureLines = 40
	}
	if o.HistoryLines <= 0 {
		o.HistoryLines = 2000
	}
	if o.SendBudget <= 0 {
		o.SendBudget = 2 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 200 * time.Millisecond
	}
	if o.ReadAttempts <= 0 {
		o.ReadAttempts = 10
	}
	if o.ReadInterval <= 0 {
		o.ReadInterval = 500 * time.Millisecond
	}
}

// Info describes one live session for listings.
type Info struct {
	ID        string
	Host      string
	User      string
	Port      int
	CreatedAt time.Time
}

// Manager owns the mapping from session ids to tmux windows. All
// operations are synchronous; callers must serialize operations on the
// same session id themselves, since interleaved keystrokes into one
// terminal have no defined merge semantics.
type Manager struct {
	opts Options
	db   *store.DB // optional metadata store, may be nil
}

// NewManager creates a Manager. db may be nil to run without
// persistence.
func NewManager(opts Options, db *store.DB) *Manager {
	opts.applyDefaults()
	return &Manager{opts: opts, db: db}
}

// container re-resolves the shared tmux session on every call. The
// container may have been created or destroyed by a previous call or
// another process; caching a handle would go stale.
func (m *Manager) container() tmux.Container {
	return tmux.NewContainer(m.opts.ContainerName)
}

// Open resolves connection parameters, creates a window running the
// ssh command directly, and returns the new session id. It does not
// wait for the connection to establish: the first snapshot shows
// whatever the connection attempt printed.
func (m *Manager) Open(ctx context.Context, host, user string, port int) (string, error) {
	ep := Resolve(ctx, host, user, port)

	id := ep.Destination() + "-" + shortID(4)

	c := m.container()
	w, err := c.NewWindow(id, ep.SSHCommand())
	if err != nil {
		return "", err
	}

	// A fresh container comes with a placeholder shell window. Kill any
	// such leftovers (never the window just created) so the container
	// can actually become empty when real sessions close. Best-effort:
	// a failure here must not fail the open.
	m.reapPlaceholders(c, w.Name)

	if m.db != nil {
		row := store.SessionRow{
			ID:        id,
			Host:      ep.Host,
			User:      ep.User,
			Port:      ep.Port,
			CreatedAt: time.Now(),
		}
		if err := m.db.SaveSession(row); err != nil {
			sessLog.Warn("session_record_failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}

	sessLog.Info("session_opened", slog.String("id", id), slog.String("host", ep.Host))
	return id, nil
}

func (m *Manager) reapPlaceholders(c tmux.Container, keep string) {
	names, err := c.Windows()
	if err != nil {
		return
	}
	for _, name := range names {
		if name != keep && placeholderWindows[name] {
			w, ok := c.Window(name)
			if !ok {
				continue
			}
			if err := w.Kill(); err != nil {
				sessLog.Debug("placeholder_reap_failed", slog.String("window", name), slog.String("error", err.Error()))
			}
		}
	}
}

// List enumerates live sessions in window order, enriched with stored
// metadata when available. Order is not guaranteed stable across calls.
func (m *Manager) List() ([]Info, error) {
	names, err := m.container().Windows()
	if err != nil {
		return nil, err
	}

	var out []Info
	for _, name := range names {
		if placeholderWindows[name] {
			continue
		}
		info := Info{ID: name}
		if m.db != nil {
			if row, ok, err := m.db.Get(name); err == nil && ok {
				info.Host = row.Host
				info.User = row.User
				info.Port = row.Port
				info.CreatedAt = row.CreatedAt
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// Close kills the session's window. A missing window is a no-op, not
// an error. When the container afterwards holds no windows, or only a
// bare placeholder shell, the container itself is torn down so the
// tmux server process does not leak.
func (m *Manager) Close(id string) error {
	c := m.container()

	if w, ok := c.Window(id); ok {
		if err := w.Kill(); err != nil {
			return err
		}
	}

	if m.db != nil {
		if err := m.db.MarkClosed(id); err != nil {
			sessLog.Warn("session_close_record_failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}

	names, err := c.Windows()
	if err != nil {
		return nil
	}
	empty := len(names) == 0
	onlyPlaceholder := len(names) == 1 && placeholderWindows[names[0]]
	if c.Exists() && (empty || onlyPlaceholder) {
		if err := c.Kill(); err != nil {
			sessLog.Warn("container_teardown_failed", slog.String("error", err.Error()))
		}
	}

	sessLog.Info("session_closed", slog.String("id", id))
	return nil
}

// Snapshot captures the visible tail of the session screen,
// normalized. A missing session yields descriptive text rather than
// an error at this layer; the serving boundary decides how to report.
func (m *Manager) Snapshot(id string, lines int) string {
	text, err := m.capture(id, lines)
	if err != nil {
		return fmt.Sprintf("Error: Session %s not found.", id)
	}
	return text
}

// SnapshotWithHints is Snapshot plus the completion annotation for
// whichever heuristic fired, if any.
func (m *Manager) SnapshotWithHints(id string, lines int) string {
	snapshot := m.Snapshot(id, lines)
	return snapshot + Classify(snapshot).Hint()
}

// capture fetches and sanitizes visible pane content, trimmed to the
// last `lines` lines. File reads bypass this and capture scrollback
// directly, since their marker may have scrolled past the screen.
func (m *Manager) capture(id string, lines int) (string, error) {
	w, ok := m.container().Window(id)
	if !ok {
		return "", ErrNotFound
	}

	raw, err := w.Capture()
	if err != nil {
		return "", err
	}

	if lines <= 0 {
		lines = m.opts.CaptureLines
	}
	raw = tailLines(raw, lines)
	return term.Normalize(raw), nil
}

// Send forwards keystrokes plus a terminating newline to the session.
// No validation happens here; command safety is the caller's concern.
func (m *Manager) Send(id, command string) error {
	w, ok := m.container().Window(id)
	if !ok {
		return ErrNotFound
	}
	return w.SendLine(command)
}

// SendAndAwait sends a command and polls the screen until a completion
// heuristic fires or the budget expires, returning the last annotated
// snapshot either way. The bounded poll is the contract: the caller
// always gets something within a fixed latency ceiling, and the
// annotation says which heuristic (if any) fired.
func (m *Manager) SendAndAwait(ctx context.Context, id, command string, lines int) (string, error) {
	if err := m.Send(id, command); err != nil {
		return "", err
	}

	// Limiter primed empty so the first capture waits one interval:
	// an immediate capture would only ever see the echoed command.
	limiter := rate.NewLimiter(rate.Every(m.opts.PollInterval), 1)
	limiter.Allow()

	deadline := time.Now().Add(m.opts.SendBudget)
	snapshot := ""
	for time.Now().Before(deadline) {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		snapshot = m.Snapshot(id, lines)
		if c := Classify(snapshot); c != Unclassified {
			return snapshot + c.Hint(), nil
		}
	}
	return snapshot + Classify(snapshot).Hint(), nil
}

// ReadFile reads a remote file through the session using only shell
// primitives: `cat` bracketed by a unique marker echo. The capture is
// scanned for the marker; content is everything between its first
// occurrence (trailing the echoed command line) and its second (from
// the echo after cat completes). A single occurrence falls back to
// everything above the marker line. Exhausting the attempts returns
// "" — a reported timeout/no-content outcome, not an error.
//
// The framing is load-bearing for callers; do not change it.
func (m *Manager) ReadFile(ctx context.Context, id, path string) (string, error) {
	w, ok := m.container().Window(id)
	if !ok {
		return "", ErrNotFound
	}

	marker := newMarker()
	// Leading space keeps the command out of shell history where that
	// convention is honored.
	cmd := fmt.Sprintf(" cat %s && echo %s", path, marker)
	if err := w.SendLine(cmd); err != nil {
		return "", err
	}

	limiter := rate.NewLimiter(rate.Every(m.opts.ReadInterval), 1)
	limiter.Allow()

	for attempt := 0; attempt < m.opts.ReadAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		raw, err := w.CaptureHistory(m.opts.HistoryLines)
		if err != nil {
			continue
		}
		if !strings.Contains(raw, marker) {
			continue
		}

		if content, ok := ExtractBetweenMarkers(raw, marker); ok {
			return content, nil
		}
	}

	sessLog.Debug("file_read_timeout", slog.String("id", id), slog.String("path", path))
	return "", nil
}

// ExtractBetweenMarkers applies the two-marker framing to a capture.
// Exported for the framing tests; the polling wrapper is ReadFile.
func ExtractBetweenMarkers(capture, marker string) (string, bool) {
	parts := strings.Split(capture, marker)
	if len(parts) >= 3 {
		return strings.TrimSpace(term.Normalize(parts[1])), true
	}
	if len(parts) == 2 {
		lines := strings.Split(capture, "\n")
		for i, line := range lines {
			if strings.Contains(line, marker) {
				if i > 0 {
					return strings.TrimSpace(term.Normalize(strings.Join(lines[:i], "\n"))), true
				}
				break
			}
		}
	}
	return "", false
}

// WriteFile writes content to a remote file through the session.
// Base64 transport sidesteps shell quoting entirely. No readback
// happens here; callers wanting confirmation should ReadFile after.
func (m *Manager) WriteFile(id, path, content string, appendTo bool) error {
	w, ok := m.container().Window(id)
	if !ok {
		return ErrNotFound
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	tee := "tee"
	if appendTo {
		tee = "tee -a"
	}
	cmd := fmt.Sprintf(" echo '%s' | base64 -d | %s %s > /dev/null", encoded, tee, path)
	return w.SendLine(cmd)
}

// tailLines returns the last n lines of text.
func tailLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

// shortID returns n hex characters of a fresh UUID.
func shortID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(id) {
		n = len(id)
	}
	return id[:n]
}

// newMarker mints the sentinel embedded in file-read commands. Markers
// are scoped to one read and never reused.
func newMarker() string {
	return fmt.Sprintf("__MCP_EOF_%s__", shortID(8))
}
