// Package tmux drives a shared tmux server over its CLI. One tmux
// session (the "container") holds one window per managed shell
// connection.
//
// The container is process-wide external state: it can be created or
// destroyed by any previous call or by another process, so handles are
// never cached. Every operation re-resolves the container by name.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/asheshgoplani/ssh-deck/internal/logging"
	"golang.org/x/sync/singleflight"
)

var log = logging.ForComponent(logging.CompTmux)

// ErrWindowNotFound is returned when a target window no longer exists.
var ErrWindowNotFound = errors.New("tmux window not found")

// ErrCaptureTimeout is returned when capture-pane exceeds its timeout.
var ErrCaptureTimeout = errors.New("capture-pane timed out")

// DefaultContainerName is the tmux session that hosts all managed windows.
const DefaultContainerName = "mcp-ssh"

// captureTimeout bounds a single capture-pane subprocess.
const captureTimeout = 3 * time.Second

// captureGroup deduplicates concurrent capture-pane subprocesses for
// the same target (poll loops and snapshot requests can overlap).
var captureGroup singleflight.Group

// IsAvailable checks that the tmux binary is installed and working.
func IsAvailable() error {
	out, err := exec.Command("tmux", "-V").CombinedOutput()
	if err != nil {
		return fmt.Errorf("tmux not found or not working: %w (output: %s)", err, string(out))
	}
	return nil
}

// Container identifies the shared tmux session by name. The zero
// value is unusable; obtain one via NewContainer.
type Container struct {
	Name string
}

// NewContainer returns a handle for the named tmux session. The
// session itself is created lazily by Ensure.
func NewContainer(name string) Container {
	if name == "" {
		name = DefaultContainerName
	}
	return Container{Name: name}
}

// target is the tmux -t argument for this session. The "=" pins tmux
// to an exact name match instead of prefix match.
func (c Container) target() string {
	return "=" + c.Name
}

// Exists reports whether the container session is currently alive.
func (c Container) Exists() bool {
	return exec.Command("tmux", "has-session", "-t", c.target()).Run() == nil
}

// Ensure creates the container session if it does not exist. The
// detached session starts with a placeholder window running the
// default shell; callers creating real windows kill it afterwards.
func (c Container) Ensure() error {
	if c.Exists() {
		return nil
	}
	out, err := exec.Command("tmux", "new-session", "-d", "-s", c.Name).CombinedOutput()
	if err != nil {
		// Lost the race against a concurrent Ensure: the session existing
		// is the outcome we wanted.
		if c.Exists() {
			return nil
		}
		return fmt.Errorf("failed to create tmux session %q: %w (output: %s)", c.Name, err, string(out))
	}
	log.Debug("container_created", slog.String("container", c.Name))
	return nil
}

// Kill tears down the container session and every window in it.
func (c Container) Kill() error {
	out, err := exec.Command("tmux", "kill-session", "-t", c.target()).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to kill tmux session %q: %w (output: %s)", c.Name, err, string(out))
	}
	log.Debug("container_killed", slog.String("container", c.Name))
	return nil
}

// Windows lists the window names in enumeration order. A missing
// container yields an empty list, not an error.
func (c Container) Windows() ([]string, error) {
	if !c.Exists() {
		return nil, nil
	}
	out, err := exec.Command("tmux", "list-windows", "-t", c.target(), "-F", "#{window_name}").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list windows: %w", err)
	}
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// NewWindow creates a detached window running command directly (no
// wrapping shell) and marks it remain-on-exit so a failed connection
// leaves its output inspectable instead of vanishing.
func (c Container) NewWindow(name, command string) (Window, error) {
	if err := c.Ensure(); err != nil {
		return Window{}, err
	}
	out, err := exec.Command("tmux", "new-window", "-d",
		"-t", c.target()+":", "-n", name, command).CombinedOutput()
	if err != nil {
		return Window{}, fmt.Errorf("failed to create window %q: %w (output: %s)", name, err, string(out))
	}

	w := Window{Container: c.Name, Name: name}
	if err := w.setRemainOnExit(); err != nil {
		log.Warn("remain_on_exit_failed", slog.String("window", name), slog.String("error", err.Error()))
	}
	log.Debug("window_created", slog.String("window", name), slog.String("command", command))
	return w, nil
}

// Window returns a handle for the named window and whether it exists.
func (c Container) Window(name string) (Window, bool) {
	names, err := c.Windows()
	if err != nil {
		return Window{}, false
	}
	for _, n := range names {
		if n == name {
			return Window{Container: c.Name, Name: name}, true
		}
	}
	return Window{}, false
}

// Window addresses one window inside the container.
type Window struct {
	Container string
	Name      string
}

// target is the tmux -t argument for this window.
func (w Window) target() string {
	return "=" + w.Container + ":" + w.Name
}

func (w Window) setRemainOnExit() error {
	return exec.Command("tmux", "set-option", "-w", "-t", w.target(), "remain-on-exit", "on").Run()
}

// Exists reports whether the window is still present.
func (w Window) Exists() bool {
	_, ok := Container{Name: w.Container}.Window(w.Name)
	return ok
}

// Kill destroys the window. Killing an absent window is an error at
// this layer; callers decide whether that matters.
func (w Window) Kill() error {
	out, err := exec.Command("tmux", "kill-window", "-t", w.target()).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to kill window %q: %w (output: %s)", w.Name, err, string(out))
	}
	log.Debug("window_killed", slog.String("window", w.Name))
	return nil
}

// Capture returns the visible pane content. Concurrent captures of
// the same window share one subprocess via singleflight.
func (w Window) Capture() (string, error) {
	return w.capture(0)
}

// CaptureHistory returns the pane content including the last
// historyLines lines of scrollback, for callers that need to see past
// the visible screen (e.g. marker scans over long file output).
func (w Window) CaptureHistory(historyLines int) (string, error) {
	return w.capture(historyLines)
}

func (w Window) capture(historyLines int) (string, error) {
	key := fmt.Sprintf("%s|%d", w.target(), historyLines)
	v, err, _ := captureGroup.Do(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), captureTimeout)
		defer cancel()

		// -p prints to stdout, -J joins wrapped lines.
		args := []string{"capture-pane", "-p", "-J", "-t", w.target()}
		if historyLines > 0 {
			args = append(args, "-S", fmt.Sprintf("-%d", historyLines))
		}
		out, err := exec.CommandContext(ctx, "tmux", args...).Output()
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return "", ErrCaptureTimeout
			}
			return "", fmt.Errorf("failed to capture pane: %w", err)
		}
		return string(out), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// SendLine sends keys as literal text followed by Enter. The two
// separate send-keys calls with a short delay are deliberate: tmux
// 3.2+ wraps literal sends in bracketed paste markers, and an Enter
// arriving in the same PTY buffer gets swallowed by some line editors.
func (w Window) SendLine(keys string) error {
	if err := w.SendKeys(keys); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return w.SendEnter()
}

// SendKeys sends literal text to the window. The -l flag prevents
// tmux from interpreting key names, and -- guards leading dashes.
func (w Window) SendKeys(keys string) error {
	out, err := exec.Command("tmux", "send-keys", "-l", "-t", w.target(), "--", keys).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to send keys: %w (output: %s)", err, string(out))
	}
	return nil
}

// SendEnter sends the Enter key.
func (w Window) SendEnter() error {
	out, err := exec.Command("tmux", "send-keys", "-t", w.target(), "Enter").CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to send enter: %w (output: %s)", err, string(out))
	}
	return nil
}
