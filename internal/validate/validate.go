// Package validate classifies command lines before they are sent into a
// live terminal. Everything here is pure: a command string goes in, a
// verdict and a human-readable reason come out. Nothing is executed.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// rule pairs a pattern with the reason reported when it matches.
// Keeping the rule sets as ordered tables makes them auditable and
// testable one rule at a time.
type rule struct {
	re     *regexp.Regexp
	reason string
}

// backgroundRules block anything that would detach from the terminal.
// A backgrounded process has no screen to poll, so it can never be
// synchronized with again.
var backgroundRules = []rule{
	{regexp.MustCompile(`&\s*$`), "command ends with '&'"},
	{regexp.MustCompile(`(?i)\bnohup\b`), "invokes nohup"},
	{regexp.MustCompile(`(?i)\bdisown\b`), "invokes disown"},
}

// dangerousRules block destructive operations on the remote host.
// Only consulted when the caller asks for dangerous-pattern checking.
var dangerousRules = []rule{
	{regexp.MustCompile(`(?i)\bdd\s+.*of=/dev/`), "raw write to a block device"},
	{regexp.MustCompile(`:\(\)\{.*:\|:.*\};:`), "fork bomb"},
	{regexp.MustCompile(`(?i)\bmkfs\b`), "filesystem format"},
}

// rmRecursiveRoot captures the target of an rm -rf on an absolute path.
// RE2 has no lookahead, so the safe-prefix exemption is checked in code.
var rmRecursiveRoot = regexp.MustCompile(`(?i)\brm\s+.*-rf\s+(/\S*)`)

// rmSafePrefixes are path prefixes exempt from the recursive-delete rule.
var rmSafePrefixes = []string{"/home", "/tmp"}

// isDangerousRecursiveDelete reports rm -rf invocations rooted outside
// the safe prefixes.
func isDangerousRecursiveDelete(command string) bool {
	m := rmRecursiveRoot.FindStringSubmatch(command)
	if m == nil {
		return false
	}
	for _, prefix := range rmSafePrefixes {
		if strings.HasPrefix(m[1], prefix) {
			return false
		}
	}
	return true
}

// segmentSplit separates a compound command line into the simple
// commands the shell would run.
var segmentSplit = regexp.MustCompile(`\|\||&&|;|\|`)

// envAssign matches a leading VAR=value token.
var envAssign = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// wrappers are commands that run another command; the real executable
// is the first token after them (skipping their flags).
var wrappers = map[string]bool{
	"sudo":    true,
	"command": true,
	"env":     true,
	"builtin": true,
	"exec":    true,
	"nohup":   true,
}

// screenSafeFlags are the read-only discovery invocations of GNU screen
// allowed in PTY-aware mode.
var screenSafeFlags = map[string]bool{
	"-ls":       true,
	"-list":     true,
	"-wipe":     true,
	"-v":        true,
	"-version":  true,
	"--version": true,
}

// Validate classifies a command as safe to send to a session.
// Rules are evaluated in order and the first match wins:
// background execution, multiplexer re-entry (tmux/screen), then
// dangerous patterns when checkDangerous is set. In ptyAware mode
// read-only multiplexer discovery commands (list-sessions etc.) pass.
//
// Returns (true, "") for allowed commands; blocked commands always
// carry a reason.
func Validate(command string, checkDangerous, ptyAware bool) (bool, string) {
	for _, r := range backgroundRules {
		if r.re.MatchString(command) {
			return false, fmt.Sprintf("Background process blocked: %s. Background processes are not allowed.", r.reason)
		}
	}

	if containsBlockedInvocation(command, "tmux", ptyAware) {
		return false, "Background/interactive tmux invocation blocked. Use non-interactive file/inspection commands instead."
	}
	if containsBlockedInvocation(command, "screen", ptyAware) {
		return false, "Background/interactive screen invocation blocked. Use non-interactive file/inspection commands instead."
	}

	if checkDangerous {
		if isDangerousRecursiveDelete(command) {
			return false, "Dangerous command blocked: recursive delete outside /home or /tmp. This operation is not allowed for safety."
		}
		for _, r := range dangerousRules {
			if r.re.MatchString(command) {
				return false, fmt.Sprintf("Dangerous command blocked: %s. This operation is not allowed for safety.", r.reason)
			}
		}
	}

	return true, ""
}

// containsBlockedInvocation reports whether any simple command in the
// line actually invokes the named multiplexer binary. Token-level
// analysis avoids false positives on paths that merely contain the
// name (e.g. ~/.tmux.conf).
func containsBlockedInvocation(command, binary string, ptyAware bool) bool {
	for _, segment := range segmentSplit.Split(command, -1) {
		tokens := safeSplit(segment)
		if len(tokens) == 0 {
			continue
		}

		idx, ok := invokedCommandIndex(tokens)
		if !ok {
			continue
		}

		executable := strings.ToLower(baseName(tokens[idx]))
		if executable != binary {
			continue
		}

		args := make([]string, 0, len(tokens)-idx-1)
		for _, t := range tokens[idx+1:] {
			args = append(args, strings.ToLower(t))
		}

		switch binary {
		case "tmux":
			if blockedTmuxUsage(args, !ptyAware) {
				return true
			}
		case "screen":
			if blockedScreenUsage(args, !ptyAware) {
				return true
			}
		}
	}
	return false
}

// safeSplit tokenizes with shell-quoting rules, falling back to
// whitespace splitting on malformed quoting.
func safeSplit(segment string) []string {
	tokens, err := shlex.Split(strings.TrimSpace(segment))
	if err != nil {
		return strings.Fields(segment)
	}
	return tokens
}

// invokedCommandIndex finds the token that names the executable,
// skipping environment assignments and wrapper commands with their
// leading flags.
func invokedCommandIndex(tokens []string) (int, bool) {
	i := 0
	for i < len(tokens) {
		token := tokens[i]
		if envAssign.MatchString(token) {
			i++
			continue
		}
		if wrappers[token] {
			i++
			for i < len(tokens) && strings.HasPrefix(tokens[i], "-") {
				i++
			}
			continue
		}
		return i, true
	}
	return 0, false
}

func baseName(path string) string {
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

// blockedTmuxUsage decides whether a tmux invocation with the given
// arguments must be blocked. In strict mode every invocation is
// blocked; otherwise only session-starting/attaching forms are.
func blockedTmuxUsage(args []string, strict bool) bool {
	if strict {
		return true
	}

	// Bare tmux attaches an interactive session.
	if len(args) == 0 {
		return true
	}

	var subcommand string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			subcommand = arg
			break
		}
	}

	switch subcommand {
	case "attach", "attach-session", "a", "new", "new-session", "n":
		return true
	}
	return false
}

// blockedScreenUsage mirrors blockedTmuxUsage for GNU screen, which is
// flag-driven rather than subcommand-driven: anything beyond the
// read-only discovery flags is blocked.
func blockedScreenUsage(args []string, strict bool) bool {
	if strict {
		return true
	}

	if len(args) == 0 {
		return true
	}

	for _, arg := range args {
		if !screenSafeFlags[arg] {
			return true
		}
	}
	return false
}
