package session

import (
	"regexp"
	"strings"
)

// Completion is the heuristic classification of a screen snapshot.
// Terminal output carries no explicit completion signal, so this is
// advisory only: bounded polling is the real correctness mechanism,
// and callers must treat Unclassified results as equally valid.
type Completion int

const (
	// Unclassified means no heuristic fired.
	Unclassified Completion = iota
	// PromptDetected means the last line looks like a shell prompt,
	// so the command has likely finished.
	PromptDetected
	// AwaitingInput means the session appears blocked on interactive
	// input such as a password or confirmation.
	AwaitingInput
)

// PromptHint and AwaitingInputHint are the literal annotations
// appended to snapshots. Callers match on these strings; do not edit.
const (
	PromptHint        = "\n\n[INFO: A shell prompt was detected at the end of the screen. The command has likely finished.]"
	AwaitingInputHint = "\n\n[INFO: The session appears to be waiting for interactive input (e.g., a password or confirmation).]"
)

var (
	promptEndRe       = regexp.MustCompile(`[$#>%]\s*$`)
	interactiveWaitRe = regexp.MustCompile(`(?i)\[y/n\]|password:|passphrase:`)
)

// Classify inspects the last non-blank line of a snapshot. A
// prompt-like ending can false-positive on output that legitimately
// ends in $ or # — acceptable because the result is advisory.
func Classify(snapshot string) Completion {
	line := lastNonBlankLine(snapshot)
	if line == "" {
		return Unclassified
	}
	if promptEndRe.MatchString(line) {
		return PromptDetected
	}
	if interactiveWaitRe.MatchString(line) {
		return AwaitingInput
	}
	return Unclassified
}

// Hint returns the annotation for a classification, or "".
func (c Completion) Hint() string {
	switch c {
	case PromptDetected:
		return PromptHint
	case AwaitingInput:
		return AwaitingInputHint
	}
	return ""
}

func lastNonBlankLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}
