// Package term normalizes raw terminal capture output into plain text.
//
// tmux capture-pane hands back whatever the application wrote,
// including color/cursor escape sequences, shell-integration markers,
// and stray control bytes. Normalize strips all of it so callers see
// only the visible text.
package term

import (
	"regexp"

	"github.com/charmbracelet/x/ansi"
)

// Cleanup passes applied after the ANSI strip, in order. Each pattern
// is a pure removal; the pipeline runs to a fixed point because one
// removal can expose a new match (e.g. "<1\x012>" loses the control
// byte and becomes "<12>").
var cleanupPasses = []*regexp.Regexp{
	// CSI sequences a partial capture may have left behind
	regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`),
	// OSC sequences, both BEL- and ST-terminated
	regexp.MustCompile(`\x1b\][^\x07]*\x07`),
	regexp.MustCompile(`\x1b\][^\x1b]*\x1b\\`),
	// DCS/SOS/PM/APC string sequences
	regexp.MustCompile(`\x1b[PX^_][^\x1b]*\x1b\\`),
	// Shell-integration noise (fish/iTerm emit <N> markers)
	regexp.MustCompile(`<\d+>`),
	// Carriage returns, NUL, and glyphs some shells draw for them
	regexp.MustCompile("[\r\x00␌⏎]"),
	// Any remaining single control byte outside printable range
	regexp.MustCompile(`[\x01-\x08\x0b\x0c\x0e-\x1f\x7f]`),
}

// Normalize strips escape sequences, integration noise, and control
// bytes from raw capture text. Deterministic and idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	text := ansi.Strip(raw)
	for {
		next := text
		for _, re := range cleanupPasses {
			next = re.ReplaceAllString(next, "")
		}
		if next == text {
			return text
		}
		text = next
	}
}
