package validate

import (
	"fmt"
	"unicode/utf8"
)

// DefaultMaxOutputSize is the default ceiling on any single blob
// returned to a caller (10 MiB).
const DefaultMaxOutputSize = 10 * 1024 * 1024

// Limiter bounds the cumulative size of emitted output. It is shaped
// for streaming accumulation even though current callers feed it a
// single blob: once the ceiling is crossed, the truncated remainder is
// emitted with an annotation and every later Add returns nothing.
type Limiter struct {
	maxSize     int
	currentSize int
	truncated   bool
}

// NewLimiter creates a Limiter with the given ceiling in bytes.
// Non-positive values fall back to DefaultMaxOutputSize.
func NewLimiter(maxSize int) *Limiter {
	if maxSize <= 0 {
		maxSize = DefaultMaxOutputSize
	}
	return &Limiter{maxSize: maxSize}
}

// Add accounts a chunk against the ceiling and returns the text to
// emit plus whether the caller should keep feeding chunks.
func (l *Limiter) Add(chunk string) (string, bool) {
	if l.truncated {
		return "", false
	}

	chunkSize := len(chunk)
	if l.currentSize+chunkSize <= l.maxSize {
		l.currentSize += chunkSize
		return chunk, true
	}

	remaining := l.maxSize - l.currentSize
	l.currentSize = l.maxSize
	l.truncated = true

	if remaining <= 0 {
		return "", false
	}
	// Trim only a trailing rune the cut split in half. Invalid bytes
	// already inside the capture stay as captured; the content after
	// them is still valid output.
	cut := trimPartialRune(chunk[:remaining])
	annotation := fmt.Sprintf("\n\n[OUTPUT TRUNCATED: Maximum output size of %d bytes exceeded]", l.maxSize)
	return cut + annotation, false
}

// trimPartialRune drops an incomplete multi-byte rune from the end of
// s, scanning back at most one rune's worth of continuation bytes.
func trimPartialRune(s string) string {
	for i := 1; i <= utf8.UTFMax && i <= len(s); i++ {
		b := s[len(s)-i]
		if b < 0x80 {
			return s
		}
		if b >= 0xC0 {
			if r, size := utf8.DecodeRuneInString(s[len(s)-i:]); r == utf8.RuneError && size <= 1 {
				return s[:len(s)-i]
			}
			return s
		}
		// Continuation byte, keep scanning backward.
	}
	return s
}

// Truncated reports whether the ceiling has been reached.
func (l *Limiter) Truncated() bool {
	return l.truncated
}

// Cap truncates a single blob against a fresh limiter with the given
// ceiling. Convenience for the common one-shot case.
func Cap(text string, maxSize int) string {
	out, _ := NewLimiter(maxSize).Add(text)
	return out
}
