package session

import (
	"strings"
	"testing"
)

func TestExtractBetweenMarkers_TwoMarkers(t *testing.T) {
	marker := "__MCP_EOF_deadbeef__"
	capture := strings.Join([]string{
		"user@host:~$  cat /etc/motd && echo " + marker,
		"file content",
		marker,
		"user@host:~$ ",
	}, "\n")

	got, ok := ExtractBetweenMarkers(capture, marker)
	if !ok {
		t.Fatal("extraction failed")
	}
	if got != "file content" {
		t.Errorf("content = %q, want %q", got, "file content")
	}
}

func TestExtractBetweenMarkers_MultilineContent(t *testing.T) {
	marker := "__MCP_EOF_cafef00d__"
	capture := "$ cat f && echo " + marker + "\nline one\nline two\n" + marker + "\n$ "

	got, ok := ExtractBetweenMarkers(capture, marker)
	if !ok {
		t.Fatal("extraction failed")
	}
	if got != "line one\nline two" {
		t.Errorf("content = %q", got)
	}
}

func TestExtractBetweenMarkers_SingleMarkerFallback(t *testing.T) {
	// The echoed command line scrolled out of the capture: only the
	// marker printed after the content remains. Everything above the
	// marker line is the best-effort content.
	marker := "__MCP_EOF_0badf00d__"
	capture := "tail of file content\nlast line\n" + marker + "\nuser@host:~$ "

	got, ok := ExtractBetweenMarkers(capture, marker)
	if !ok {
		t.Fatal("fallback extraction failed")
	}
	if got != "tail of file content\nlast line" {
		t.Errorf("content = %q", got)
	}
}

func TestExtractBetweenMarkers_MarkerOnFirstLine(t *testing.T) {
	// A single occurrence with nothing above it means the echo of the
	// command itself: not extractable yet, keep polling.
	marker := "__MCP_EOF_12345678__"
	capture := "$ cat f && echo " + marker

	if _, ok := ExtractBetweenMarkers(capture, marker); ok {
		t.Error("extraction succeeded on command echo alone")
	}
}

func TestExtractBetweenMarkers_NoMarker(t *testing.T) {
	if _, ok := ExtractBetweenMarkers("plain output", "__MCP_EOF_ffffffff__"); ok {
		t.Error("extraction succeeded without marker")
	}
}

func TestExtractBetweenMarkers_StripsEscapes(t *testing.T) {
	marker := "__MCP_EOF_abcdef01__"
	capture := "$ cat f && echo " + marker + "\n\x1b[32mgreen content\x1b[0m\n" + marker + "\n$ "

	got, ok := ExtractBetweenMarkers(capture, marker)
	if !ok {
		t.Fatal("extraction failed")
	}
	if got != "green content" {
		t.Errorf("content = %q, want sanitized text", got)
	}
}

func TestNewMarker(t *testing.T) {
	a, b := newMarker(), newMarker()
	if a == b {
		t.Error("markers must be unique per read")
	}
	if !strings.HasPrefix(a, "__MCP_EOF_") || !strings.HasSuffix(a, "__") {
		t.Errorf("marker format = %q", a)
	}
	// prefix + 8 hex chars + suffix
	if len(a) != len("__MCP_EOF_")+8+len("__") {
		t.Errorf("marker length = %d", len(a))
	}
}
