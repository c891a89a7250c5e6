package validate

import (
	"strings"
	"testing"
)

func TestLimiter_PassThrough(t *testing.T) {
	l := NewLimiter(10)

	out, ok := l.Add("abcde")
	if out != "abcde" || !ok {
		t.Fatalf("Add = (%q, %v), want (abcde, true)", out, ok)
	}
	if l.Truncated() {
		t.Error("truncated before ceiling reached")
	}
}

func TestLimiter_Truncates(t *testing.T) {
	l := NewLimiter(10)

	if _, ok := l.Add("abcde"); !ok {
		t.Fatal("first chunk rejected")
	}

	out, ok := l.Add("fghijklmnopqrst")
	if ok {
		t.Error("continue = true after ceiling crossed")
	}
	if !strings.HasPrefix(out, "fghij") {
		t.Errorf("truncated chunk = %q, want fghij prefix", out)
	}
	if !strings.Contains(out, "[OUTPUT TRUNCATED: Maximum output size of 10 bytes exceeded]") {
		t.Errorf("missing truncation annotation in %q", out)
	}
	if !l.Truncated() {
		t.Error("Truncated() = false after truncation")
	}

	// Nothing more comes out once truncated.
	out, ok = l.Add("more")
	if out != "" || ok {
		t.Errorf("Add after truncation = (%q, %v), want (\"\", false)", out, ok)
	}
}

func TestLimiter_ExactFit(t *testing.T) {
	l := NewLimiter(5)
	out, ok := l.Add("abcde")
	if out != "abcde" || !ok {
		t.Fatalf("Add = (%q, %v), want full chunk and continue", out, ok)
	}
	out, ok = l.Add("f")
	if ok || strings.Contains(out, "f") {
		t.Errorf("Add past exact fit = (%q, %v), want no content", out, ok)
	}
}

func TestLimiter_UTF8Boundary(t *testing.T) {
	// Ceiling lands mid-rune: the cut backs off to a valid boundary.
	l := NewLimiter(3)
	out, _ := l.Add("abéé") // 1 + 1 + 2 + 2 bytes
	content := strings.SplitN(out, "\n\n[OUTPUT", 2)[0]
	if content != "ab" {
		t.Errorf("cut content = %q, want %q", content, "ab")
	}
}

func TestLimiter_InteriorInvalidByte(t *testing.T) {
	// Captures can carry invalid bytes mid-stream (binary output,
	// charset mismatches). The cut must keep the valid content after
	// them; only a rune split by the ceiling itself gets trimmed.
	l := NewLimiter(10)
	out, _ := l.Add("ab\xffcdefghijklmnopqrst")
	content := strings.SplitN(out, "\n\n[OUTPUT", 2)[0]
	if content != "ab\xffcdefghi" {
		t.Errorf("cut content = %q, want %q", content, "ab\xffcdefghi")
	}
}

func TestLimiter_LeadingInvalidByte(t *testing.T) {
	l := NewLimiter(5)
	out, _ := l.Add("\xffabcdefgh")
	content := strings.SplitN(out, "\n\n[OUTPUT", 2)[0]
	if content != "\xffabcd" {
		t.Errorf("cut content = %q, want %q", content, "\xffabcd")
	}
}

func TestCap(t *testing.T) {
	if got := Cap("hello", 100); got != "hello" {
		t.Errorf("Cap small = %q", got)
	}
	got := Cap(strings.Repeat("x", 20), 10)
	if !strings.Contains(got, "[OUTPUT TRUNCATED") {
		t.Errorf("Cap large missing annotation: %q", got)
	}
}
