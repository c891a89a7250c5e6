package tmux

import "testing"

func TestNewContainerDefaultsName(t *testing.T) {
	if c := NewContainer(""); c.Name != DefaultContainerName {
		t.Errorf("Name = %q, want %q", c.Name, DefaultContainerName)
	}
	if c := NewContainer("work"); c.Name != "work" {
		t.Errorf("Name = %q, want %q", c.Name, "work")
	}
}

func TestContainerTarget(t *testing.T) {
	// The leading "=" pins tmux to exact session-name matching;
	// without it "mcp-ssh" would also match "mcp-ssh-old". Every
	// session-addressing call, window creation included, must use it.
	c := NewContainer("mcp-ssh")
	if got := c.target(); got != "=mcp-ssh" {
		t.Errorf("target = %q", got)
	}
}

func TestWindowTarget(t *testing.T) {
	w := Window{Container: "mcp-ssh", Name: "admin@web-01-ab12"}
	if got := w.target(); got != "=mcp-ssh:admin@web-01-ab12" {
		t.Errorf("target = %q", got)
	}
}
