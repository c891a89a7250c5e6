package session

import (
	"strings"
	"testing"
)

func TestEndpointSSHCommand(t *testing.T) {
	cases := []struct {
		name string
		ep   Endpoint
		want string
	}{
		{
			name: "bare host",
			ep:   Endpoint{Host: "web-01"},
			want: "ssh web-01",
		},
		{
			name: "user and host",
			ep:   Endpoint{Host: "web-01", User: "admin"},
			want: "ssh admin@web-01",
		},
		{
			name: "default port omitted",
			ep:   Endpoint{Host: "web-01", User: "admin", Port: 22},
			want: "ssh admin@web-01",
		},
		{
			name: "custom port",
			ep:   Endpoint{Host: "web-01", Port: 2222},
			want: "ssh -p 2222 web-01",
		},
		{
			name: "stock identity omitted",
			ep:   Endpoint{Host: "web-01", IdentityFile: "~/.ssh/id_rsa"},
			want: "ssh web-01",
		},
		{
			name: "custom identity",
			ep:   Endpoint{Host: "web-01", IdentityFile: "/home/u/.ssh/deploy_key"},
			want: "ssh -i /home/u/.ssh/deploy_key web-01",
		},
		{
			name: "everything",
			ep:   Endpoint{Host: "10.0.0.5", User: "deploy", Port: 2200, IdentityFile: "/k"},
			want: "ssh -p 2200 -i /k deploy@10.0.0.5",
		},
	}
	for _, tc := range cases {
		if got := tc.ep.SSHCommand(); got != tc.want {
			t.Errorf("%s: SSHCommand() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestEndpointDestination(t *testing.T) {
	if got := (Endpoint{Host: "h", User: "u"}).Destination(); got != "u@h" {
		t.Errorf("Destination = %q", got)
	}
	if got := (Endpoint{Host: "h"}).Destination(); got != "h" {
		t.Errorf("Destination = %q", got)
	}
}

func TestSessionIDFormat(t *testing.T) {
	id := (Endpoint{Host: "web-01", User: "admin"}).Destination() + "-" + shortID(4)
	if !strings.HasPrefix(id, "admin@web-01-") {
		t.Errorf("id = %q", id)
	}
	suffix := id[strings.LastIndex(id, "-")+1:]
	if len(suffix) != 4 {
		t.Errorf("suffix = %q, want 4 hex chars", suffix)
	}
	for _, r := range suffix {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("suffix %q contains non-hex %q", suffix, r)
		}
	}
}

func TestShortID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := shortID(8)
		if len(id) != 8 {
			t.Fatalf("len = %d", len(id))
		}
		seen[id] = true
	}
	if len(seen) < 95 {
		t.Errorf("suspiciously many collisions: %d unique of 100", len(seen))
	}
}

func TestTailLines(t *testing.T) {
	text := "a\nb\nc\nd"
	if got := tailLines(text, 2); got != "c\nd" {
		t.Errorf("tailLines = %q", got)
	}
	if got := tailLines(text, 10); got != text {
		t.Errorf("tailLines beyond length = %q", got)
	}
}
