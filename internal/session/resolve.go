package session

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// resolveTimeout bounds the ssh -G subprocess. Resolution only reads
// local client configuration, so anything slow means a broken setup.
const resolveTimeout = 10 * time.Second

// Endpoint holds the resolved connection parameters for one session.
type Endpoint struct {
	Host         string
	User         string
	Port         int
	IdentityFile string
}

// Resolve expands a host alias through the SSH client configuration
// (ssh -G) and applies explicit user/port overrides. When ssh -G
// fails (host not in config and not resolvable) the host is used
// verbatim, matching what a later connection attempt would try anyway.
func Resolve(ctx context.Context, host, user string, port int) Endpoint {
	cfg := sshClientConfig(ctx, host)

	ep := Endpoint{Host: host, User: user, Port: port}
	if h, ok := cfg["hostname"]; ok {
		ep.Host = h
	}
	if ep.User == "" {
		ep.User = cfg["user"]
	}
	if ep.Port == 0 {
		if p, err := strconv.Atoi(cfg["port"]); err == nil {
			ep.Port = p
		}
	}
	ep.IdentityFile = cfg["identityfile"]
	return ep
}

// sshClientConfig runs ssh -G and parses its "key value" output with
// lowercased keys. Returns only {hostname: host} on failure.
func sshClientConfig(ctx context.Context, host string) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "ssh", "-G", host).Output()
	if err != nil {
		sessLog.Debug("ssh_config_resolution_failed", "host", host, "error", err.Error())
		return map[string]string{"hostname": host}
	}

	cfg := make(map[string]string)
	for _, line := range strings.Split(string(out), "\n") {
		parts := strings.SplitN(line, " ", 2)
		if len(parts) == 2 {
			cfg[strings.ToLower(parts[0])] = parts[1]
		}
	}
	return cfg
}

// SSHCommand builds the ssh invocation for this endpoint. Defaults
// (port 22, the stock identity file) are omitted so the command stays
// readable in window listings and remains-on-exit diagnostics.
func (e Endpoint) SSHCommand() string {
	var b strings.Builder
	b.WriteString("ssh")
	if e.Port != 0 && e.Port != 22 {
		fmt.Fprintf(&b, " -p %d", e.Port)
	}
	if e.IdentityFile != "" && e.IdentityFile != "~/.ssh/id_rsa" {
		fmt.Fprintf(&b, " -i %s", e.IdentityFile)
	}
	b.WriteString(" ")
	b.WriteString(e.Destination())
	return b.String()
}

// Destination is the user@host (or bare host) ssh target.
func (e Endpoint) Destination() string {
	if e.User != "" {
		return e.User + "@" + e.Host
	}
	return e.Host
}
