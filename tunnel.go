package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/deevus/clinic-tui/config"
	"github.com/deevus/clinic-tui/source/postgres"
)

// hostKeyError reports an SSH profile whose host key is not pinned yet.
type hostKeyError struct {
	Clinic   string
	Host     string
	Port     int
	Detected string // empty if the key could not be read
	ScanErr  error
}

func (e *hostKeyError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "clinic %s: ssh host_key_fingerprint is not set\n", e.Clinic)
	if e.Detected == "" {
		fmt.Fprintf(&b, "Could not read the key of %s: %v\n", e.Host, e.ScanErr)
		fmt.Fprintf(&b, "Get it with: ssh-keyscan -p %d %s 2>/dev/null | ssh-keygen -lf -", e.Port, e.Host)
		return b.String()
	}
	fmt.Fprintf(&b, "%s:%d presents:\n\n", e.Host, e.Port)
	fmt.Fprintf(&b, "  host_key_fingerprint = %q\n\n", e.Detected)
	fmt.Fprintf(&b, "Check it with the clinic's administrator, then add it to [clinics.%s.ssh].", e.Clinic)
	return b.String()
}

type keyScanner func(ctx context.Context, host string, port int) (string, error)

// tunnelConfig turns a clinic's ssh section into dial settings. It returns
// nil when the clinic connects directly.
func tunnelConfig(ctx context.Context, clinic string, c *config.SSHConfig, scan keyScanner) (*postgres.SSHConfig, error) {
	if c == nil {
		return nil, nil
	}
	if c.HostKeyFingerprint == "" {
		fp, err := scan(ctx, c.Host, c.Port)
		return nil, &hostKeyError{Clinic: clinic, Host: c.Host, Port: c.Port, Detected: fp, ScanErr: err}
	}

	key, err := os.ReadFile(c.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading SSH private key: %w", err)
	}
	return &postgres.SSHConfig{
		Host:               c.Host,
		Port:               c.Port,
		User:               c.Username,
		PrivateKey:         key,
		HostKeyFingerprint: c.HostKeyFingerprint,
	}, nil
}
