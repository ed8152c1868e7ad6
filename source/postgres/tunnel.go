package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig holds the details for tunnelling database connections over SSH.
type SSHConfig struct {
	Host               string
	Port               int
	User               string
	PrivateKey         []byte
	HostKeyFingerprint string
	Timeout            time.Duration
}

// DialSSH connects to the SSH server. The server's host key must match
// HostKeyFingerprint (SHA256 form, as printed by ssh-keygen -lf).
func DialSSH(cfg SSHConfig) (*ssh.Client, error) {
	if cfg.HostKeyFingerprint == "" {
		return nil, fmt.Errorf("host key fingerprint is required")
	}
	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: FingerprintCallback(cfg.HostKeyFingerprint),
		Timeout:         timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	return client, nil
}

// FingerprintCallback accepts only a host key whose SHA256 fingerprint is want.
func FingerprintCallback(want string) ssh.HostKeyCallback {
	return func(hostname string, _ net.Addr, key ssh.PublicKey) error {
		if got := ssh.FingerprintSHA256(key); got != want {
			return fmt.Errorf("host key mismatch for %s: got %s, want %s", hostname, got, want)
		}
		return nil
	}
}

var errKeySeen = errors.New("host key seen")

// ScanHostKey reads the SHA256 fingerprint of the SSH server at host:port.
// The handshake is abandoned as soon as the server has sent its key, so no
// credentials are needed.
func ScanHostKey(ctx context.Context, host string, port int) (string, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	var fingerprint string
	_, _, _, err = ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		HostKeyCallback: func(_ string, _ net.Addr, key ssh.PublicKey) error {
			fingerprint = ssh.FingerprintSHA256(key)
			return errKeySeen
		},
	})
	if fingerprint == "" {
		return "", fmt.Errorf("reading host key from %s: %w", addr, err)
	}
	return fingerprint, nil
}

// TunnelDialer dials database connections through an SSH client.
// It satisfies pq.Dialer.
type TunnelDialer struct {
	Client *ssh.Client
}

func (d TunnelDialer) Dial(network, address string) (net.Conn, error) {
	return d.Client.Dial(network, address)
}

func (d TunnelDialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return d.Client.DialContext(ctx, network, address)
}
