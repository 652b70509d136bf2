package adapter

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	mcerr "mcphub/internal/errors"
	"mcphub/internal/retry"
	"mcphub/util"
)

// SSHConfig holds everything needed to reach a cluster head node.
type SSHConfig struct {
	User          string
	Host          string
	Port          int
	KeyPath       string
	PassphraseEnv string // env var holding the key passphrase
	PasswordEnv   string // env var holding a password
	UseAgent      bool
	StrictHostKey bool
	KnownHosts    string
	ConnTimeout   time.Duration
}

// SSH connects to a compute cluster (e.g. a Ray head node) over SSH.
// Health sends an OpenSSH keepalive request on the live connection.
type SSH struct {
	config *SSHConfig
	logger *util.Logger

	mu     sync.Mutex
	client *ssh.Client
	creds  *credentials
}

// NewSSH returns an adapter that is ready to Connect.
func NewSSH(cfg *SSHConfig, logger *util.Logger) *SSH {
	if logger == nil {
		logger = util.Discard()
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 30 * time.Second
	}
	return &SSH{config: cfg, logger: logger}
}

func (s *SSH) Kind() Kind { return KindSSH }
func (s *SSH) sealed()    {}

func (s *SSH) addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// Connect dials the head node and completes the SSH handshake.
// Authentication and host-key setup problems are permanent: retrying
// them cannot succeed.
func (s *SSH) Connect(ctx context.Context) error {
	hkCallback, err := s.config.hostKeyCallback()
	if err != nil {
		return retry.Permanent(fmt.Errorf("ssh hostkey %s: %w", s.addr(), err))
	}

	creds, err := s.config.credentials()
	if err != nil {
		return retry.Permanent(fmt.Errorf("ssh auth %s: %w", s.addr(), err))
	}

	sshCfg := &ssh.ClientConfig{
		User:            s.config.User,
		Auth:            creds.methods,
		HostKeyCallback: hkCallback,
		Timeout:         s.config.ConnTimeout,
	}

	addr := s.addr()
	s.logger.Debug("ssh: dialing %s as %s", addr, s.config.User)

	dialer := net.Dialer{Timeout: s.config.ConnTimeout}
	tcpConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		creds.Close()
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	// NewClientConn does not take a context; bound it by the deadline.
	if dl, ok := ctx.Deadline(); ok {
		_ = tcpConn.SetDeadline(dl)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		creds.Close()
		return fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	_ = tcpConn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)

	s.mu.Lock()
	old, oldCreds := s.client, s.creds
	s.client, s.creds = client, creds
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	oldCreds.Close()
	return nil
}

// Disconnect closes the SSH connection.
func (s *SSH) Disconnect(_ context.Context) error {
	s.mu.Lock()
	client, creds := s.client, s.creds
	s.client, s.creds = nil, nil
	s.mu.Unlock()

	creds.Close()
	if client == nil {
		return nil
	}
	return client.Close()
}

// Health sends keepalive@openssh.com and waits for the reply.
func (s *SSH) Health(ctx context.Context) error {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return mcerr.ErrNotConnected
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("ssh keepalive %s: %w", s.addr(), err)
		}
		return nil
	}
}

func sshConfigFrom(o options) (*SSHConfig, error) {
	cfg := &SSHConfig{
		User:          o.str("user", ""),
		Host:          o.str("host", ""),
		KeyPath:       o.str("key", ""),
		PassphraseEnv: o.str("passphrase_env", ""),
		PasswordEnv:   o.str("password_env", ""),
		UseAgent:      o.bool("agent"),
		StrictHostKey: o.bool("strict_host_key"),
		KnownHosts:    o.str("known_hosts", ""),
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	var err error
	if cfg.Port, err = o.int("port", 22); err != nil {
		return nil, err
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port %d out of range 1-65535", cfg.Port)
	}
	if cfg.ConnTimeout, err = o.duration("timeout", 30*time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}
