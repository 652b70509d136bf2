package adapter

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// promptMu serialises terminal prompts; connect sequences run
// concurrently and must not interleave on stdin.
var promptMu sync.Mutex //nolint:gochecknoglobals

// defaultKeyNames are tried under ~/.ssh when a tool sets none of the
// key, agent and password_env options.
var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"} //nolint:gochecknoglobals

// credentials are the auth methods for one connect attempt.  The agent
// connection, if any, stays open for the life of the SSH client and is
// released by Close.
type credentials struct {
	methods []ssh.AuthMethod
	agent   io.Closer
}

func (c *credentials) Close() error {
	if c == nil || c.agent == nil {
		return nil
	}
	return c.agent.Close()
}

// credentials resolves the configured auth options in the order key,
// agent, password.  With none configured it falls back to discover.
func (c *SSHConfig) credentials() (*credentials, error) {
	if c.KeyPath == "" && !c.UseAgent && c.PasswordEnv == "" {
		return discover()
	}

	creds := &credentials{}
	if c.KeyPath != "" {
		m, err := keyAuth(c.KeyPath, c.PassphraseEnv)
		if err != nil {
			return nil, fmt.Errorf("option key: %w", err)
		}
		creds.methods = append(creds.methods, m)
	}
	if c.UseAgent {
		m, conn, err := dialAgent(false)
		if err != nil {
			return nil, fmt.Errorf("option agent: %w", err)
		}
		creds.methods, creds.agent = append(creds.methods, m), conn
	}
	if c.PasswordEnv != "" {
		pass, ok := secretFromEnv(c.PasswordEnv)
		if !ok {
			creds.Close()
			return nil, fmt.Errorf("option password_env: %s is not set", c.PasswordEnv)
		}
		creds.methods = append(creds.methods, ssh.Password(pass))
	}
	return creds, nil
}

// discover uses a running agent that holds at least one key, then any
// unencrypted default key files.
func discover() (*credentials, error) {
	creds := &credentials{}
	if m, conn, err := dialAgent(true); err == nil {
		creds.methods, creds.agent = append(creds.methods, m), conn
	}
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range defaultKeyNames {
			if m, err := keyAuth(filepath.Join(home, ".ssh", name), ""); err == nil {
				creds.methods = append(creds.methods, m)
			}
		}
	}
	if len(creds.methods) == 0 {
		return nil, errors.New("no credentials found; set key, agent or password_env in the tool options")
	}
	return creds, nil
}

// ── methods ──────────────────────────────────────────────────────────

// keyAuth loads a private key file.  An encrypted key needs a
// passphrase from passphraseEnv or, on a terminal, the operator.
func keyAuth(path, passphraseEnv string) (ssh.AuthMethod, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(pem)
	var missing *ssh.PassphraseMissingError
	switch {
	case err == nil:
	case errors.As(err, &missing):
		pass, err := passphrase(path, passphraseEnv)
		if err != nil {
			return nil, err
		}
		if signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, pass); err != nil {
			return nil, fmt.Errorf("decrypting %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return ssh.PublicKeys(signer), nil
}

// dialAgent connects to the agent at SSH_AUTH_SOCK.  With requireKeys
// an agent that holds no keys is treated as absent.
func dialAgent(requireKeys bool) (ssh.AuthMethod, net.Conn, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, nil, errors.New("SSH_AUTH_SOCK is not set")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, nil, fmt.Errorf("agent at %s: %w", sock, err)
	}

	client := agent.NewClient(conn)
	if requireKeys {
		if keys, err := client.List(); err != nil || len(keys) == 0 {
			conn.Close()
			return nil, nil, fmt.Errorf("agent at %s holds no keys", sock)
		}
	}
	return ssh.PublicKeysCallback(client.Signers), conn, nil
}

func secretFromEnv(name string) (string, bool) {
	v := os.Getenv(name)
	return v, v != ""
}

func passphrase(path, env string) ([]byte, error) {
	if env != "" {
		if v, ok := secretFromEnv(env); ok {
			return []byte(v), nil
		}
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s is encrypted; set passphrase_env", path)
	}

	promptMu.Lock()
	defer promptMu.Unlock()
	fmt.Fprintf(os.Stderr, "Passphrase for %s: ", path)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return pass, nil
}

// ── host keys ────────────────────────────────────────────────────────

// hostKeyCallback checks the head node against known_hosts unless the
// tool turned strict_host_key off.
func (c *SSHConfig) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if !c.StrictHostKey {
		//nolint:gosec // operator opted out of host key checking
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := c.KnownHosts
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("option known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("option known_hosts: %w", err)
	}
	return cb, nil
}
