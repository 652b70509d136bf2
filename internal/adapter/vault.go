package adapter

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	mcerr "mcphub/internal/errors"
	"mcphub/internal/retry"
	"mcphub/util"
)

// VaultConfig locates a note vault on disk.
type VaultConfig struct {
	Path    string // explicit path; wins over PathEnv
	PathEnv string // default OBSIDIAN_VAULT_PATH
}

// Vault attaches to a local markdown note vault (Obsidian layout).
type Vault struct {
	config VaultConfig
	logger *util.Logger

	mu    sync.Mutex
	root  string
	notes int
}

// NewVault returns an adapter that is ready to Connect.
func NewVault(cfg VaultConfig, logger *util.Logger) *Vault {
	if logger == nil {
		logger = util.Discard()
	}
	if cfg.PathEnv == "" {
		cfg.PathEnv = "OBSIDIAN_VAULT_PATH"
	}
	return &Vault{config: cfg, logger: logger}
}

func (v *Vault) Kind() Kind { return KindVault }
func (v *Vault) sealed()    {}

// resolve picks the vault path: option, then env, then the default
// vault location under the home directory.
func (v *Vault) resolve() (string, error) {
	if v.config.Path != "" {
		return v.config.Path, nil
	}
	if p := os.Getenv(v.config.PathEnv); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, "Documents", "Obsidian Vault"), nil
}

// Connect checks the vault directory exists and counts its notes.
func (v *Vault) Connect(ctx context.Context) error {
	root, err := v.resolve()
	if err != nil {
		return retry.Permanent(err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("vault %s: %w", root, err)
	}
	if !info.IsDir() {
		return retry.Permanent(fmt.Errorf("vault %s is not a directory", root))
	}

	notes, err := countNotes(ctx, root)
	if err != nil {
		return fmt.Errorf("vault %s: %w", root, err)
	}
	v.logger.Debug("vault: %s has %d notes", root, notes)

	v.mu.Lock()
	v.root = root
	v.notes = notes
	v.mu.Unlock()
	return nil
}

// Disconnect forgets the vault.
func (v *Vault) Disconnect(_ context.Context) error {
	v.mu.Lock()
	v.root = ""
	v.notes = 0
	v.mu.Unlock()
	return nil
}

// Health checks the vault directory is still there.
func (v *Vault) Health(_ context.Context) error {
	v.mu.Lock()
	root := v.root
	v.mu.Unlock()
	if root == "" {
		return mcerr.ErrNotConnected
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("vault %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault %s is not a directory", root)
	}
	return nil
}

// Notes returns the note count seen by the last successful Connect.
func (v *Vault) Notes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.notes
}

func countNotes(ctx context.Context, root string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir // .obsidian, .git, .trash
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			n++
		}
		return nil
	})
	return n, err
}

func vaultConfigFrom(o options) VaultConfig {
	return VaultConfig{
		Path:    o.str("path", ""),
		PathEnv: o.str("path_env", ""),
	}
}
