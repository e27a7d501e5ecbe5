// Package template materializes deployment directory trees from templates.
// The pure planning and rendering live in core/template; this package is the
// I/O side that commits a plan to disk.
package template

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/artpar/honeymesh/internal/core/domain"
	coretemplate "github.com/artpar/honeymesh/internal/core/template"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrRootExists is returned when the deployment root is already on disk.
	ErrRootExists = errors.New("deployment directory already exists")
)

const (
	hostKeyName = "ssh_host_ed25519_key"

	dirMode        = os.FileMode(0o755)
	privateKeyMode = os.FileMode(0o600)
	publicKeyMode  = os.FileMode(0o644)
)

// =============================================================================
// Engine
// =============================================================================

// Engine expands templates into deployment directory trees.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a template engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Expand materializes the full directory tree for a deployment. tpl is nil
// for default-mode deployments, which get the stock accounts and no command
// overrides.
//
// Expansion is all-or-nothing: everything is written into a staging
// directory next to the final root and renamed into place only once every
// artifact succeeded. A failure leaves no partial tree behind.
func (e *Engine) Expand(d *domain.Deployment, tpl *domain.Template) error {
	root := d.Paths.Root

	if _, err := os.Stat(root); err == nil {
		return fmt.Errorf("%w: %s", ErrRootExists, root)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat deployment root: %w", err)
	}

	plan, err := coretemplate.BuildWritePlan(d, tpl)
	if err != nil {
		return fmt.Errorf("failed to build write plan: %w", err)
	}

	parent := filepath.Dir(root)
	if err := os.MkdirAll(parent, dirMode); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	staging, err := os.MkdirTemp(parent, "."+d.Name+".staging-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := e.writePlan(staging, plan); err != nil {
		return err
	}
	if err := e.writeRuntimeDirs(staging, d); err != nil {
		return err
	}
	if err := e.writeHostKeys(staging, d); err != nil {
		return err
	}

	if err := os.Rename(staging, root); err != nil {
		return fmt.Errorf("failed to commit deployment directory: %w", err)
	}

	e.logger.Info("expanded deployment directory",
		"deployment", d.Name,
		"root", root,
		"entries", len(plan),
	)
	return nil
}

// Remove deletes the deployment directory tree. When preserveData is true,
// only the runtime configuration is removed and captured logs plus backups
// stay on disk.
func (e *Engine) Remove(d *domain.Deployment, preserveData bool) error {
	if !preserveData {
		if err := os.RemoveAll(d.Paths.Root); err != nil {
			return fmt.Errorf("failed to remove deployment directory: %w", err)
		}
		e.logger.Info("removed deployment directory", "deployment", d.Name, "root", d.Paths.Root)
		return nil
	}

	for _, dir := range []string{d.Paths.Config, d.Paths.Honeyfs, d.Paths.Keys, d.Paths.ELK, d.Paths.Downloads} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}
	manifest := filepath.Join(d.Paths.Root, "docker-compose.yml")
	if err := os.Remove(manifest); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove manifest: %w", err)
	}

	e.logger.Info("removed deployment configuration, preserved data",
		"deployment", d.Name,
		"log", d.Paths.Log,
		"backups", d.Paths.Backups,
	)
	return nil
}

// =============================================================================
// Staging Writers
// =============================================================================

func (e *Engine) writePlan(staging string, plan []coretemplate.FileWrite) error {
	for _, fw := range plan {
		target := filepath.Join(staging, fw.RelPath)

		if fw.Dir {
			if err := os.MkdirAll(target, fw.Mode); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", fw.RelPath, err)
			}
			continue
		}

		if err := os.WriteFile(target, []byte(fw.Content), fw.Mode); err != nil {
			return fmt.Errorf("failed to write %s: %w", fw.RelPath, err)
		}
	}
	return nil
}

// writeRuntimeDirs creates the directories the containers write into.
func (e *Engine) writeRuntimeDirs(staging string, d *domain.Deployment) error {
	for _, rel := range []string{
		"log",
		filepath.Join("log", "tty"),
		"keys",
		"downloads",
		"backups",
	} {
		if err := os.MkdirAll(filepath.Join(staging, rel), dirMode); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", rel, err)
		}
	}
	return nil
}

// writeHostKeys generates a fresh ed25519 SSH host key pair for the
// emulator. Each deployment gets its own key so fingerprints differ
// between instances.
func (e *Engine) writeHostKeys(staging string, d *domain.Deployment) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate host key: %w", err)
	}

	pemBlock, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return fmt.Errorf("failed to marshal host key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return fmt.Errorf("failed to convert host public key: %w", err)
	}

	keyPath := filepath.Join(staging, "keys", hostKeyName)
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(pemBlock), privateKeyMode); err != nil {
		return fmt.Errorf("failed to write host key: %w", err)
	}
	if err := os.WriteFile(keyPath+".pub", ssh.MarshalAuthorizedKey(sshPub), publicKeyMode); err != nil {
		return fmt.Errorf("failed to write host public key: %w", err)
	}

	e.logger.Debug("generated ssh host key", "deployment", d.Name, "path", keyPath)
	return nil
}
