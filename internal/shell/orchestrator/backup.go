package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// Backup
// =============================================================================

// Backup snapshots a deployment's configuration and captured data into a
// timestamped directory under its backups/ path and returns that path.
// Running deployments are backed up live: the emulator appends to its logs,
// so the copy is a point-in-time read, not a consistent quiesce.
func (m *Manager) Backup(ctx context.Context, name string) (string, error) {
	release, err := m.acquire(ctx, name)
	if err != nil {
		return "", err
	}
	defer release()

	d, err := m.getDeployment(ctx, name)
	if err != nil {
		return "", err
	}
	if d.Status == domain.StatusRemoved {
		return "", fmt.Errorf("%w: %s", ErrDeploymentNotFound, name)
	}

	backupDir := filepath.Join(d.Paths.Backups, domain.BackupDirName(d.Name, time.Now()))
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	sources := map[string]string{
		"config":  d.Paths.Config,
		"honeyfs": d.Paths.Honeyfs,
		"elk":     d.Paths.ELK,
		"log":     d.Paths.Log,
	}
	for rel, src := range sources {
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyTree(src, filepath.Join(backupDir, rel)); err != nil {
			// A half-written backup is worse than none.
			_ = os.RemoveAll(backupDir)
			return "", fmt.Errorf("failed to back up %s: %w", rel, err)
		}
	}

	event := domain.NewEvent(d.Name, domain.EventBackedUp, "backup written to "+backupDir)
	_ = m.store.CreateEvent(ctx, &event)

	m.logger.Info("backup complete", "deployment", d.Name, "path", backupDir)
	return backupDir, nil
}

// copyTree recursively copies a directory, preserving file modes.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := entry.Info()
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
