// Package workspace stages a private working copy of a state backup so a
// replay never mutates the backup it started from.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"SlotReplay/internal/logger"
)

const (
	// dbDir is the working copy of the state backup.
	dbDir = "db"

	// gasCostsDir is copied from next to the initial rolls file when present.
	gasCostsDir = "gas_costs"
)

// ErrBackupNotDir is returned when the backup path is not a directory.
var ErrBackupNotDir = errors.New("backup is not a directory")

// Options configures Stage.
type Options struct {
	// Backup is the state backup directory to copy.
	Backup string

	// InitialRolls is the initial rolls file; its sibling gas_costs/ is copied.
	InitialRolls string

	// Parent is the directory the temp dir is created in; empty uses os.TempDir.
	Parent string

	// Keep leaves the working copy on disk after Close.
	Keep bool
}

// Workspace is a temporary directory owned by a single run.
type Workspace struct {
	root     string
	gasCosts string
	keep     bool
}

// Stage creates a temp directory and copies the backup into its db/ subdirectory.
func Stage(opts Options) (*Workspace, error) {
	info, err := os.Stat(opts.Backup)
	if err != nil {
		return nil, fmt.Errorf("stat backup:\n%w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrBackupNotDir, opts.Backup)
	}

	root, err := os.MkdirTemp(opts.Parent, "slotreplay-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir:\n%w", err)
	}

	w := &Workspace{root: root, keep: opts.Keep}

	if err := os.CopyFS(w.DBPath(), os.DirFS(opts.Backup)); err != nil {
		w.remove()
		return nil, fmt.Errorf("copy backup %s:\n%w", opts.Backup, err)
	}

	if opts.InitialRolls != "" {
		if err := w.copyGasCosts(filepath.Dir(opts.InitialRolls)); err != nil {
			w.remove()
			return nil, err
		}
	}

	logger.Info("staged working copy", "dir", root, "backup", opts.Backup, "gas_costs", w.gasCosts != "")

	return w, nil
}

// copyGasCosts copies dir/gas_costs when it exists.
func (w *Workspace) copyGasCosts(dir string) error {
	src := filepath.Join(dir, gasCostsDir)

	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("no gas costs directory", "path", src)
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat gas costs:\n%w", err)
	}

	if !info.IsDir() {
		return nil
	}

	dst := filepath.Join(w.root, gasCostsDir)
	if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
		return fmt.Errorf("copy gas costs:\n%w", err)
	}

	w.gasCosts = dst

	return nil
}

// Root returns the temp directory.
func (w *Workspace) Root() string {
	return w.root
}

// DBPath returns the working copy of the state backup.
func (w *Workspace) DBPath() string {
	return filepath.Join(w.root, dbDir)
}

// GasCostsPath returns the copied gas costs directory, or "" when none was found.
func (w *Workspace) GasCostsPath() string {
	return w.gasCosts
}

// Close removes the working copy unless it was staged with Keep.
func (w *Workspace) Close() error {
	if w.keep {
		logger.Info("keeping working copy", "dir", w.root)
		return nil
	}

	return w.remove()
}

func (w *Workspace) remove() error {
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("remove working copy:\n%w", err)
	}

	return nil
}
