// Package mirror imports a local directory tree into the folder service and
// optionally keeps it in step with filesystem changes.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/store"
	"github.com/starford/arbor/internal/tree"
)

const reconcileDelay = 200 * time.Millisecond

// Mirror maps the directories of a Source onto folders below a fixed parent.
type Mirror struct {
	store    *store.Store
	src      *Source
	parentID *string
	logger   *slog.Logger

	mu  sync.Mutex
	ids map[string]string // relative dir path -> folder id
}

// New creates a Mirror that places top-level directories under parentID
// (nil for root-level folders).
func New(st *store.Store, src *Source, parentID *string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		store:    st,
		src:      src,
		parentID: parentID,
		logger:   logger,
		ids:      make(map[string]string),
	}
}

// FolderID returns the folder id mirrored for a relative directory path.
func (m *Mirror) FolderID(rel string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[rel]
	return id, ok
}

// Import loads the current tree and creates a folder for every directory
// that has no same-named folder at its position yet. It returns the number
// of folders created.
func (m *Mirror) Import(ctx context.Context) (int, error) {
	if err := wait(ctx, m.store.Load()); err != nil {
		return 0, err
	}
	if msg := m.store.Snapshot().LastError; msg != "" {
		return 0, errors.New(msg)
	}
	if m.parentID != nil {
		if _, ok := tree.Find(m.store.Snapshot().Forest, *m.parentID); !ok {
			return 0, fmt.Errorf("mirror: parent folder %s not found", *m.parentID)
		}
	}
	return m.importDir(ctx, "")
}

func (m *Mirror) importDir(ctx context.Context, dir string) (int, error) {
	dirs, err := m.src.Dirs(dir)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, rel := range dirs {
		ok, err := m.ensure(ctx, rel)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// ensure maps rel to a folder, creating one when needed. It reports whether
// a folder was created.
func (m *Mirror) ensure(ctx context.Context, rel string) (bool, error) {
	parentID := m.parentID
	if p := path.Dir(rel); p != "." {
		id, ok := m.FolderID(p)
		if !ok {
			return false, fmt.Errorf("mirror: parent of %s is not mirrored", rel)
		}
		parentID = &id
	}
	name := folderName(rel)
	before := m.store.Snapshot().Forest

	if n, ok := childNamed(before, parentID, name); ok {
		m.set(rel, n.ID)
		return false, nil
	}

	if err := wait(ctx, m.store.CreateFolder(name, parentID)); err != nil {
		return false, err
	}
	snap := m.store.Snapshot()
	if snap.LastError != "" {
		return false, fmt.Errorf("mirror: create %s: %s", rel, snap.LastError)
	}
	n, ok := tree.Added(before, snap.Forest, parentID)
	if !ok {
		return false, fmt.Errorf("mirror: created folder for %s not found", rel)
	}
	m.set(rel, n.ID)
	m.logger.Debug("mirror: created", slog.String("path", rel), slog.String("id", n.ID))
	return true, nil
}

// remove deletes the folder mirrored for rel and forgets rel and everything
// below it.
func (m *Mirror) remove(ctx context.Context, rel string) error {
	id, ok := m.FolderID(rel)
	if !ok {
		return nil
	}
	if err := wait(ctx, m.store.DeleteFolder(id)); err != nil {
		return err
	}
	if msg := m.store.Snapshot().LastError; msg != "" {
		return fmt.Errorf("mirror: delete %s: %s", rel, msg)
	}

	m.mu.Lock()
	for p := range m.ids {
		if p == rel || strings.HasPrefix(p, rel+"/") {
			delete(m.ids, p)
		}
	}
	m.mu.Unlock()
	m.logger.Debug("mirror: deleted", slog.String("path", rel), slog.String("id", id))
	return nil
}

// reconcile drops mappings whose directory vanished and imports directories
// that are not mapped yet.
func (m *Mirror) reconcile(ctx context.Context) {
	m.mu.Lock()
	var stale []string
	for rel := range m.ids {
		abs, err := m.src.safePath(rel)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			stale = append(stale, rel)
		}
	}
	m.mu.Unlock()

	for _, rel := range stale {
		if err := m.remove(ctx, rel); err != nil {
			m.logger.Warn("reconcile: remove failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
	}
	if _, err := m.importDir(ctx, ""); err != nil {
		m.logger.Warn("reconcile: import failed", slog.String("error", err.Error()))
	}
}

// Watch starts an fsnotify watcher on the source root and mirrors directory
// creation, removal and renames until ctx is cancelled. Import should run
// first so existing directories are already mapped.
//
// A rename arrives as a Rename on the old path followed by a Create on the
// new one; the old folder is deleted immediately and a short reconciliation
// pass catches anything the event stream missed.
func (m *Mirror) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, m.src.Root()); err != nil {
		return err
	}

	m.logger.Info("mirror: watching", slog.String("root", m.src.Root()))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			m.logger.Info("mirror: stopped")
			return nil

		case <-reconcileCh:
			m.reconcile(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := m.src.Rel(ev.Name)
			if relErr != nil || rel == "" || strings.HasPrefix(path.Base(rel), ".") {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				info, statErr := os.Stat(ev.Name)
				if statErr != nil || !info.IsDir() {
					continue
				}
				if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
					m.logger.Warn("mirror: add new dir failed",
						slog.String("path", rel),
						slog.String("error", addErr.Error()))
				}
				if _, impErr := m.importDir(ctx, rel); impErr != nil {
					m.logger.Warn("mirror: import new dir failed",
						slog.String("path", rel),
						slog.String("error", impErr.Error()))
					scheduleReconcile()
				}

			case ev.Op&fsnotify.Remove != 0:
				if delErr := m.remove(ctx, rel); delErr != nil {
					m.logger.Warn("mirror: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				}

			case ev.Op&fsnotify.Rename != 0:
				if delErr := m.remove(ctx, rel); delErr != nil {
					m.logger.Warn("mirror: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.logger.Error("mirror: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func (m *Mirror) set(rel, id string) {
	m.mu.Lock()
	m.ids[rel] = id
	m.mu.Unlock()
}

// folderName is the folder name a directory maps to. The folder service
// stores names trimmed, so lookups must compare trimmed names too.
func folderName(rel string) string {
	return strings.TrimSpace(path.Base(rel))
}

// childNamed returns the last child of parentID (or root-level node when
// parentID is nil) with the given name.
func childNamed(forest []models.Node, parentID *string, name string) (models.Node, bool) {
	siblings, _ := tree.Children(forest, parentID)
	for i := len(siblings) - 1; i >= 0; i-- {
		if siblings[i].Name == name {
			return siblings[i], true
		}
	}
	return models.Node{}, false
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
