package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/skilldesk/internal/models"
	"github.com/starford/skilldesk/internal/storage"
)

// EventCallback is called after a watcher-driven catalogue change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, skill string)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the skills root and every skill
// directory, and processes SKILL.md changes until ctx is cancelled. cb (if
// non-nil) is called after each successful catalogue mutation.
//
// Skill directories created at runtime are added to the watch list. Renames
// and directory removals trigger a debounced reconciliation pass.
func Watch(ctx context.Context, db SkillIndex, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addSkillDirs(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

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
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(db, store, logger, cb)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			handleEvent(w, ev, db, store, root, logger, cb, scheduleReconcile)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func handleEvent(w *fsnotify.Watcher, ev fsnotify.Event, db SkillIndex, store storage.Provider, root string, logger *slog.Logger, cb EventCallback, scheduleReconcile func()) {
	parent := filepath.Dir(ev.Name)

	// Events directly under the root concern skill directories.
	if parent == root {
		switch {
		case ev.Op&fsnotify.Create != 0:
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				if err := w.Add(ev.Name); err != nil {
					logger.Warn("watcher: add skill dir failed",
						slog.String("path", ev.Name),
						slog.String("error", err.Error()))
				}
				scheduleReconcile()
			}
		case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
			scheduleReconcile()
		}
		return
	}

	if filepath.Base(ev.Name) != models.SkillFileName || filepath.Dir(parent) != root {
		return
	}
	name := filepath.Base(parent)

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		data, err := store.ReadSkill(name)
		if err != nil {
			logger.Warn("watcher: read failed", slog.String("skill", name), slog.String("error", err.Error()))
			return
		}
		prev, _ := db.GetChecksum(name)
		if prev == storage.Checksum(data) {
			return
		}
		if err := IndexSkill(db, name, data); err != nil {
			logger.Warn("watcher: index failed", slog.String("skill", name), slog.String("error", err.Error()))
			return
		}
		kind := "updated"
		if prev == "" {
			kind = "created"
		}
		logger.Debug("watcher: indexed", slog.String("skill", name), slog.String("op", kind))
		if cb != nil {
			cb(kind, name)
		}

	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Atomic saves replace the file through a rename, so a removal
		// is only confirmed by the reconciliation pass.
		scheduleReconcile()
	}
}

// reconcile diffs the catalogue against the skills on disk.
func reconcile(db SkillIndex, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := store.ListSkills()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Name] = m.Checksum
	}

	for n := range checksums {
		if _, ok := disk[n]; !ok {
			if delErr := db.DeleteSkill(n); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("skill", n))
				if cb != nil {
					cb("deleted", n)
				}
			}
		}
	}

	for n, cs := range disk {
		prev, known := checksums[n]
		if known && prev == cs {
			continue
		}
		data, readErr := store.ReadSkill(n)
		if readErr != nil {
			continue
		}
		if idxErr := IndexSkill(db, n, data); idxErr == nil {
			kind := "updated"
			if !known {
				kind = "created"
			}
			logger.Debug("reconcile: indexed", slog.String("skill", n), slog.String("op", kind))
			if cb != nil {
				cb(kind, n)
			}
		}
	}
}

// addSkillDirs watches root and each direct subdirectory.
func addSkillDirs(w *fsnotify.Watcher, root string) error {
	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := w.Add(filepath.Join(root, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
