// Package watch turns file system notifications under a workspace root into
// workspace disk events.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Sink receives disk events as slash-separated paths relative to the root.
type Sink interface {
	DiskFileCreated(rel string)
	DiskFileChanged(rel string)
	DiskFileDeleted(rel string)
}

// Watcher watches every directory under a root.
type Watcher struct {
	rootAbs string
	sink    Sink

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
	closed    chan struct{}
}

// New starts watching root and every directory below it, except .git.
func New(root string, sink Sink) (*Watcher, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("watch: sink is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		rootAbs: filepath.Clean(rootAbs),
		sink:    sink,
		watcher: fsw,
		closed:  make(chan struct{}),
	}
	if err := w.addDirRecursive(w.rootAbs, false); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run watches for file system notifications under root, forwarding them to sink until ctx is done.
func Run(ctx context.Context, root string, sink Sink) error {
	w, err := New(root, sink)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() { close(w.closed) })
	return w.watcher.Close()
}

// Run forwards events until ctx is done, the watcher is closed or the
// underlying watcher reports an error.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.closed:
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", w.rootAbs, err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, ok := w.toRel(ev.Name)
	if !ok || skipped(rel) {
		return
	}
	switch {
	case ev.Op&fsnotify.Create != 0:
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			// Files may already exist in a directory moved into the tree.
			_ = w.addDirRecursive(ev.Name, true)
			return
		}
		w.sink.DiskFileCreated(rel)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.sink.DiskFileDeleted(rel)
	case ev.Op&fsnotify.Write != 0:
		w.sink.DiskFileChanged(rel)
	}
}

func (w *Watcher) toRel(abs string) (string, bool) {
	if strings.TrimSpace(abs) == "" {
		return "", false
	}
	rel, err := filepath.Rel(w.rootAbs, filepath.Clean(abs))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func skipped(rel string) bool {
	return rel == ".git" || strings.HasPrefix(rel, ".git/")
}

// addDirRecursive watches dir and its subdirectories. With announce set,
// files found on the way are reported as created.
func (w *Watcher) addDirRecursive(dir string, announce bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		rel, ok := w.toRel(p)
		if ok && skipped(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if announce && ok {
				w.sink.DiskFileCreated(rel)
			}
			return nil
		}
		return w.watcher.Add(p)
	})
}
