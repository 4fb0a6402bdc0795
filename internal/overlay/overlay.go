// Package overlay holds the in-memory content of files open in the editor and
// resolves file content and timestamps with disk as the fallback.
package overlay

import (
	"os"
	"sort"
	"sync"
	"time"
)

// OpenFileState is the editor-owned content of one open file.
type OpenFileState struct {
	Content      string
	LastModified time.Time
}

// Overlay maps workspace-relative paths to open file content.
type Overlay struct {
	mu    sync.RWMutex
	files map[string]OpenFileState
	last  time.Time
	now   func() time.Time
}

// New creates an empty overlay.
func New() *Overlay {
	return &Overlay{
		files: make(map[string]OpenFileState),
		now:   time.Now,
	}
}

// Open inserts or replaces the content of rel.
func (o *Overlay) Open(rel, content string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[rel] = OpenFileState{Content: content, LastModified: o.stampLocked()}
}

// Update replaces the content of an already open file. It reports false when
// rel is not open.
func (o *Overlay) Update(rel, content string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.files[rel]; !ok {
		return false
	}
	o.files[rel] = OpenFileState{Content: content, LastModified: o.stampLocked()}
	return true
}

// Close drops the overlay entry for rel. It reports whether rel was open.
func (o *Overlay) Close(rel string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.files[rel]; !ok {
		return false
	}
	delete(o.files, rel)
	return true
}

// Get returns the open state of rel.
func (o *Overlay) Get(rel string) (OpenFileState, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	state, ok := o.files[rel]
	return state, ok
}

// IsOpen reports whether rel has overlay content.
func (o *Overlay) IsOpen(rel string) bool {
	_, ok := o.Get(rel)
	return ok
}

// Paths returns the open paths in sorted order.
func (o *Overlay) Paths() []string {
	o.mu.RLock()
	paths := make([]string, 0, len(o.files))
	for rel := range o.files {
		paths = append(paths, rel)
	}
	o.mu.RUnlock()
	sort.Strings(paths)
	return paths
}

// stampLocked returns a timestamp strictly after every stamp handed out
// before, so two edits never share a cache identity.
func (o *Overlay) stampLocked() time.Time {
	now := o.now()
	if !now.After(o.last) {
		now = o.last.Add(time.Nanosecond)
	}
	o.last = now
	return now
}

// Source resolves one workspace file through the overlay.
type Source struct {
	Relative string
	Absolute string
	overlay  *Overlay
}

// Source returns a resolver for the file at rel (workspace-relative) and abs.
func (o *Overlay) Source(rel, abs string) *Source {
	return &Source{Relative: rel, Absolute: abs, overlay: o}
}

// Content returns the overlay content when the file is open, else the
// current disk content.
func (s *Source) Content() (string, error) {
	if s.overlay != nil {
		if state, ok := s.overlay.Get(s.Relative); ok {
			return state.Content, nil
		}
	}
	data, err := os.ReadFile(s.Absolute)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LastModified returns the overlay timestamp when the file is open, else the
// disk modification time. A file that cannot be stat'ed yields the zero time.
func (s *Source) LastModified() time.Time {
	if s.overlay != nil {
		if state, ok := s.overlay.Get(s.Relative); ok {
			return state.LastModified
		}
	}
	info, err := os.Stat(s.Absolute)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
