// Package fileset enumerates workspace files matching glob patterns and keeps
// the resulting sets current as files appear and disappear on disk.
package fileset

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Entry is one matched file.
type Entry struct {
	Relative string // slash-separated, relative to the set root
	Absolute string
}

// Set is a glob-defined set of files under a root directory.
type Set struct {
	root    string
	include []string
	exclude []string
	ignore  gitignore.Matcher

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty set. Patterns are slash-separated and relative to
// root; `**` matches any number of directories.
func New(root string, include, exclude []string) (*Set, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	for _, pattern := range append(append([]string(nil), include...), exclude...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}
	}
	ignore, err := loadIgnore(abs)
	if err != nil {
		return nil, err
	}
	return &Set{
		root:    abs,
		include: include,
		exclude: exclude,
		ignore:  ignore,
		entries: make(map[string]Entry),
	}, nil
}

func loadIgnore(root string) (gitignore.Matcher, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	patterns, err := gitignore.ReadPatterns(osfs.New(root), nil)
	if err != nil {
		return nil, fmt.Errorf("read .gitignore: %w", err)
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	return gitignore.NewMatcher(patterns), nil
}

// Root returns the absolute root directory.
func (s *Set) Root() string {
	return s.root
}

// Scan replaces the contents of the set with every matching file on disk.
func (s *Set) Scan() error {
	found := make(map[string]Entry)
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.root {
				return err
			}
			// Entries vanishing mid-walk are not fatal.
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if d.Name() == ".git" || s.ignored(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.matchFile(rel) {
			found[rel] = s.entry(rel)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", s.root, err)
	}
	s.mu.Lock()
	s.entries = found
	s.mu.Unlock()
	return nil
}

// Matches reports whether rel would belong to the set.
func (s *Set) Matches(rel string) bool {
	rel = Normalize(rel)
	if rel == "" {
		return false
	}
	if s.matchFile(rel) {
		dir := path.Dir(rel)
		for dir != "." && dir != "/" {
			if s.ignored(dir, true) {
				return false
			}
			dir = path.Dir(dir)
		}
		return true
	}
	return false
}

// TryAdd adds rel when it matches and is not yet present. It reports whether
// the set changed.
func (s *Set) TryAdd(rel string) bool {
	rel = Normalize(rel)
	if !s.Matches(rel) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[rel]; ok {
		return false
	}
	s.entries[rel] = s.entry(rel)
	return true
}

// TryRemove removes rel when present. It reports whether the set changed.
func (s *Set) TryRemove(rel string) bool {
	rel = Normalize(rel)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[rel]; !ok {
		return false
	}
	delete(s.entries, rel)
	return true
}

// Contains reports whether rel is in the set.
func (s *Set) Contains(rel string) bool {
	rel = Normalize(rel)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[rel]
	return ok
}

// Entries returns the current entries sorted by relative path.
func (s *Set) Entries() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Relative < out[j].Relative })
	return out
}

// Len returns the number of entries.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Set) entry(rel string) Entry {
	return Entry{Relative: rel, Absolute: filepath.Join(s.root, filepath.FromSlash(rel))}
}

func (s *Set) matchFile(rel string) bool {
	if !matchAny(s.include, rel) || matchAny(s.exclude, rel) {
		return false
	}
	return !s.ignored(rel, false)
}

func (s *Set) ignored(rel string, isDir bool) bool {
	if s.ignore == nil {
		return false
	}
	return s.ignore.Match(strings.Split(rel, "/"), isDir)
}

func matchAny(patterns []string, rel string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Normalize converts a relative path to the slash-separated form used as key.
func Normalize(rel string) string {
	rel = filepath.ToSlash(strings.TrimSpace(rel))
	rel = strings.TrimPrefix(rel, "./")
	if rel == "" {
		return ""
	}
	return path.Clean(rel)
}
