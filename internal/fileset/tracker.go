package fileset

import (
	"path"
	"strings"
)

// Extensions of the two tracked languages.
const (
	TestExt        = ".as"
	InteractionExt = ".asi"
)

// Tracker owns the disjoint test and interaction sets of one workspace.
type Tracker struct {
	Tests        *Set
	Interactions *Set
}

// NewTracker creates both sets and scans them.
func NewTracker(root string, tests, interactions, exclude []string) (*Tracker, error) {
	testSet, err := New(root, tests, exclude)
	if err != nil {
		return nil, err
	}
	interactionSet, err := New(root, interactions, exclude)
	if err != nil {
		return nil, err
	}
	t := &Tracker{Tests: testSet, Interactions: interactionSet}
	if err := t.Tests.Scan(); err != nil {
		return nil, err
	}
	if err := t.Interactions.Scan(); err != nil {
		return nil, err
	}
	return t, nil
}

// SetFor returns the set responsible for rel based on its extension.
func (t *Tracker) SetFor(rel string) *Set {
	switch strings.ToLower(path.Ext(Normalize(rel))) {
	case TestExt:
		return t.Tests
	case InteractionExt:
		return t.Interactions
	}
	return nil
}

// TryAdd adds rel to its set. It reports whether a set changed.
func (t *Tracker) TryAdd(rel string) bool {
	set := t.SetFor(rel)
	if set == nil {
		return false
	}
	return set.TryAdd(rel)
}

// TryRemove removes rel from its set. It reports whether a set changed.
func (t *Tracker) TryRemove(rel string) bool {
	set := t.SetFor(rel)
	if set == nil {
		return false
	}
	return set.TryRemove(rel)
}
