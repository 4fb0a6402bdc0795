package project

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the immutable outcome of one rebuild. It is replaced, never
// mutated, once published.
type Snapshot struct {
	ID          uuid.UUID
	Built       time.Time
	Files       map[string]FileResult
	Definitions []*StepDefinition
}

// NewSnapshot stamps a snapshot with a fresh identifier.
func NewSnapshot(files map[string]FileResult, defs []*StepDefinition) *Snapshot {
	if files == nil {
		files = make(map[string]FileResult)
	}
	return &Snapshot{
		ID:          uuid.New(),
		Built:       time.Now(),
		Files:       files,
		Definitions: defs,
	}
}

// File returns the result for rel.
func (s *Snapshot) File(rel string) (FileResult, bool) {
	if s == nil {
		return nil, false
	}
	r, ok := s.Files[rel]
	return r, ok
}

// FeatureInfo summarises one declared feature.
type FeatureInfo struct {
	SourceFile  string
	Name        string
	Description string
}

// Features lists the features of all compiled test files ordered by path.
func (s *Snapshot) Features() []FeatureInfo {
	if s == nil {
		return nil
	}
	paths := make([]string, 0, len(s.Files))
	for rel := range s.Files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	var out []FeatureInfo
	for _, rel := range paths {
		test, ok := s.Files[rel].(*TestResult)
		if !ok || test.Compile == nil || test.Compile.Feature == nil {
			continue
		}
		out = append(out, FeatureInfo{
			SourceFile:  rel,
			Name:        test.Compile.Feature.Name,
			Description: test.Compile.Feature.Description,
		})
	}
	return out
}
