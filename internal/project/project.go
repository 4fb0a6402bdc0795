package project

import (
	"context"
	"sort"
	"sync"
	"time"

	"stepls/internal/config"
)

// Source resolves the content of one file at compile time.
type Source interface {
	Content() (string, error)
	LastModified() time.Time
}

// File is one entry of the project file table.
type File struct {
	Path     string // workspace-relative, slash-separated
	Absolute string
	Kind     FileKind
	Source   Source
	// Extension is set for read-only files contributed by an extension.
	Extension string
}

// Project is the file table plus extension-provided definitions that the
// compiler builds from. Only the background consumer mutates it.
type Project struct {
	mu    sync.RWMutex
	files map[string]*File
	defs  []*StepDefinition
}

// New creates an empty project.
func New() *Project {
	return &Project{files: make(map[string]*File)}
}

// AddFile inserts f unless a file with the same path exists. It reports
// whether the table changed.
func (p *Project) AddFile(f *File) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[f.Path]; ok {
		return false
	}
	p.files[f.Path] = f
	return true
}

// RemoveFile drops rel. It reports whether the table changed.
func (p *Project) RemoveFile(rel string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.files[rel]; !ok {
		return false
	}
	delete(p.files, rel)
	return true
}

// Merge makes the workspace files of the given kind match want. Extension
// files are left alone. It reports whether the table changed.
func (p *Project) Merge(kind FileKind, want []*File) bool {
	keep := make(map[string]*File, len(want))
	for _, f := range want {
		keep[f.Path] = f
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := false
	for rel, f := range p.files {
		if f.Kind != kind || f.Extension != "" {
			continue
		}
		if _, ok := keep[rel]; !ok {
			delete(p.files, rel)
			changed = true
		}
	}
	for rel, f := range keep {
		if _, ok := p.files[rel]; !ok {
			p.files[rel] = f
			changed = true
		}
	}
	return changed
}

// File returns the file at rel.
func (p *Project) File(rel string) (*File, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f, ok := p.files[rel]
	return f, ok
}

// Files returns all files ordered by path.
func (p *Project) Files() []*File {
	p.mu.RLock()
	out := make([]*File, 0, len(p.files))
	for _, f := range p.files {
		out = append(out, f)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// AddDefinitions registers step definitions provided outside interaction files.
func (p *Project) AddDefinitions(defs ...*StepDefinition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defs = append(p.defs, defs...)
}

// Definitions returns the extension-provided definitions.
func (p *Project) Definitions() []*StepDefinition {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*StepDefinition(nil), p.defs...)
}

// Compilation is the intermediate result between Compile and Link.
type Compilation struct {
	Project *Project
	Results map[string]*CompileResult
	Kinds   map[string]FileKind
}

// Compiler compiles and links a project.
type Compiler interface {
	// Compile compiles every file of the project.
	Compile(ctx context.Context, p *Project) (*Compilation, error)
	// Link binds test steps to definitions and produces the snapshot.
	Link(ctx context.Context, c *Compilation) (*Snapshot, error)
}

// ExtensionSet is a loaded, disposable group of extensions.
type ExtensionSet interface {
	// AttachTo registers the extensions' definitions with p.
	AttachTo(cfg *config.Project, p *Project) error
	// ContentDirs returns the extension directories whose content/ subtree is
	// merged into the project.
	ContentDirs() []string
	Close() error
}

// ExtensionLoader loads the extensions configured for a workspace.
type ExtensionLoader interface {
	Load(ctx context.Context, rootDir string, sources []string, cfg *config.Project) (ExtensionSet, error)
}
