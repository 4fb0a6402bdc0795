package stepc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"stepls/internal/progress"
	"stepls/internal/project"
	"stepls/internal/trace"
)

type cacheEntry struct {
	kind     project.FileKind
	modified time.Time
	result   *project.CompileResult
}

// Compiler is the step-language compiler. Compile results are cached per file
// by (path, last modified) so unchanged files are not parsed again.
type Compiler struct {
	mu       sync.Mutex
	cache    map[string]cacheEntry
	compiled atomic.Int64
	progress progress.Sink
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithProgress reports per-file compile and link progress to sink.
func WithProgress(sink progress.Sink) Option {
	return func(c *Compiler) {
		c.progress = sink
	}
}

// New creates a compiler with an empty cache.
func New(opts ...Option) *Compiler {
	c := &Compiler{cache: make(map[string]cacheEntry)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compiler) report(file string, stage progress.Stage, status progress.Status) {
	if c.progress != nil {
		c.progress.OnEvent(progress.Event{File: file, Stage: stage, Status: status})
	}
}

func statusOf(msgs ...[]project.Message) progress.Status {
	for _, list := range msgs {
		for _, m := range list {
			if m.Level == project.LevelError {
				return progress.StatusError
			}
		}
	}
	return progress.StatusDone
}

// Compiled returns how many files were parsed rather than served from cache.
func (c *Compiler) Compiled() int64 {
	return c.compiled.Load()
}

// Compile compiles every file of p. Files that no longer exist are skipped.
func (c *Compiler) Compile(ctx context.Context, p *project.Project) (*project.Compilation, error) {
	files := p.Files()
	comp := &project.Compilation{
		Project: p,
		Results: make(map[string]*project.CompileResult, len(files)),
		Kinds:   make(map[string]project.FileKind, len(files)),
	}
	tracer := trace.FromContext(ctx)
	for _, f := range files {
		c.report(f.Path, progress.StageCompile, progress.StatusQueued)
	}
	live := make(map[string]struct{}, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		live[f.Path] = struct{}{}
		c.report(f.Path, progress.StageCompile, progress.StatusWorking)
		res, ok := c.compileFile(f)
		if !ok {
			trace.Point(tracer, trace.ScopeFile, "skip", f.Path)
			c.report(f.Path, progress.StageCompile, progress.StatusDone)
			continue
		}
		c.report(f.Path, progress.StageCompile, statusOf(res.Messages))
		comp.Results[f.Path] = res
		comp.Kinds[f.Path] = f.Kind
	}
	c.prune(live)
	return comp, nil
}

func (c *Compiler) compileFile(f *project.File) (*project.CompileResult, bool) {
	modified := f.Source.LastModified()
	if !modified.IsZero() {
		c.mu.Lock()
		entry, ok := c.cache[f.Path]
		c.mu.Unlock()
		if ok && entry.kind == f.Kind && entry.modified.Equal(modified) {
			return entry.result, true
		}
	}

	content, err := f.Source.Content()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false
		}
		return &project.CompileResult{
			Messages: []project.Message{
				newMessage(f.Path, project.LevelError, project.CodeReadFailed, fmt.Sprintf("cannot read file: %v", err), 1, 1, 0),
			},
		}, true
	}

	var res *project.CompileResult
	switch f.Kind {
	case project.KindInteraction:
		res = compileInteraction(f.Path, content)
	default:
		res = compileTest(f.Path, content)
	}
	c.compiled.Add(1)

	if !modified.IsZero() {
		c.mu.Lock()
		c.cache[f.Path] = cacheEntry{kind: f.Kind, modified: modified, result: res}
		c.mu.Unlock()
	}
	return res, true
}

func (c *Compiler) prune(live map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for rel := range c.cache {
		if _, ok := live[rel]; !ok {
			delete(c.cache, rel)
		}
	}
}

// Link binds the steps of every test file to the definitions of the project
// and produces the snapshot.
func (c *Compiler) Link(ctx context.Context, comp *project.Compilation) (*project.Snapshot, error) {
	c.report("", progress.StageLink, progress.StatusWorking)
	paths := make([]string, 0, len(comp.Results))
	for rel := range comp.Results {
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	defs := comp.Project.Definitions()
	for _, rel := range paths {
		if comp.Kinds[rel] == project.KindInteraction {
			defs = append(defs, comp.Results[rel].Definitions...)
		}
	}

	// The first definition of a keyword and text wins; later ones are
	// reported on their own file.
	patterns := make(map[*project.StepDefinition]*pattern, len(defs))
	firstByKey := make(map[string]*project.StepDefinition, len(defs))
	duplicates := make(map[string][]project.Message)
	var unique []*project.StepDefinition
	for _, def := range defs {
		key := definitionKey(def.Keyword, def.Text)
		if first, dup := firstByKey[key]; dup {
			if first.SourceFile != def.SourceFile {
				duplicates[def.SourceFile] = append(duplicates[def.SourceFile], newMessage(def.SourceFile, project.LevelWarning, project.CodeDuplicateStep,
					fmt.Sprintf("step %q is already defined in %s", def.Keyword+" "+def.Text, first.SourceFile), def.Line, def.Column, 0))
			}
			continue
		}
		firstByKey[key] = def
		pat, err := compilePattern(def.Text)
		if err != nil {
			continue
		}
		patterns[def] = pat
		unique = append(unique, def)
	}

	files := make(map[string]project.FileResult, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res := comp.Results[rel]
		switch comp.Kinds[rel] {
		case project.KindInteraction:
			files[rel] = &project.InteractionResult{
				Compile: res,
				Binding: &project.LinkResult{Messages: duplicates[rel]},
			}
		default:
			files[rel] = &project.TestResult{Compile: res, Link: bindSteps(rel, res, unique, patterns)}
		}
		c.report(rel, progress.StageLink, statusOf(files[rel].Primary(), files[rel].Secondary()))
	}
	c.report("", progress.StageLink, progress.StatusDone)
	return project.NewSnapshot(files, unique), nil
}

func bindSteps(file string, res *project.CompileResult, defs []*project.StepDefinition, patterns map[*project.StepDefinition]*pattern) *project.LinkResult {
	link := &project.LinkResult{}
	bindings := make(map[*project.Element]*project.StepDefinition)
	for _, step := range res.Steps {
		var matches []*project.StepDefinition
		for _, def := range defs {
			if def.Keyword == step.Keyword && patterns[def].match(step.Text) {
				matches = append(matches, def)
			}
		}
		switch len(matches) {
		case 0:
			link.Messages = append(link.Messages, newMessage(file, project.LevelError, project.CodeUnboundStep,
				fmt.Sprintf("no step definition matches %q", step.Keyword+" "+step.Text), step.Line, step.StartColumn, step.EndColumn))
			continue
		case 1:
		default:
			link.Messages = append(link.Messages, newMessage(file, project.LevelWarning, project.CodeAmbiguousStep,
				fmt.Sprintf("%d step definitions match %q, using %s:%d", len(matches), step.Keyword+" "+step.Text, matches[0].SourceFile, matches[0].Line),
				step.Line, step.StartColumn, step.EndColumn))
		}
		bindings[step] = matches[0]
	}
	link.Positions = res.Positions.WithBindings(bindings)
	return link
}

// PossibleDefinitions returns the definitions for keyword whose text starts
// with prefix, ordered by text. An exact match comes first.
func PossibleDefinitions(defs []*project.StepDefinition, keyword, prefix string) []*project.StepDefinition {
	prefix = normalizeText(prefix)
	var out []*project.StepDefinition
	for _, def := range defs {
		if keyword != "" && def.Keyword != keyword {
			continue
		}
		if len(def.Text) >= len(prefix) && def.Text[:len(prefix)] == prefix {
			out = append(out, def)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := out[i].Text == prefix, out[j].Text == prefix
		if ei != ej {
			return ei
		}
		return out[i].Text < out[j].Text
	})
	return out
}
