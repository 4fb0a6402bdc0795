// Package extension loads workspace extensions. An extension is a directory
// named after its package holding an optional extension.lua script and an
// optional content/ tree of step files. The script registers step
// definitions through the global step(keyword, text[, description]) function.
package extension

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"stepls/internal/config"
	"stepls/internal/project"
)

// ScriptName is the entry script of an extension directory.
const ScriptName = "extension.lua"

// Extension is one loaded extension.
type Extension struct {
	Name string
	Dir  string
	Defs []*project.StepDefinition

	state *lua.LState
}

// Loader loads extensions with an embedded Lua interpreter.
type Loader struct{}

// NewLoader creates a loader.
func NewLoader() *Loader { return &Loader{} }

// Load resolves every enabled extension of cfg against the search
// directories (sources relative to rootDir, then the workspace extension
// directory) and runs its script.
func (l *Loader) Load(ctx context.Context, rootDir string, sources []string, cfg *config.Project) (project.ExtensionSet, error) {
	dirs := searchDirs(rootDir, sources)
	set := &Set{root: rootDir}
	for _, entry := range cfg.Extensions {
		if !cfg.ExtensionEnabled(entry.Package) {
			continue
		}
		if err := ctx.Err(); err != nil {
			_ = set.Close()
			return nil, err
		}
		dir, ok := findExtension(dirs, entry.Package)
		if !ok {
			_ = set.Close()
			return nil, &config.Error{Msg: fmt.Sprintf("extension %q not found (searched %s)", entry.Package, strings.Join(dirs, ", "))}
		}
		ext, err := load(ctx, rootDir, entry.Package, dir)
		if err != nil {
			_ = set.Close()
			return nil, fmt.Errorf("extension %q: %w", entry.Package, err)
		}
		set.exts = append(set.exts, ext)
	}
	return set, nil
}

func searchDirs(rootDir string, sources []string) []string {
	dirs := make([]string, 0, len(sources)+1)
	for _, src := range sources {
		if !filepath.IsAbs(src) {
			src = filepath.Join(rootDir, filepath.FromSlash(src))
		}
		dirs = append(dirs, src)
	}
	return append(dirs, filepath.Join(rootDir, filepath.FromSlash(config.ExtensionsDir)))
}

func findExtension(dirs []string, name string) (string, bool) {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

func load(ctx context.Context, rootDir, name, dir string) (*Extension, error) {
	ext := &Extension{Name: name, Dir: dir}
	script := filepath.Join(dir, ScriptName)
	if _, err := os.Stat(script); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ext, nil
		}
		return nil, err
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	L.SetContext(ctx)
	ext.state = L

	source := displayPath(rootDir, script)
	L.SetGlobal("step", L.NewFunction(func(L *lua.LState) int {
		keyword := L.CheckString(1)
		text := L.CheckString(2)
		description := L.OptString(3, "")
		switch keyword {
		case "Given", "When", "Then":
		default:
			L.ArgError(1, "keyword must be Given, When or Then")
			return 0
		}
		def := &project.StepDefinition{
			Keyword:     keyword,
			Text:        strings.Join(strings.Fields(text), " "),
			Description: description,
			Arguments:   placeholders(text),
			SourceFile:  source,
			Line:        callerLine(L),
			Column:      1,
			Extension:   name,
		}
		ext.Defs = append(ext.Defs, def)
		return 0
	}))

	if err := L.DoFile(script); err != nil {
		L.Close()
		return nil, err
	}
	return ext, nil
}

func callerLine(L *lua.LState) int {
	dbg, ok := L.GetStack(1)
	if !ok {
		return 1
	}
	if _, err := L.GetInfo("l", dbg, lua.LNil); err != nil || dbg.CurrentLine < 1 {
		return 1
	}
	return dbg.CurrentLine
}

func placeholders(text string) []string {
	var args []string
	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			return args
		}
		closeIdx := strings.IndexByte(text[open:], '}')
		if closeIdx < 0 {
			return args
		}
		args = append(args, strings.TrimSpace(text[open+1:open+closeIdx]))
		text = text[open+closeIdx+1:]
	}
}

// displayPath returns p relative to root when it lies inside it.
func displayPath(root, p string) string {
	if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return p
}

// Set is the group of extensions loaded for one project.
type Set struct {
	root string
	exts []*Extension

	closeOnce sync.Once
}

// Extensions returns the loaded extensions.
func (s *Set) Extensions() []*Extension {
	return s.exts
}

// AttachTo registers the definitions of every extension with p.
func (s *Set) AttachTo(cfg *config.Project, p *project.Project) error {
	for _, ext := range s.exts {
		if !cfg.ExtensionEnabled(ext.Name) {
			continue
		}
		p.AddDefinitions(ext.Defs...)
	}
	return nil
}

// ContentDirs returns the extension directories.
func (s *Set) ContentDirs() []string {
	dirs := make([]string, 0, len(s.exts))
	for _, ext := range s.exts {
		dirs = append(dirs, ext.Dir)
	}
	return dirs
}

// Close releases the interpreters. It is safe to call more than once.
func (s *Set) Close() error {
	s.closeOnce.Do(func() {
		for _, ext := range s.exts {
			if ext.state != nil {
				ext.state.Close()
				ext.state = nil
			}
		}
	})
	return nil
}
