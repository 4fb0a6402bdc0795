// Package config loads the per-workspace project configuration and the
// server settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileName is the project configuration file at the workspace root.
const FileName = "autostep.config.json"

// Default globs of the two file sets.
var (
	DefaultTests        = []string{"**/*.as"}
	DefaultInteractions = []string{"**/*.asi"}
	// ExcludeGlobs are never part of either set.
	ExcludeGlobs = []string{".autostep/**"}
)

// ExtensionsDir holds installed extensions, relative to the workspace root.
const ExtensionsDir = ".autostep/extensions"

// Extension is one entry of the "extensions" list.
type Extension struct {
	Package string `json:"package"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// Project is the decoded project configuration.
type Project struct {
	Tests            []string    `json:"tests,omitempty"`
	Interactions     []string    `json:"interactions,omitempty"`
	ExtensionSources []string    `json:"extensionSources,omitempty"`
	Extensions       []Extension `json:"extensions,omitempty"`
}

// DefaultProject returns the configuration used when no file exists.
func DefaultProject() *Project {
	return &Project{
		Tests:        append([]string(nil), DefaultTests...),
		Interactions: append([]string(nil), DefaultInteractions...),
	}
}

// Error reports a problem with the project configuration.
type Error struct {
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Msg
	}
	return e.Path + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigFile reports whether the workspace-relative path names the project
// configuration file. The comparison ignores case.
func IsConfigFile(rel string) bool {
	rel = path.Clean(filepath.ToSlash(rel))
	return strings.EqualFold(rel, FileName)
}

// LoadProject reads the configuration of the workspace at root. A missing file
// yields the defaults. Environment overrides are applied last.
func LoadProject(root string) (*Project, error) {
	cfg := DefaultProject()
	file := filepath.Join(root, FileName)
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, &Error{Path: file, Msg: fmt.Sprintf("invalid JSON: %v", err), Err: err}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	applyEnv(cfg)
	if err := cfg.validate(file); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Project) validate(file string) error {
	if len(p.Tests) == 0 {
		p.Tests = append([]string(nil), DefaultTests...)
	}
	if len(p.Interactions) == 0 {
		p.Interactions = append([]string(nil), DefaultInteractions...)
	}
	for i, ext := range p.Extensions {
		if strings.TrimSpace(ext.Package) == "" {
			return &Error{Path: file, Msg: fmt.Sprintf("extensions[%d]: missing required \"package\"", i)}
		}
	}
	for _, src := range p.ExtensionSources {
		if strings.TrimSpace(src) == "" {
			return &Error{Path: file, Msg: "extensionSources: empty entry"}
		}
	}
	return nil
}

// ExtensionEnabled reports whether the named extension is listed and enabled.
func (p *Project) ExtensionEnabled(name string) bool {
	for _, ext := range p.Extensions {
		if ext.Package == name {
			return ext.Enabled == nil || *ext.Enabled
		}
	}
	return false
}
