package workspace

import (
	"context"
	"path/filepath"
	"strings"

	"stepls/internal/fileset"
	"stepls/internal/fileuri"
	"stepls/internal/project"
)

// TryGetOpenFile returns the project file at rel when it is both open in the
// editor and part of the current project.
func (h *Host) TryGetOpenFile(rel string) (*project.File, bool) {
	rel = fileset.Normalize(rel)
	if !h.overlay.IsOpen(rel) {
		return nil, false
	}
	pc := h.current.Load()
	if pc == nil {
		return nil, false
	}
	return pc.project.File(rel)
}

// GetPathURI resolves a project path, including extension files, to a URI.
func (h *Host) GetPathURI(rel string) (string, bool) {
	pc := h.current.Load()
	if pc == nil {
		return "", false
	}
	f, ok := pc.project.File(fileset.Normalize(rel))
	if !ok {
		return "", false
	}
	return fileuri.FromPath(f.Absolute), true
}

// PositionInfo waits for an up-to-date build and looks up the element at the
// 0-based line and character of an open project file. It returns nil when the
// file is not open, not tracked or has no result yet.
func (h *Host) PositionInfo(ctx context.Context, rel string, line, character int) (*project.PositionInfo, error) {
	if err := h.WaitForUpToDateBuild(ctx); err != nil {
		return nil, err
	}
	f, ok := h.TryGetOpenFile(rel)
	if !ok {
		return nil, nil
	}
	res, ok := h.Snapshot().File(f.Path)
	if !ok || res.Positions() == nil {
		return nil, nil
	}
	return res.Positions().Lookup(line+1, character+1), nil
}

// Features waits for an up-to-date build and lists the declared features.
func (h *Host) Features(ctx context.Context) ([]project.FeatureInfo, error) {
	if err := h.WaitForUpToDateBuild(ctx); err != nil {
		return nil, err
	}
	return h.Snapshot().Features(), nil
}

// Definitions waits for an up-to-date build and returns every linked step
// definition.
func (h *Host) Definitions(ctx context.Context) ([]*project.StepDefinition, error) {
	if err := h.WaitForUpToDateBuild(ctx); err != nil {
		return nil, err
	}
	snap := h.Snapshot()
	if snap == nil {
		return nil, nil
	}
	return snap.Definitions, nil
}

// relativeTo returns abs relative to root, slash-separated, or abs itself
// when it lies outside root.
func relativeTo(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
