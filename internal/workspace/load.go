package workspace

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"stepls/internal/config"
	"stepls/internal/fileset"
	"stepls/internal/project"
	"stepls/internal/trace"
)

// extensionContent selects the files an extension contributes to the project.
var extensionContent = []string{"content/**/*.as", "content/**/*.asi"}

// reload disposes the current project, loads a new one and schedules a
// rebuild. Load failures are reported to the user and leave the workspace
// without a project.
func (h *Host) reload(ctx context.Context) error {
	root := h.Root()
	if root == "" {
		return ErrNotInitialized
	}
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeServer, "reload", trace.CurrentSpan(ctx).SpanID)
	h.dispose()

	pc, err := h.load(ctx, root)
	if err != nil {
		if ctx.Err() != nil {
			span.End("cancelled")
			return nil
		}
		span.End("error")
		h.reportLoadError(err)
		return nil
	}
	h.current.Store(pc)
	span.End(fmt.Sprintf("%d tests, %d interactions", pc.tracker.Tests.Len(), pc.tracker.Interactions.Len()))
	h.log.Infof("project loaded: %d test files, %d interaction files", pc.tracker.Tests.Len(), pc.tracker.Interactions.Len())
	h.scheduleRebuild()
	return nil
}

// dispose drops the current project and its snapshot and releases its
// extensions.
func (h *Host) dispose() {
	pc := h.current.Swap(nil)
	h.snapshot.Store(nil)
	h.deferred = false
	h.skipSince = timeZero
	if pc == nil || pc.extensions == nil {
		return
	}
	if err := pc.extensions.Close(); err != nil {
		h.log.Errorf("dispose extensions: %v", err)
	}
}

func (h *Host) load(ctx context.Context, root string) (*projectContext, error) {
	cfg, err := config.LoadProject(root)
	if err != nil {
		return nil, err
	}
	tracker, err := fileset.NewTracker(root, cfg.Tests, cfg.Interactions, config.ExcludeGlobs)
	if err != nil {
		return nil, fmt.Errorf("enumerate project files: %w", err)
	}
	p := project.New()
	p.Merge(project.KindTest, h.filesOf(tracker.Tests, project.KindTest))
	p.Merge(project.KindInteraction, h.filesOf(tracker.Interactions, project.KindInteraction))

	pc := &projectContext{cfg: cfg, project: p, tracker: tracker}
	if h.loader == nil {
		return pc, nil
	}
	exts, err := h.loader.Load(ctx, root, cfg.ExtensionSources, cfg)
	if err != nil {
		return nil, err
	}
	if err := exts.AttachTo(cfg, p); err != nil {
		_ = exts.Close()
		return nil, fmt.Errorf("attach extensions: %w", err)
	}
	if err := h.addExtensionContent(root, p, exts.ContentDirs()); err != nil {
		_ = exts.Close()
		return nil, err
	}
	pc.extensions = exts
	return pc, nil
}

// addExtensionContent merges the read-only content files of every extension
// directory into p.
func (h *Host) addExtensionContent(root string, p *project.Project, dirs []string) error {
	for _, dir := range dirs {
		set, err := fileset.New(dir, extensionContent, nil)
		if err != nil {
			return err
		}
		if err := set.Scan(); err != nil {
			return fmt.Errorf("extension content: %w", err)
		}
		name := filepath.Base(dir)
		for _, e := range set.Entries() {
			kind, ok := project.KindOf(e.Relative)
			if !ok {
				continue
			}
			key := relativeTo(root, e.Absolute)
			p.AddFile(&project.File{
				Path:      key,
				Absolute:  e.Absolute,
				Kind:      kind,
				Source:    h.overlay.Source(key, e.Absolute),
				Extension: name,
			})
		}
	}
	return nil
}

func (h *Host) reportLoadError(err error) {
	msg := "Failed to load project: " + err.Error()
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		msg = "There is a problem with the project configuration: " + cfgErr.Error()
	}
	h.log.Errorf("%s", msg)
	if h.notifier == nil {
		return
	}
	if err := h.notifier.ShowError(msg); err != nil {
		h.log.Errorf("show error: %v", err)
	}
}
