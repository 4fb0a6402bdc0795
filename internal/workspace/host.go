// Package workspace keeps the in-memory model of a workspace in step with
// editor edits, disk events and background rebuilds.
//
// Every mutation updates local state synchronously and then schedules work
// on the Coordinator. Only the background consumer touches the project, the
// file sets and the snapshot; readers load the snapshot pointer after
// WaitForUpToDateBuild returns.
package workspace

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"time"

	"stepls/internal/config"
	"stepls/internal/diagnostics"
	"stepls/internal/fileset"
	"stepls/internal/overlay"
	"stepls/internal/project"
	"stepls/internal/taskqueue"
	"stepls/internal/trace"
)

// ErrNotInitialized is returned by operations that need a workspace root
// before Initialize has been called.
var ErrNotInitialized = errors.New("workspace: not initialized")

// DefaultMaxDelay bounds how long the debounce guard may keep skipping
// rebuilds while newer work is queued.
const DefaultMaxDelay = 5 * time.Second

// Notifier receives everything the host pushes to the editor.
type Notifier interface {
	diagnostics.Publisher
	// BuildComplete is sent after every rebuild that ran to completion.
	BuildComplete() error
	// ShowError reports a one-shot problem to the user.
	ShowError(msg string) error
}

// Options configures a Host.
type Options struct {
	Compiler   project.Compiler
	Extensions project.ExtensionLoader
	Notifier   Notifier
	Logger     Logger
	Tracer     trace.Tracer
	// MaxDelay is the starvation bound of the debounce guard. Zero disables
	// it; a negative value selects DefaultMaxDelay.
	MaxDelay time.Duration
}

// projectContext is everything built by one project load. It is replaced
// as a whole by reload.
type projectContext struct {
	cfg        *config.Project
	project    *project.Project
	tracker    *fileset.Tracker
	extensions project.ExtensionSet
}

// Host is the workspace state holder.
type Host struct {
	coord    *Coordinator
	overlay  *overlay.Overlay
	compiler project.Compiler
	loader   project.ExtensionLoader
	notifier Notifier
	log      Logger
	tracer   trace.Tracer
	maxDelay time.Duration

	root     atomic.Pointer[string]
	current  atomic.Pointer[projectContext]
	snapshot atomic.Pointer[project.Snapshot]

	// skipSince is the time the debounce guard first skipped a rebuild in
	// the current burst. Consumer only.
	skipSince time.Time
	// deferred is set when the guard skipped a rebuild that nothing has
	// replaced yet. Consumer only. A background action that may end the
	// burst without scheduling a rebuild must schedule one while deferred
	// is set, as the disk event actions do, or the skipped build is lost.
	deferred bool
}

// NewHost creates a host scheduling its work on coord.
func NewHost(coord *Coordinator, opts Options) *Host {
	h := &Host{
		coord:    coord,
		overlay:  overlay.New(),
		compiler: opts.Compiler,
		loader:   opts.Extensions,
		notifier: opts.Notifier,
		log:      opts.Logger,
		tracer:   opts.Tracer,
		maxDelay: opts.MaxDelay,
	}
	if h.log == nil {
		h.log = nopLogger{}
	}
	if h.tracer == nil {
		h.tracer = trace.Nop
	}
	if h.maxDelay < 0 {
		h.maxDelay = DefaultMaxDelay
	}
	return h
}

// Run drains the background queue until ctx is done or the coordinator is
// closed. Action failures are logged and never stop the loop.
func (h *Host) Run(ctx context.Context) error {
	ctx = trace.WithTracer(ctx, h.tracer)
	return h.coord.Run(ctx, func(action string, err error) {
		h.log.Errorf("background %s failed: %v", action, err)
		var panicErr *taskqueue.PanicError
		if errors.As(err, &panicErr) {
			h.log.Debugf("%s", panicErr.Stack)
		}
	})
}

// Coordinator returns the coordinator the host schedules on.
func (h *Host) Coordinator() *Coordinator {
	return h.coord
}

// Initialize records the workspace root and schedules the first project load.
func (h *Host) Initialize(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	h.root.Store(&abs)
	h.log.Infof("workspace root %s", abs)
	h.scheduleReload()
	return nil
}

// Root returns the absolute workspace root, or "" before Initialize.
func (h *Host) Root() string {
	if p := h.root.Load(); p != nil {
		return *p
	}
	return ""
}

// Relative converts an absolute path to a slash-separated path relative to
// the root. Paths outside the root are returned slash-separated and absolute.
func (h *Host) Relative(abs string) (string, error) {
	root := h.Root()
	if root == "" {
		return "", ErrNotInitialized
	}
	return relativeTo(root, abs), nil
}

// OpenFile records the editor content of rel and schedules a rebuild.
func (h *Host) OpenFile(rel, content string) {
	rel = fileset.Normalize(rel)
	h.overlay.Open(rel, content)
	h.scheduleRebuild()
}

// EditFile replaces the editor content of an open file and schedules a
// rebuild. Editing a file that was never opened is logged and ignored.
func (h *Host) EditFile(rel, content string) {
	rel = fileset.Normalize(rel)
	if !h.overlay.Update(rel, content) {
		h.log.Errorf("edit of %s ignored: file is not open", rel)
		return
	}
	h.scheduleRebuild()
}

// CloseFile drops the editor content of rel. Later reads use the disk, so a
// rebuild is scheduled to pick that content up.
func (h *Host) CloseFile(rel string) {
	rel = fileset.Normalize(rel)
	if !h.overlay.Close(rel) {
		return
	}
	h.scheduleRebuild()
}

// DiskFileCreated handles a file appearing on disk.
func (h *Host) DiskFileCreated(rel string) {
	rel = fileset.Normalize(rel)
	if config.IsConfigFile(rel) {
		h.scheduleReload()
		return
	}
	h.coord.RunInBackground("file created", func(ctx context.Context) error {
		pc := h.current.Load()
		if pc == nil {
			return nil
		}
		if pc.tracker.TryAdd(rel) {
			h.mergeSet(pc, rel)
		} else if !h.deferred {
			return nil
		}
		h.scheduleRebuild()
		return nil
	})
}

// DiskFileDeleted handles a file disappearing from disk.
func (h *Host) DiskFileDeleted(rel string) {
	rel = fileset.Normalize(rel)
	if config.IsConfigFile(rel) {
		h.scheduleReload()
		return
	}
	h.coord.RunInBackground("file deleted", func(ctx context.Context) error {
		pc := h.current.Load()
		if pc == nil {
			return nil
		}
		if pc.tracker.TryRemove(rel) {
			h.mergeSet(pc, rel)
		} else if !h.deferred {
			return nil
		}
		h.scheduleRebuild()
		return nil
	})
}

// DiskFileChanged handles a content change on disk. Only the configuration
// file needs work; other files are read afresh by the next rebuild.
func (h *Host) DiskFileChanged(rel string) {
	if config.IsConfigFile(fileset.Normalize(rel)) {
		h.scheduleReload()
	}
}

// ReloadProject disposes the current project and loads it again.
func (h *Host) ReloadProject() {
	h.scheduleReload()
}

// WaitForUpToDateBuild blocks until every mutation scheduled before the call
// has been processed, or ctx is done.
func (h *Host) WaitForUpToDateBuild(ctx context.Context) error {
	return h.coord.Wait(ctx)
}

// Snapshot returns the most recent snapshot without waiting. It is nil until
// the first rebuild completes and after a project is disposed.
func (h *Host) Snapshot() *project.Snapshot {
	return h.snapshot.Load()
}

// OpenContent returns the editor content of rel.
func (h *Host) OpenContent(rel string) (string, bool) {
	state, ok := h.overlay.Get(fileset.Normalize(rel))
	return state.Content, ok
}

func (h *Host) scheduleRebuild() {
	h.coord.RunInBackground("rebuild", h.rebuild)
}

func (h *Host) scheduleReload() {
	h.coord.RunInBackground("reload", h.reload)
}

// mergeSet brings the project file table in line with the tracker set that
// owns rel.
func (h *Host) mergeSet(pc *projectContext, rel string) {
	set := pc.tracker.SetFor(rel)
	if set == nil {
		return
	}
	kind, _ := project.KindOf(rel)
	pc.project.Merge(kind, h.filesOf(set, kind))
}

func (h *Host) filesOf(set *fileset.Set, kind project.FileKind) []*project.File {
	entries := set.Entries()
	files := make([]*project.File, 0, len(entries))
	for _, e := range entries {
		if k, ok := project.KindOf(e.Relative); !ok || k != kind {
			continue
		}
		files = append(files, &project.File{
			Path:     e.Relative,
			Absolute: e.Absolute,
			Kind:     kind,
			Source:   h.overlay.Source(e.Relative, e.Absolute),
		})
	}
	return files
}
