package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stepls/internal/config"
	"stepls/internal/diagnostics"
	"stepls/internal/fileuri"
	"stepls/internal/project"
	"stepls/internal/stepc"
)

type countingCompiler struct {
	inner    project.Compiler
	compiles atomic.Int32
	links    atomic.Int32

	mu       sync.Mutex
	gate     chan struct{}
	linkGate chan struct{}
}

// block makes later compiles wait until the returned channel is closed.
func (c *countingCompiler) block() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = make(chan struct{})
	return c.gate
}

// blockLink makes later links wait until the returned channel is closed.
func (c *countingCompiler) blockLink() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.linkGate = make(chan struct{})
	return c.linkGate
}

func (c *countingCompiler) Compile(ctx context.Context, p *project.Project) (*project.Compilation, error) {
	c.compiles.Add(1)
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.inner.Compile(ctx, p)
}

func (c *countingCompiler) Link(ctx context.Context, comp *project.Compilation) (*project.Snapshot, error) {
	c.links.Add(1)
	c.mu.Lock()
	gate := c.linkGate
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.inner.Link(ctx, comp)
}

type recordingNotifier struct {
	mu        sync.Mutex
	published map[string][]diagnostics.Diagnostic
	publishes int
	builds    int
	errors    []string
}

func (n *recordingNotifier) PublishDiagnostics(uri string, diags []diagnostics.Diagnostic) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.published == nil {
		n.published = make(map[string][]diagnostics.Diagnostic)
	}
	n.published[uri] = diags
	n.publishes++
	return nil
}

func (n *recordingNotifier) BuildComplete() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.builds++
	return nil
}

func (n *recordingNotifier) ShowError(msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
	return nil
}

func (n *recordingNotifier) counts() (publishes, builds int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.publishes, n.builds
}

type fakeSet struct {
	closes atomic.Int32
}

func (s *fakeSet) AttachTo(*config.Project, *project.Project) error {
	return nil
}

func (s *fakeSet) ContentDirs() []string {
	return nil
}

func (s *fakeSet) Close() error {
	s.closes.Add(1)
	return nil
}

type fakeLoader struct {
	mu   sync.Mutex
	sets []*fakeSet
}

func (l *fakeLoader) Load(context.Context, string, []string, *config.Project) (project.ExtensionSet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := &fakeSet{}
	l.sets = append(l.sets, s)
	return s, nil
}

func (l *fakeLoader) loaded() []*fakeSet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeSet(nil), l.sets...)
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Debugf(format string, args ...any) { l.add(format, args...) }
func (l *recordingLogger) Infof(format string, args ...any)  { l.add(format, args...) }
func (l *recordingLogger) Errorf(format string, args ...any) { l.add("error: "+format, args...) }

func (l *recordingLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

type fixture struct {
	root     string
	host     *Host
	compiler *countingCompiler
	notifier *recordingNotifier
	loader   *fakeLoader
	logger   *recordingLogger
	// stop cancels the consumer and waits for it to return.
	stop func()
}

func newFixture(t *testing.T, maxDelay time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		root:     t.TempDir(),
		compiler: &countingCompiler{inner: stepc.New()},
		notifier: &recordingNotifier{},
		loader:   &fakeLoader{},
		logger:   &recordingLogger{},
	}
	f.host = NewHost(NewCoordinator(), Options{
		Compiler:   f.compiler,
		Extensions: f.loader,
		Notifier:   f.notifier,
		Logger:     f.logger,
		MaxDelay:   maxDelay,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.host.Run(ctx)
	}()
	var once sync.Once
	f.stop = func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	t.Cleanup(f.stop)
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func (f *fixture) init(t *testing.T) {
	t.Helper()
	if err := f.host.Initialize(f.root); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	f.wait(t)
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.host.WaitForUpToDateBuild(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

// hold blocks the consumer until the returned function is called.
func (f *fixture) hold() func() {
	release := make(chan struct{})
	f.host.Coordinator().RunInBackground("hold", func(context.Context) error {
		<-release
		return nil
	})
	return func() { close(release) }
}

func featureName(t *testing.T, snap *project.Snapshot, rel string) string {
	t.Helper()
	for _, feat := range snap.Features() {
		if feat.SourceFile == rel {
			return feat.Name
		}
	}
	t.Fatalf("no feature for %s in snapshot", rel)
	return ""
}

func TestSnapshotFollowsLastEdit(t *testing.T) {
	f := newFixture(t, 0)
	f.write(t, "a.as", "Feature: Disk\n")
	f.init(t)
	if got := featureName(t, f.host.Snapshot(), "a.as"); got != "Disk" {
		t.Fatalf("expected disk content, got %q", got)
	}

	f.host.OpenFile("a.as", "Feature: X\n")
	f.wait(t)
	if got := featureName(t, f.host.Snapshot(), "a.as"); got != "X" {
		t.Fatalf("expected X, got %q", got)
	}

	f.host.EditFile("a.as", "Feature: Y\n")
	f.wait(t)
	if got := featureName(t, f.host.Snapshot(), "a.as"); got != "Y" {
		t.Fatalf("expected Y, got %q", got)
	}
	uri := fileuri.FromPath(filepath.Join(f.root, "a.as"))
	f.notifier.mu.Lock()
	_, published := f.notifier.published[uri]
	f.notifier.mu.Unlock()
	if !published {
		t.Fatalf("expected diagnostics for %s", uri)
	}

	f.host.CloseFile("a.as")
	f.wait(t)
	if got := featureName(t, f.host.Snapshot(), "a.as"); got != "Disk" {
		t.Fatalf("expected disk content after close, got %q", got)
	}
}

func TestEditBurstCompilesOnce(t *testing.T) {
	f := newFixture(t, 0)
	f.write(t, "a.as", "Feature: Disk\n")
	f.init(t)
	before := f.compiler.compiles.Load()

	release := f.hold()
	f.host.OpenFile("a.as", "Feature: 0\n")
	for i := 1; i <= 5; i++ {
		f.host.EditFile("a.as", fmt.Sprintf("Feature: %d\n", i))
	}
	release()
	f.wait(t)

	if got := f.compiler.compiles.Load() - before; got != 1 {
		t.Fatalf("expected exactly one compile for the burst, got %d", got)
	}
	if got := featureName(t, f.host.Snapshot(), "a.as"); got != "5" {
		t.Fatalf("expected last edit, got %q", got)
	}
}

func TestMaxDelayBoundsSkipping(t *testing.T) {
	f := newFixture(t, time.Nanosecond)
	f.write(t, "a.as", "Feature: Disk\n")
	f.init(t)
	before := f.compiler.compiles.Load()

	release := f.hold()
	f.host.OpenFile("a.as", "Feature: 0\n")
	for i := 1; i <= 5; i++ {
		f.host.EditFile("a.as", fmt.Sprintf("Feature: %d\n", i))
	}
	release()
	f.wait(t)

	if got := f.compiler.compiles.Load() - before; got < 2 {
		t.Fatalf("expected overdue rebuilds to run, got %d compiles", got)
	}
	if got := featureName(t, f.host.Snapshot(), "a.as"); got != "5" {
		t.Fatalf("expected last edit, got %q", got)
	}
}

func TestDuplicateCreateIsIdempotent(t *testing.T) {
	f := newFixture(t, 0)
	f.init(t)
	before := f.compiler.compiles.Load()

	f.write(t, "b.as", "Feature: B\n")
	release := f.hold()
	f.host.DiskFileCreated("b.as")
	f.host.DiskFileCreated("b.as")
	release()
	f.wait(t)
	if got := f.compiler.compiles.Load() - before; got != 1 {
		t.Fatalf("expected one compile, got %d", got)
	}
	if got := featureName(t, f.host.Snapshot(), "b.as"); got != "B" {
		t.Fatalf("expected B, got %q", got)
	}

	f.host.DiskFileCreated("b.as")
	f.wait(t)
	if got := f.compiler.compiles.Load() - before; got != 1 {
		t.Fatalf("known file should not trigger a rebuild, got %d compiles", got)
	}

	if err := os.Remove(filepath.Join(f.root, "b.as")); err != nil {
		t.Fatal(err)
	}
	f.host.DiskFileDeleted("b.as")
	f.wait(t)
	if _, ok := f.host.Snapshot().File("b.as"); ok {
		t.Fatal("deleted file still in snapshot")
	}
}

func TestUntrackedFilesIgnored(t *testing.T) {
	f := newFixture(t, 0)
	f.init(t)
	before := f.compiler.compiles.Load()
	f.write(t, "notes.txt", "hello")
	f.host.DiskFileCreated("notes.txt")
	f.host.DiskFileChanged("notes.txt")
	f.wait(t)
	if got := f.compiler.compiles.Load() - before; got != 0 {
		t.Fatalf("expected no compile, got %d", got)
	}
}

func TestCancelledWaitPublishesNothing(t *testing.T) {
	f := newFixture(t, 0)
	f.init(t)
	gate := f.compiler.block()
	publishes, builds := f.notifier.counts()

	f.host.OpenFile("a.as", "Feature: A\n")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.host.WaitForUpToDateBuild(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if p, b := f.notifier.counts(); p != publishes || b != builds {
		t.Fatalf("notifications sent while the build was unfinished: %d/%d -> %d/%d", publishes, builds, p, b)
	}

	close(gate)
	f.wait(t)
	if _, b := f.notifier.counts(); b != builds+1 {
		t.Fatalf("expected one build notification after release, got %d", b-builds)
	}
}

// waitFor polls cond until it holds or a few seconds have passed.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStoppedRebuildPublishesNothing(t *testing.T) {
	cases := []struct {
		name    string
		block   func(c *countingCompiler) chan struct{}
		entered func(c *countingCompiler) *atomic.Int32
	}{
		{
			name:    "compile",
			block:   (*countingCompiler).block,
			entered: func(c *countingCompiler) *atomic.Int32 { return &c.compiles },
		},
		{
			name:    "link",
			block:   (*countingCompiler).blockLink,
			entered: func(c *countingCompiler) *atomic.Int32 { return &c.links },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 0)
			f.write(t, "a.as", "Feature: Disk\n")
			f.init(t)
			previous := f.host.Snapshot()
			if previous == nil {
				t.Fatal("expected an initial snapshot")
			}
			publishes, builds := f.notifier.counts()

			gate := tc.block(f.compiler)
			defer close(gate)
			counter := tc.entered(f.compiler)
			before := counter.Load()
			f.host.OpenFile("a.as", "Feature: Open\n")
			waitFor(t, "the rebuild to start", func() bool { return counter.Load() > before })

			f.stop()

			if p, b := f.notifier.counts(); p != publishes || b != builds {
				t.Fatalf("stopped rebuild notified the client: %d/%d -> %d/%d", publishes, builds, p, b)
			}
			if got := f.host.Coordinator().Pending(); got != 0 {
				t.Fatalf("expected no pending actions, got %d", got)
			}
			if f.host.Snapshot() != previous {
				t.Fatal("stopped rebuild replaced the snapshot")
			}
			if got := featureName(t, f.host.Snapshot(), "a.as"); got != "Disk" {
				t.Fatalf("expected the previous build, got %q", got)
			}
		})
	}
}

func TestConfigDeleteDisposesOnce(t *testing.T) {
	f := newFixture(t, 0)
	f.write(t, config.FileName, "{}")
	f.init(t)
	sets := f.loader.loaded()
	if len(sets) != 1 {
		t.Fatalf("expected one extension load, got %d", len(sets))
	}

	if err := os.Remove(filepath.Join(f.root, config.FileName)); err != nil {
		t.Fatal(err)
	}
	f.host.DiskFileDeleted(config.FileName)
	f.wait(t)

	sets = f.loader.loaded()
	if len(sets) != 2 {
		t.Fatalf("expected a second extension load, got %d", len(sets))
	}
	if got := sets[0].closes.Load(); got != 1 {
		t.Fatalf("previous extensions closed %d times", got)
	}
	if got := sets[1].closes.Load(); got != 0 {
		t.Fatalf("current extensions closed %d times", got)
	}
	if f.host.Snapshot() == nil {
		t.Fatal("expected a rebuilt snapshot")
	}
}

func TestConfigErrorLeavesNoProject(t *testing.T) {
	f := newFixture(t, 0)
	f.write(t, config.FileName, "{not json")
	f.write(t, "a.as", "Feature: A\n")
	f.init(t)

	f.notifier.mu.Lock()
	errs := append([]string(nil), f.notifier.errors...)
	f.notifier.mu.Unlock()
	if len(errs) != 1 || !strings.HasPrefix(errs[0], "There is a problem with the project configuration: ") {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if f.host.Snapshot() != nil {
		t.Fatal("expected no snapshot")
	}

	f.write(t, config.FileName, "{}")
	f.host.DiskFileChanged("AUTOSTEP.CONFIG.JSON")
	f.wait(t)
	if f.host.Snapshot() == nil {
		t.Fatal("expected the fixed configuration to load")
	}
}

func TestEditWithoutOpenIsIgnored(t *testing.T) {
	f := newFixture(t, 0)
	f.init(t)
	f.host.EditFile("a.as", "Feature: A\n")
	if got := f.host.Coordinator().Pending(); got != 0 {
		t.Fatalf("expected nothing scheduled, got %d pending", got)
	}
	if !f.logger.contains("not open") {
		t.Fatal("expected the ignored edit to be logged")
	}
}

func TestQueries(t *testing.T) {
	f := newFixture(t, 0)
	f.write(t, "steps.asi", "Step: Given a basket with {count} items\n  Fills the basket.\n")
	f.write(t, "a.as", "")
	f.init(t)

	f.host.OpenFile("a.as", "Feature: Checkout\n  Scenario: Pay\n    Given a basket with 3 items\n")
	info, err := f.host.PositionInfo(context.Background(), "a.as", 2, 10)
	if err != nil {
		t.Fatalf("position info: %v", err)
	}
	if info == nil || info.Element == nil || info.Element.Binding == nil {
		t.Fatalf("expected a bound step, got %+v", info)
	}
	if got := info.Element.Binding.Description; got != "Fills the basket." {
		t.Fatalf("unexpected description %q", got)
	}

	if _, ok := f.host.TryGetOpenFile("steps.asi"); ok {
		t.Fatal("closed file reported as open")
	}
	if file, ok := f.host.TryGetOpenFile("a.as"); !ok || file.Kind != project.KindTest {
		t.Fatalf("expected open test file, got %+v", file)
	}
	uri, ok := f.host.GetPathURI("steps.asi")
	if !ok || uri != fileuri.FromPath(filepath.Join(f.root, "steps.asi")) {
		t.Fatalf("unexpected uri %q", uri)
	}
	if info, err := f.host.PositionInfo(context.Background(), "steps.asi", 0, 0); err != nil || info != nil {
		t.Fatalf("expected no info for a closed file, got %+v, %v", info, err)
	}

	features, err := f.host.Features(context.Background())
	if err != nil || len(features) != 1 || features[0].Name != "Checkout" {
		t.Fatalf("unexpected features %+v, %v", features, err)
	}
	defs, err := f.host.Definitions(context.Background())
	if err != nil || len(defs) != 1 {
		t.Fatalf("unexpected definitions %+v, %v", defs, err)
	}
}

func TestNewLoggerFiltersLevels(t *testing.T) {
	var buf strings.Builder
	log := NewLogger(&buf, "info")
	log.Debugf("hidden %d", 1)
	log.Infof("shown %d", 2)
	log.Errorf("failed %d", 3)
	want := "stepls: shown 2\nstepls: error: failed 3\n"
	if buf.String() != want {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
