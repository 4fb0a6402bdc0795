package stepc

import (
	"context"
	"io/fs"
	"testing"
	"time"

	"stepls/internal/progress"
	"stepls/internal/project"
)

type memSource struct {
	content  string
	modified time.Time
	err      error
}

func (s *memSource) Content() (string, error) { return s.content, s.err }
func (s *memSource) LastModified() time.Time  { return s.modified }

func addFile(p *project.Project, rel string, src *memSource) {
	kind, _ := project.KindOf(rel)
	p.AddFile(&project.File{Path: rel, Kind: kind, Source: src})
}

func codes(msgs []project.Message) []int {
	out := make([]int, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Code)
	}
	return out
}

const checkoutFeature = `Feature: Checkout
  Paying for a basket.

  Scenario: Card payment
    Given a basket with 3 items
    When I pay by card
    And I confirm
`

const checkoutSteps = `Step: Given a basket with {count} items
  Fills the basket.
Step: When I pay by card
Step: When I confirm
`

func TestCompileTestFile(t *testing.T) {
	res := compileTest("a.as", checkoutFeature)
	if len(res.Messages) != 0 {
		t.Fatalf("unexpected messages: %v", res.Messages)
	}
	if res.Feature == nil || res.Feature.Name != "Checkout" || res.Feature.Description != "Paying for a basket." {
		t.Fatalf("unexpected feature: %+v", res.Feature)
	}
	if len(res.Feature.Scenarios) != 1 || len(res.Steps) != 3 {
		t.Fatalf("expected 1 scenario with 3 steps, got %d scenarios %d steps", len(res.Feature.Scenarios), len(res.Steps))
	}
	and := res.Steps[2]
	if and.Keyword != "When" || and.Text != "I confirm" {
		t.Fatalf("And should inherit the previous keyword: %+v", and)
	}
	info := res.Positions.Lookup(5, 8)
	if info == nil || info.Element != res.Steps[0] {
		t.Fatalf("expected first step at 5:8, got %+v", info)
	}
	if info.Element.StartColumn != 5 || info.Element.EndColumn != 31 {
		t.Fatalf("unexpected columns %d-%d", info.Element.StartColumn, info.Element.EndColumn)
	}
	if blank := res.Positions.Lookup(6, 1); blank.Scope != project.ScopeScenario {
		t.Fatalf("expected scenario scope, got %v", blank.Scope)
	}
}

func TestCompileTestFileErrors(t *testing.T) {
	src := `Given too early
Feature: One
  Scenario: S
    And nothing before
    Then
    Given ok
Feature: Two
`
	res := compileTest("bad.as", src)
	got := codes(res.Messages)
	want := []int{project.CodeStepOutsideScenario, project.CodeAndWithoutStep, project.CodeEmptyStep, project.CodeDuplicateFeature}
	if len(got) != len(want) {
		t.Fatalf("expected codes %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected codes %v, got %v", want, got)
		}
	}
	if first := res.Messages[0]; first.StartLine != 1 || first.StartColumn != 1 || first.EndColumn != 15 {
		t.Fatalf("unexpected range: %+v", first)
	}
}

func TestCompileInteractionFile(t *testing.T) {
	res := compileInteraction("steps.asi", checkoutSteps+"Step: Given a basket with {n} items\nStep: Then {unterminated\n")
	if len(res.Definitions) != 4 {
		t.Fatalf("expected 4 definitions, got %d", len(res.Definitions))
	}
	first := res.Definitions[0]
	if first.Description != "Fills the basket." || len(first.Arguments) != 1 || first.Arguments[0] != "count" {
		t.Fatalf("unexpected definition: %+v", first)
	}
	got := codes(res.Messages)
	if len(got) != 1 || got[0] != project.CodeBadDefinition {
		t.Fatalf("expected one bad definition, got %v", got)
	}
}

func TestDuplicateDefinitionInFile(t *testing.T) {
	res := compileInteraction("d.asi", "Step: When I go\nStep: When I go\n")
	if got := codes(res.Messages); len(got) != 1 || got[0] != project.CodeDuplicateStep {
		t.Fatalf("expected duplicate warning, got %v", got)
	}
	if res.Messages[0].Level != project.LevelWarning {
		t.Fatal("duplicate should be a warning")
	}
}

func TestCompileAndLink(t *testing.T) {
	p := project.New()
	now := time.Now()
	addFile(p, "checkout.as", &memSource{content: checkoutFeature + "    Then the order ships\n", modified: now})
	addFile(p, "steps.asi", &memSource{content: checkoutSteps, modified: now})

	c := New()
	comp, err := c.Compile(context.Background(), p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	snap, err := c.Link(context.Background(), comp)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	res, ok := snap.File("checkout.as")
	if !ok {
		t.Fatal("missing test result")
	}
	secondary := res.Secondary()
	if len(secondary) != 1 || secondary[0].Code != project.CodeUnboundStep || secondary[0].StartLine != 8 {
		t.Fatalf("expected one unbound step on line 8, got %v", secondary)
	}
	info := res.Positions().Lookup(5, 10)
	if info.Element == nil || info.Element.Binding == nil || info.Element.Binding.Text != "a basket with {count} items" {
		t.Fatalf("expected bound step, got %+v", info.Element)
	}
	if _, ok := snap.File("steps.asi"); !ok {
		t.Fatal("missing interaction result")
	}
	if len(snap.Definitions) != 3 {
		t.Fatalf("expected 3 definitions, got %d", len(snap.Definitions))
	}
}

func TestLinkUsesExtensionDefinitions(t *testing.T) {
	p := project.New()
	p.AddDefinitions(&project.StepDefinition{Keyword: "Given", Text: "the browser is open", Extension: "web"})
	addFile(p, "a.as", &memSource{content: "Feature: F\n  Scenario: S\n    Given the browser is open\n"})

	c := New()
	comp, err := c.Compile(context.Background(), p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	snap, err := c.Link(context.Background(), comp)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	res, _ := snap.File("a.as")
	if len(res.Secondary()) != 0 {
		t.Fatalf("expected step to bind, got %v", res.Secondary())
	}
}

func TestCrossFileDuplicateReported(t *testing.T) {
	p := project.New()
	addFile(p, "a.asi", &memSource{content: "Step: When I go\n"})
	addFile(p, "b.asi", &memSource{content: "Step: When I go\n"})
	c := New()
	comp, _ := c.Compile(context.Background(), p)
	snap, err := c.Link(context.Background(), comp)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	a, _ := snap.File("a.asi")
	b, _ := snap.File("b.asi")
	if len(a.Secondary()) != 0 || len(b.Secondary()) != 1 {
		t.Fatalf("expected duplicate on b.asi only, got %v / %v", a.Secondary(), b.Secondary())
	}
}

func TestCompileCachesByTimestamp(t *testing.T) {
	p := project.New()
	src := &memSource{content: "Feature: A\n", modified: time.Unix(100, 0)}
	addFile(p, "a.as", src)
	c := New()

	for i := 0; i < 2; i++ {
		if _, err := c.Compile(context.Background(), p); err != nil {
			t.Fatalf("compile: %v", err)
		}
	}
	if c.Compiled() != 1 {
		t.Fatalf("expected one parse, got %d", c.Compiled())
	}

	src.content = "Feature: B\n"
	src.modified = time.Unix(200, 0)
	comp, err := c.Compile(context.Background(), p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if c.Compiled() != 2 || comp.Results["a.as"].Feature.Name != "B" {
		t.Fatal("expected recompilation after timestamp change")
	}
}

func TestCompileSkipsMissingFiles(t *testing.T) {
	p := project.New()
	addFile(p, "gone.as", &memSource{err: fs.ErrNotExist})
	comp, err := New().Compile(context.Background(), p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := comp.Results["gone.as"]; ok {
		t.Fatal("missing file should be treated as absent")
	}
}

func TestCompileHonoursCancellation(t *testing.T) {
	p := project.New()
	addFile(p, "a.as", &memSource{content: "Feature: A\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Compile(ctx, p); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestPatternMatching(t *testing.T) {
	pat, err := compilePattern("I add {qty} of {item}.")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !pat.match("I add 2 of apples.") {
		t.Fatal("expected match")
	}
	if pat.match("I add 2 of apples") || pat.match("I add  of apples.") {
		t.Fatal("unexpected match")
	}
	for _, bad := range []string{"a }", "a {b", "a {}"} {
		if _, err := compilePattern(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	// "é" as e + combining acute accent normalizes to the precomposed rune.
	if got := normalizeText("cafe\u0301   au  lait"); got != "caf\u00e9 au lait" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestPossibleDefinitions(t *testing.T) {
	defs := []*project.StepDefinition{
		{Keyword: "Given", Text: "I log in as {user}"},
		{Keyword: "Given", Text: "I log in"},
		{Keyword: "When", Text: "I log out"},
	}
	got := PossibleDefinitions(defs, "Given", "I log in")
	if len(got) != 2 || got[0].Text != "I log in" {
		t.Fatalf("expected exact match first, got %+v", got)
	}
	if all := PossibleDefinitions(defs, "", "I log"); len(all) != 3 {
		t.Fatalf("expected 3 definitions without keyword filter, got %d", len(all))
	}
}

type recordingSink struct {
	events []progress.Event
}

func (r *recordingSink) OnEvent(ev progress.Event) { r.events = append(r.events, ev) }

func (r *recordingSink) last(file string, stage progress.Stage) progress.Status {
	var status progress.Status
	for _, ev := range r.events {
		if ev.File == file && ev.Stage == stage {
			status = ev.Status
		}
	}
	return status
}

func TestCompileReportsProgress(t *testing.T) {
	p := project.New()
	addFile(p, "checkout.as", &memSource{content: checkoutFeature + "    Then the order ships\n"})
	addFile(p, "steps.asi", &memSource{content: checkoutSteps})
	addFile(p, "gone.as", &memSource{err: fs.ErrNotExist})

	sink := &recordingSink{}
	c := New(WithProgress(sink))
	comp, err := c.Compile(context.Background(), p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := c.Link(context.Background(), comp); err != nil {
		t.Fatalf("link: %v", err)
	}

	if got := sink.events[0]; got.Stage != progress.StageCompile || got.Status != progress.StatusQueued {
		t.Fatalf("expected files to be queued first, got %+v", got)
	}
	for _, file := range []string{"checkout.as", "steps.asi", "gone.as"} {
		if got := sink.last(file, progress.StageCompile); got != progress.StatusDone {
			t.Fatalf("%s: expected compile done, got %q", file, got)
		}
	}
	if got := sink.last("checkout.as", progress.StageLink); got != progress.StatusError {
		t.Fatalf("expected unbound step to fail the link, got %q", got)
	}
	if got := sink.last("steps.asi", progress.StageLink); got != progress.StatusDone {
		t.Fatalf("expected steps.asi to link, got %q", got)
	}
	if got := sink.last("gone.as", progress.StageLink); got != "" {
		t.Fatalf("missing file should not be linked, got %q", got)
	}
	end := sink.events[len(sink.events)-1]
	if end.File != "" || end.Stage != progress.StageLink || end.Status != progress.StatusDone {
		t.Fatalf("expected the build to end with link done, got %+v", end)
	}
}

func TestCompileReportsParseErrors(t *testing.T) {
	p := project.New()
	addFile(p, "bad.as", &memSource{content: "Given too early\n"})
	sink := &recordingSink{}
	if _, err := New(WithProgress(sink)).Compile(context.Background(), p); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if got := sink.last("bad.as", progress.StageCompile); got != progress.StatusError {
		t.Fatalf("expected compile error status, got %q", got)
	}
}
