package project

import "testing"

func TestKindOf(t *testing.T) {
	cases := []struct {
		path string
		kind FileKind
		ok   bool
	}{
		{"a.as", KindTest, true},
		{"dir/b.ASI", KindInteraction, true},
		{"c.txt", 0, false},
		{"autostep.config.json", 0, false},
	}
	for _, tc := range cases {
		kind, ok := KindOf(tc.path)
		if kind != tc.kind || ok != tc.ok {
			t.Fatalf("KindOf(%q) = %v, %v; want %v, %v", tc.path, kind, ok, tc.kind, tc.ok)
		}
	}
}

func TestMergeKeepsExtensionFiles(t *testing.T) {
	p := New()
	p.AddFile(&File{Path: "ext/content/x.asi", Kind: KindInteraction, Extension: "ext"})
	p.AddFile(&File{Path: "old.asi", Kind: KindInteraction})
	p.AddFile(&File{Path: "t.as", Kind: KindTest})

	changed := p.Merge(KindInteraction, []*File{{Path: "new.asi", Kind: KindInteraction}})
	if !changed {
		t.Fatal("expected merge to report a change")
	}
	if _, ok := p.File("old.asi"); ok {
		t.Fatal("stale interaction file should be removed")
	}
	for _, rel := range []string{"new.asi", "ext/content/x.asi", "t.as"} {
		if _, ok := p.File(rel); !ok {
			t.Fatalf("expected %s to remain", rel)
		}
	}
	if p.Merge(KindInteraction, []*File{{Path: "new.asi", Kind: KindInteraction}}) {
		t.Fatal("identical merge should not report a change")
	}
}

func TestPositionLookup(t *testing.T) {
	idx := NewPositionIndex([]string{"Feature: X", "  Given a step"})
	step := &Element{Kind: ElementStep, Line: 2, StartColumn: 3, EndColumn: 14, Keyword: "Given", Text: "a step"}
	idx.Add(step)
	idx.SetScope(2, ScopeScenario)

	info := idx.Lookup(2, 5)
	if info == nil || info.Element != step {
		t.Fatalf("expected step element, got %+v", info)
	}
	if info.Scope != ScopeScenario {
		t.Fatalf("expected scenario scope, got %v", info.Scope)
	}
	if info := idx.Lookup(2, 15); info.Element != step {
		t.Fatal("cursor right after the element should still resolve")
	}
	if info := idx.Lookup(2, 1); info.Element != nil {
		t.Fatal("leading whitespace should not resolve to an element")
	}
	if idx.Lookup(3, 1) != nil {
		t.Fatal("line past the end should yield nil")
	}
}

func TestSnapshotFeatures(t *testing.T) {
	snap := NewSnapshot(map[string]FileResult{
		"b.as":  &TestResult{Compile: &CompileResult{Feature: &Feature{Name: "B"}}},
		"a.as":  &TestResult{Compile: &CompileResult{Feature: &Feature{Name: "A", Description: "first"}}},
		"c.as":  &TestResult{Compile: &CompileResult{}},
		"d.asi": &InteractionResult{Compile: &CompileResult{}},
	}, nil)
	features := snap.Features()
	if len(features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(features))
	}
	if features[0].SourceFile != "a.as" || features[0].Description != "first" || features[1].Name != "B" {
		t.Fatalf("unexpected features: %+v", features)
	}
	if snap.ID.String() == "" {
		t.Fatal("expected snapshot id")
	}
}

func TestFileResultVariants(t *testing.T) {
	var r FileResult = &InteractionResult{
		Compile: &CompileResult{Messages: []Message{{Code: 1}}},
		Binding: &LinkResult{Messages: []Message{{Code: 2}}},
	}
	if r.Kind() != KindInteraction {
		t.Fatal("expected interaction kind")
	}
	if len(r.Primary()) != 1 || len(r.Secondary()) != 1 {
		t.Fatal("expected primary and secondary messages")
	}
	var empty *TestResult
	if empty.Primary() != nil || empty.Positions() != nil {
		t.Fatal("nil result should be empty")
	}
}

func TestWithBindingsLeavesOriginal(t *testing.T) {
	idx := NewPositionIndex([]string{"Given x"})
	step := &Element{Kind: ElementStep, Line: 1, StartColumn: 1, EndColumn: 7, Keyword: "Given", Text: "x"}
	idx.Add(step)
	def := &StepDefinition{Keyword: "Given", Text: "x"}

	bound := idx.WithBindings(map[*Element]*StepDefinition{step: def})
	if got := bound.Lookup(1, 2).Element; got.Binding != def {
		t.Fatal("expected bound copy")
	}
	if step.Binding != nil || idx.Lookup(1, 2).Element.Binding != nil {
		t.Fatal("original index must stay unbound")
	}
}
