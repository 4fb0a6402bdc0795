package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"stepls/internal/diagnostics"
)

func sampleFiles() []File {
	return []File{
		{
			Path:  "checkout.as",
			Lines: []string{"Feature: Checkout", "  Scenario: Pay", "    Then nothing matches"},
			Diagnostics: []diagnostics.Diagnostic{{
				Range: diagnostics.Range{
					Start: diagnostics.Position{Line: 2, Character: 4},
					End:   diagnostics.Position{Line: 2, Character: 24},
				},
				Severity: diagnostics.SeverityError,
				Code:     "ASC00030",
				Source:   diagnostics.Source,
				Message:  "no step definition matches",
			}},
		},
		{
			Path: "steps.asi",
			Diagnostics: []diagnostics.Diagnostic{{
				Severity: diagnostics.SeverityWarning,
				Code:     "ASC00021",
				Message:  "duplicate",
			}},
		},
		{Path: "clean.as"},
	}
}

func TestPrettyWithContext(t *testing.T) {
	var buf bytes.Buffer
	Pretty(&buf, sampleFiles(), PrettyOpts{Context: true})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{
		"checkout.as:3:5: error ASC00030: no step definition matches",
		"        Then nothing matches",
		"        ^~~~~~~~~~~~~~~~~~~~",
		"steps.asi:1:1: warning ASC00021: duplicate",
	}
	if len(lines) != len(want) {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestPrettyMax(t *testing.T) {
	var buf bytes.Buffer
	Pretty(&buf, sampleFiles(), PrettyOpts{Max: 1})
	if !strings.Contains(buf.String(), "and more") || strings.Contains(buf.String(), "steps.asi") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestUnderlineWideCharacters(t *testing.T) {
	rng := diagnostics.Range{
		Start: diagnostics.Position{Character: 1},
		End:   diagnostics.Position{Character: 2},
	}
	if got := underline("a世b", rng); got != " ^~" {
		t.Fatalf("unexpected underline %q", got)
	}
}

func TestJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleFiles()); err != nil {
		t.Fatalf("json: %v", err)
	}
	var out Output
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Errors != 1 || out.Warnings != 1 || len(out.Files) != 2 {
		t.Fatalf("unexpected report %+v", out)
	}
}
