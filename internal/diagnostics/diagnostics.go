// Package diagnostics translates compiler messages into editor diagnostics.
package diagnostics

import (
	"fmt"

	"stepls/internal/project"
)

// Source is reported as the origin of every diagnostic.
const Source = "autostep-compiler"

// Severity follows the editor protocol numbering.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
)

// Position is a 0-based line and character.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is one published diagnostic.
type Diagnostic struct {
	Range    Range    `json:"range"`
	Severity Severity `json:"severity,omitempty"`
	Code     string   `json:"code,omitempty"`
	Source   string   `json:"source,omitempty"`
	Message  string   `json:"message"`
}

// Publisher pushes the diagnostics of one file to the editor.
type Publisher interface {
	PublishDiagnostics(uri string, diags []Diagnostic) error
}

// FromMessage converts a 1-based inclusive compiler message into a 0-based
// diagnostic whose end is exclusive.
func FromMessage(m project.Message) Diagnostic {
	severity := SeverityInformation
	switch m.Level {
	case project.LevelError:
		severity = SeverityError
	case project.LevelWarning:
		severity = SeverityWarning
	}

	endLine := m.StartLine
	if m.EndLine > 0 {
		endLine = m.EndLine
	}
	// EndColumn+1 makes the end exclusive; minus one converts to 0-based.
	endChar := m.StartColumn - 1
	if m.EndColumn > 0 {
		endChar = m.EndColumn
	}

	return Diagnostic{
		Range: Range{
			Start: Position{Line: clamp(m.StartLine - 1), Character: clamp(m.StartColumn - 1)},
			End:   Position{Line: clamp(endLine - 1), Character: clamp(endChar)},
		},
		Severity: severity,
		Code:     fmt.Sprintf("ASC%05d", m.Code),
		Source:   Source,
		Message:  m.Text,
	}
}

// ForResult returns the diagnostics of a file: compile messages first, then
// link or binding messages, each in original order.
func ForResult(res project.FileResult) []Diagnostic {
	if res == nil {
		return []Diagnostic{}
	}
	primary, secondary := res.Primary(), res.Secondary()
	out := make([]Diagnostic, 0, len(primary)+len(secondary))
	for _, m := range primary {
		out = append(out, FromMessage(m))
	}
	for _, m := range secondary {
		out = append(out, FromMessage(m))
	}
	return out
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
