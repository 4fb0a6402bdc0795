package stepc

import (
	"fmt"
	"strings"

	"stepls/internal/project"
)

// compileInteraction parses an interaction file.
func compileInteraction(file, content string) *project.CompileResult {
	lines := splitLines(content)
	idx := project.NewPositionIndex(lines)
	res := &project.CompileResult{Positions: idx}

	var (
		current     *project.StepDefinition
		description []string
	)
	seen := make(map[string]int)
	flush := func() {
		if current != nil {
			current.Description = strings.Join(description, "\n")
		}
		current = nil
		description = nil
	}
	report := func(level project.Level, code, line, start, end int, format string, args ...any) {
		res.Messages = append(res.Messages, newMessage(file, level, code, fmt.Sprintf(format, args...), line, start, end))
	}

	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)
		start, end := columns(raw)

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			if current != nil {
				idx.SetScope(lineNo, project.ScopeDefinition)
			}

		case hasLabel(trimmed, "Step"):
			flush()
			keyword, text, ok := parseStep(labelValue(trimmed, "Step"))
			if !ok || keyword == "And" {
				report(project.LevelError, project.CodeBadDefinition, lineNo, start, end, "step definition must start with Given, When or Then")
				continue
			}
			if text == "" {
				report(project.LevelError, project.CodeBadDefinition, lineNo, start, end, "step definition has no text")
				continue
			}
			text = normalizeText(text)
			pat, err := compilePattern(text)
			if err != nil {
				report(project.LevelError, project.CodeBadDefinition, lineNo, start, end, "%v", err)
				continue
			}
			key := definitionKey(keyword, text)
			if prev, dup := seen[key]; dup {
				report(project.LevelWarning, project.CodeDuplicateStep, lineNo, start, end, "step %q is already defined on line %d", keyword+" "+text, prev)
			} else {
				seen[key] = lineNo
			}
			current = &project.StepDefinition{
				Keyword:    keyword,
				Text:       text,
				Arguments:  pat.args,
				SourceFile: file,
				Line:       lineNo,
				Column:     start,
			}
			res.Definitions = append(res.Definitions, current)
			idx.Add(&project.Element{Kind: project.ElementDefinition, Line: lineNo, StartColumn: start, EndColumn: end, Keyword: keyword, Text: text, Definition: current})
			idx.SetScope(lineNo, project.ScopeDefinition)

		case current != nil && (strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t")):
			description = append(description, trimmed)
			idx.SetScope(lineNo, project.ScopeDefinition)

		default:
			flush()
			report(project.LevelError, project.CodeUnexpectedText, lineNo, start, end, "unexpected text %q", trimmed)
		}
	}
	flush()
	return res
}

func definitionKey(keyword, text string) string {
	return keyword + "\x00" + text
}
