package stepc

import (
	"fmt"
	"strings"

	"stepls/internal/project"
)

// compileTest parses a test file.
func compileTest(file, content string) *project.CompileResult {
	lines := splitLines(content)
	idx := project.NewPositionIndex(lines)
	res := &project.CompileResult{Positions: idx}

	var (
		feature     *project.Feature
		scenario    *project.Scenario
		lastKeyword string
		description []string
	)
	errorf := func(code, line, start, end int, format string, args ...any) {
		res.Messages = append(res.Messages, newMessage(file, project.LevelError, code, fmt.Sprintf(format, args...), line, start, end))
	}

	for i, raw := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(raw)
		start, end := columns(raw)
		switch {
		case scenario != nil:
			idx.SetScope(lineNo, project.ScopeScenario)
		case feature != nil:
			idx.SetScope(lineNo, project.ScopeFeature)
		}

		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			continue

		case hasLabel(trimmed, "Feature"):
			name := labelValue(trimmed, "Feature")
			if feature != nil {
				errorf(project.CodeDuplicateFeature, lineNo, start, end, "only one feature is allowed per file (already declared on line %d)", feature.Line)
				continue
			}
			feature = &project.Feature{Name: name, Line: lineNo}
			idx.Add(&project.Element{Kind: project.ElementFeature, Line: lineNo, StartColumn: start, EndColumn: end, Keyword: "Feature", Text: name})
			idx.SetScope(lineNo, project.ScopeFeature)

		case hasLabel(trimmed, "Scenario"):
			name := labelValue(trimmed, "Scenario")
			if feature == nil {
				errorf(project.CodeMissingFeature, lineNo, start, end, "scenario %q must be declared inside a feature", name)
			}
			scenario = &project.Scenario{Name: name, Line: lineNo}
			if feature != nil {
				feature.Scenarios = append(feature.Scenarios, scenario)
			}
			lastKeyword = ""
			idx.Add(&project.Element{Kind: project.ElementScenario, Line: lineNo, StartColumn: start, EndColumn: end, Keyword: "Scenario", Text: name})
			idx.SetScope(lineNo, project.ScopeScenario)

		default:
			keyword, text, ok := parseStep(trimmed)
			switch {
			case ok && scenario == nil:
				errorf(project.CodeStepOutsideScenario, lineNo, start, end, "step must be inside a scenario")
			case ok:
				if keyword == "And" {
					if lastKeyword == "" {
						errorf(project.CodeAndWithoutStep, lineNo, start, end, "'And' must follow another step")
						continue
					}
					keyword = lastKeyword
				}
				if text == "" {
					errorf(project.CodeEmptyStep, lineNo, start, end, "step has no text")
					continue
				}
				lastKeyword = keyword
				step := &project.Element{
					Kind:        project.ElementStep,
					Line:        lineNo,
					StartColumn: start,
					EndColumn:   end,
					Keyword:     keyword,
					Text:        normalizeText(text),
				}
				idx.Add(step)
				scenario.Steps = append(scenario.Steps, step)
				res.Steps = append(res.Steps, step)
			case feature != nil && scenario == nil:
				description = append(description, trimmed)
			default:
				errorf(project.CodeUnexpectedText, lineNo, start, end, "unexpected text %q", trimmed)
			}
		}
	}

	if feature != nil {
		feature.Description = strings.Join(description, "\n")
	}
	res.Feature = feature
	return res
}
