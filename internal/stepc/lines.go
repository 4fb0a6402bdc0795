package stepc

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"stepls/internal/project"
)

var stepKeywords = []string{"Given", "When", "Then", "And"}

func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// columns returns the 1-based first and last non-blank character columns.
func columns(line string) (int, int) {
	body := strings.TrimLeft(line, " \t")
	start := utf8.RuneCountInString(line) - utf8.RuneCountInString(body) + 1
	end := start + utf8.RuneCountInString(strings.TrimRight(body, " \t")) - 1
	if end < start {
		end = start
	}
	return start, end
}

func hasLabel(trimmed, label string) bool {
	return strings.HasPrefix(trimmed, label+":")
}

func labelValue(trimmed, label string) string {
	return strings.TrimSpace(trimmed[len(label)+1:])
}

// parseStep splits a step line into its keyword and text.
func parseStep(trimmed string) (keyword, text string, ok bool) {
	for _, kw := range stepKeywords {
		if trimmed == kw {
			return kw, "", true
		}
		if strings.HasPrefix(trimmed, kw+" ") || strings.HasPrefix(trimmed, kw+"\t") {
			return kw, strings.TrimSpace(trimmed[len(kw):]), true
		}
	}
	return "", "", false
}

// normalizeText puts step text in NFC form with single spaces between words.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

func newMessage(file string, level project.Level, code int, text string, line, start, end int) project.Message {
	return project.Message{
		SourceFile:  file,
		Level:       level,
		Code:        code,
		Text:        text,
		StartLine:   line,
		StartColumn: start,
		EndLine:     line,
		EndColumn:   end,
	}
}
