package lsp

import "unicode/utf8"

// applyChanges applies content changes in order. A change without a range
// replaces the whole document.
func applyChanges(text string, changes []textDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := offsetForPosition(text, change.Range.Start)
		end := offsetForPosition(text, change.Range.End)
		if end < start {
			end = start
		}
		text = text[:start] + change.Text + text[end:]
	}
	return text
}

// offsetForPosition returns the byte offset of pos in text, clamped to the
// end of its line and to the end of text.
func offsetForPosition(text string, pos position) int {
	line := uint32(0)
	i := 0
	for i < len(text) && line < pos.Line {
		if text[i] == '\n' {
			line++
		}
		i++
	}
	if line < pos.Line {
		return len(text)
	}
	units := uint32(0)
	for i < len(text) && units < pos.Character {
		if text[i] == '\n' {
			break
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		need := uint32(1)
		if r > 0xFFFF {
			need = 2
		}
		if units+need > pos.Character {
			break
		}
		units += need
		i += size
	}
	return i
}

// lineAt returns the text of the 0-based line.
func lineAt(text string, line uint32) string {
	start := offsetForPosition(text, position{Line: line})
	end := start
	for end < len(text) && text[end] != '\n' {
		end++
	}
	if end > start && text[end-1] == '\r' {
		end--
	}
	return text[start:end]
}
