package lsp

import (
	"unicode/utf8"

	"fortio.org/safecast"

	"stepls/internal/diagnostics"
	"stepls/internal/project"
)

const maxUint32 = ^uint32(0)

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return maxUint32
	}
	return v
}

func toInt(n uint32) int {
	v, err := safecast.Conv[int](n)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return v
}

// runeColumn converts a UTF-16 offset within line to a 0-based rune offset.
func runeColumn(line string, utf16 uint32) int {
	units := uint32(0)
	col := 0
	for _, r := range line {
		if units >= utf16 {
			break
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		col++
	}
	if units < utf16 {
		col += toInt(utf16 - units)
	}
	return col
}

// utf16Column converts a 0-based rune offset within line to UTF-16 units.
func utf16Column(line string, runes int) uint32 {
	units := 0
	i := 0
	for i < len(line) && runes > 0 {
		r, size := utf8.DecodeRuneInString(line[i:])
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
		i += size
		runes--
	}
	return safeUint32(units + runes)
}

// elementRange converts a 1-based inclusive element span on lineText to an
// LSP range.
func elementRange(el *project.Element, lineText string) lspRange {
	line := safeUint32(el.Line - 1)
	return lspRange{
		Start: position{Line: line, Character: utf16Column(lineText, el.StartColumn-1)},
		End:   position{Line: line, Character: utf16Column(lineText, el.EndColumn)},
	}
}

func toLSPDiagnostics(list []diagnostics.Diagnostic) []lspDiagnostic {
	out := make([]lspDiagnostic, 0, len(list))
	for _, d := range list {
		out = append(out, lspDiagnostic{
			Range: lspRange{
				Start: position{Line: safeUint32(d.Range.Start.Line), Character: safeUint32(d.Range.Start.Character)},
				End:   position{Line: safeUint32(d.Range.End.Line), Character: safeUint32(d.Range.End.Character)},
			},
			Severity: int(d.Severity),
			Code:     d.Code,
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	return out
}
