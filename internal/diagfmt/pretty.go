package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"stepls/internal/diagnostics"
)

type palette struct {
	err, warn, info, path, caret *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:   color.New(color.FgRed, color.Bold),
		warn:  color.New(color.FgYellow, color.Bold),
		info:  color.New(color.FgCyan),
		path:  color.New(color.Bold),
		caret: color.New(color.FgGreen, color.Bold),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.path, p.caret} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s diagnostics.Severity) string {
	switch s {
	case diagnostics.SeverityError:
		return p.err.Sprint("error")
	case diagnostics.SeverityWarning:
		return p.warn.Sprint("warning")
	default:
		return p.info.Sprint("info")
	}
}

// Pretty writes one block per diagnostic:
//
//	<path>:<line>:<col>: <severity> <code>: <message>
//	   <source line>
//	   ^~~~
//
// Lines and columns are printed 1-based.
func Pretty(w io.Writer, files []File, opts PrettyOpts) {
	p := newPalette(opts.Color)
	printed := 0
	for _, f := range files {
		for _, d := range f.Diagnostics {
			if opts.Max > 0 && printed == opts.Max {
				fmt.Fprintf(w, "... and more diagnostics not shown\n")
				return
			}
			printed++
			start := d.Range.Start
			fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n",
				p.path.Sprint(f.Path), start.Line+1, start.Character+1,
				p.severity(d.Severity), d.Code, d.Message)
			if opts.Context && start.Line < len(f.Lines) {
				line := f.Lines[start.Line]
				fmt.Fprintf(w, "    %s\n", line)
				fmt.Fprintf(w, "    %s\n", p.caret.Sprint(underline(line, d.Range)))
			}
		}
	}
}

// underline returns the caret line for rng on line, measured in display
// cells so wide characters stay aligned.
func underline(line string, rng diagnostics.Range) string {
	runes := []rune(line)
	start := min(rng.Start.Character, len(runes))
	end := len(runes)
	if rng.End.Line == rng.Start.Line {
		end = min(max(rng.End.Character, start), len(runes))
	}
	indent := runewidth.StringWidth(string(runes[:start]))
	width := runewidth.StringWidth(string(runes[start:end]))
	if width < 1 {
		width = 1
	}
	return strings.Repeat(" ", indent) + "^" + strings.Repeat("~", width-1)
}
