// Package diagfmt renders workspace diagnostics for the command line.
package diagfmt

import "stepls/internal/diagnostics"

// File is the diagnostics of one source file together with its text.
type File struct {
	// Path is the display path, usually relative to the workspace root.
	Path        string
	Lines       []string
	Diagnostics []diagnostics.Diagnostic
}

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color bool
	// Context prints the source line and a caret underline.
	Context bool
	// Max stops after that many diagnostics; 0 means all.
	Max int
}

// Counts returns the number of errors and warnings in files.
func Counts(files []File) (errors, warnings int) {
	for _, f := range files {
		for _, d := range f.Diagnostics {
			switch d.Severity {
			case diagnostics.SeverityError:
				errors++
			case diagnostics.SeverityWarning:
				warnings++
			}
		}
	}
	return errors, warnings
}
