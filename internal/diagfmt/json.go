package diagfmt

import (
	"encoding/json"
	"io"

	"stepls/internal/diagnostics"
)

// FileJSON is the JSON form of one file's diagnostics.
type FileJSON struct {
	File        string                   `json:"file"`
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics"`
}

// Output is the root of the JSON report.
type Output struct {
	Files    []FileJSON `json:"files"`
	Errors   int        `json:"errors"`
	Warnings int        `json:"warnings"`
}

// JSON writes an indented report of files. Files without diagnostics are
// left out.
func JSON(w io.Writer, files []File) error {
	out := Output{Files: []FileJSON{}}
	out.Errors, out.Warnings = Counts(files)
	for _, f := range files {
		if len(f.Diagnostics) == 0 {
			continue
		}
		out.Files = append(out.Files, FileJSON{File: f.Path, Diagnostics: f.Diagnostics})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
