// Package fileuri converts between file URIs and local paths.
package fileuri

import (
	"net/url"
	"path/filepath"
)

// ToPath converts a file URI to an absolute local path. Non-file URIs yield "".
func ToPath(uri string) string {
	if uri == "" {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" && parsed.Scheme != "file" {
		return ""
	}
	path := parsed.Path
	if parsed.Scheme == "" {
		path = uri
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	path = filepath.FromSlash(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

// FromPath converts a local path to a file URI.
func FromPath(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// Canonical round-trips uri through a path so equal files compare equal.
func Canonical(uri string) string {
	path := ToPath(uri)
	if path == "" {
		return ""
	}
	return FromPath(path)
}
