package project

import (
	"path"
	"strings"
)

// FileKind distinguishes test files from interaction files.
type FileKind uint8

const (
	// KindTest is a `.as` file holding features and scenarios.
	KindTest FileKind = iota + 1
	// KindInteraction is a `.asi` file holding step definitions.
	KindInteraction
)

func (k FileKind) String() string {
	switch k {
	case KindTest:
		return "test"
	case KindInteraction:
		return "interaction"
	}
	return "unknown"
}

// KindOf detects the file kind from the extension of rel.
func KindOf(rel string) (FileKind, bool) {
	switch strings.ToLower(path.Ext(rel)) {
	case ".as":
		return KindTest, true
	case ".asi":
		return KindInteraction, true
	}
	return 0, false
}
