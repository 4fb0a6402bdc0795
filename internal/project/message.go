package project

import "fmt"

// Level is the severity of a compiler message.
type Level uint8

const (
	// LevelInfo is for informational messages.
	LevelInfo Level = iota
	// LevelWarning is for warnings.
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Message codes produced by the compiler and linker.
const (
	CodeReadFailed          = 1
	CodeUnexpectedText      = 10
	CodeStepOutsideScenario = 11
	CodeMissingFeature      = 12
	CodeDuplicateFeature    = 13
	CodeEmptyStep           = 14
	CodeAndWithoutStep      = 15
	CodeBadDefinition       = 20
	CodeDuplicateStep       = 21
	CodeUnboundStep         = 30
	CodeAmbiguousStep       = 31
)

// Message is a diagnostic produced while compiling or linking one file.
// Lines and columns are 1-based; EndLine and EndColumn are 0 when absent.
type Message struct {
	SourceFile  string
	Level       Level
	Code        int
	Text        string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

func (m Message) String() string {
	return fmt.Sprintf("%s:%d:%d: %s ASC%05d: %s", m.SourceFile, m.StartLine, m.StartColumn, m.Level, m.Code, m.Text)
}

// HasErrors reports whether msgs contains an error-level message.
func HasErrors(msgs []Message) bool {
	for _, m := range msgs {
		if m.Level == LevelError {
			return true
		}
	}
	return false
}
