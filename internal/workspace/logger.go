package workspace

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Logger receives the host's log lines.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

type logLevel uint8

const (
	levelDebug logLevel = iota
	levelInfo
	levelError
)

// writerLogger writes prefixed lines to w, dropping lines below min.
type writerLogger struct {
	mu  sync.Mutex
	w   io.Writer
	min logLevel
}

// NewLogger returns a logger writing "stepls: " prefixed lines to w. level is
// one of debug, info or error; anything else means info.
func NewLogger(w io.Writer, level string) Logger {
	min := levelInfo
	switch strings.ToLower(level) {
	case "debug":
		min = levelDebug
	case "error":
		min = levelError
	}
	return &writerLogger{w: w, min: min}
}

func (l *writerLogger) Debugf(format string, args ...any) {
	l.logf(levelDebug, "debug: ", format, args...)
}

func (l *writerLogger) Infof(format string, args ...any) {
	l.logf(levelInfo, "", format, args...)
}

func (l *writerLogger) Errorf(format string, args ...any) {
	l.logf(levelError, "error: ", format, args...)
}

func (l *writerLogger) logf(level logLevel, tag, format string, args ...any) {
	if level < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "stepls: "+tag+format+"\n", args...)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

func (nopLogger) Infof(string, ...any) {}

func (nopLogger) Errorf(string, ...any) {}
