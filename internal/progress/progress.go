// Package progress carries per-file build progress from the compiler to a
// display.
package progress

// Stage is a phase of a build.
type Stage string

const (
	// StageCompile parses one file.
	StageCompile Stage = "compile"
	// StageLink binds step references across the project.
	StageLink Stage = "link"
)

// Status is the state of a file, or of the whole build, within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for a file, or for the whole build when File is
// empty.
type Event struct {
	File   string
	Stage  Stage
	Status Status
}

// Sink consumes progress events. OnEvent is called from the build
// goroutine and must not retain it for long.
type Sink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel. Sends block while the channel
// is full, so the reader must keep draining it until the build ends.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(ev Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- ev
}
