// Package observ measures the phases of a rebuild.
package observ

import (
	"fmt"
	"strings"
	"time"
)

// Phase is one measured step of a rebuild.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer collects phases in the order they were started. It is not safe for
// concurrent use; each rebuild owns its own timer.
type Timer struct {
	phases []Phase
}

// NewTimer creates an empty timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 4)} }

// Begin starts a phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes the phase at idx.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Summary renders all phases on one line, e.g.
// "compile 1.20ms (3 files), link 0.40ms, total 1.60ms".
func (t *Timer) Summary() string {
	report := t.Report()
	parts := make([]string, 0, len(report.Phases)+1)
	for _, p := range report.Phases {
		part := fmt.Sprintf("%s %.2fms", p.Name, p.DurationMS)
		if p.Note != "" {
			part += " (" + p.Note + ")"
		}
		parts = append(parts, part)
	}
	parts = append(parts, fmt.Sprintf("total %.2fms", report.TotalMS))
	return strings.Join(parts, ", ")
}

// PhaseReport is the serialisable form of a phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// Report aggregates the phases of a timer.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Phases  []PhaseReport `json:"phases"`
}

// Report returns the phases and their total duration in milliseconds.
func (t *Timer) Report() Report {
	report := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	return report
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
