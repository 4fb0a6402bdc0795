// Package ui renders terminal progress for long running commands.
package ui

import (
	"fmt"
	"strings"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"stepls/internal/progress"
)

type progressModel struct {
	title       string
	events      <-chan progress.Event
	spinner     spinner.Model
	prog        bprogress.Model
	items       []fileItem
	index       map[string]int
	stageLabel  string
	percent     float64
	width       int
	done        bool
	interrupted bool
}

type fileItem struct {
	path   string
	status string
	weight float64
}

type eventMsg progress.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders compile and link
// progress read from events. Files appear as their first event arrives. The
// model quits once events is closed.
func NewProgressModel(title string, events <-chan progress.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := bprogress.New(bprogress.WithDefaultGradient())
	prog.Width = 76

	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		index:   make(map[string]int),
		width:   80,
	}
}

// Interrupted reports whether the user quit the model before the build
// finished.
func Interrupted(m tea.Model) bool {
	pm, ok := m.(*progressModel)
	return ok && pm.interrupted
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(progress.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.interrupted = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case bprogress.FrameMsg:
		model, cmd := m.prog.Update(msg)
		m.prog = model.(bprogress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.stageLabel != "" {
		header = fmt.Sprintf("%s (%s)", header, m.stageLabel)
	}
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}
	for _, item := range m.items {
		status := styleStatus(item.status).Render(fmt.Sprintf("%12s", item.status))
		fmt.Fprintf(&b, "  %s %s\n", status, truncate(item.path, nameWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev progress.Event) tea.Cmd {
	label := statusLabel(ev.Stage, ev.Status)
	if ev.File == "" {
		if ev.Status == progress.StatusWorking {
			m.stageLabel = label
		} else {
			m.stageLabel = ""
		}
		return nil
	}
	idx, ok := m.index[ev.File]
	if !ok {
		idx = len(m.items)
		m.index[ev.File] = idx
		m.items = append(m.items, fileItem{path: ev.File})
	}
	item := &m.items[idx]
	if label != "" {
		item.status = label
	}
	item.weight = weightOf(ev.Stage, ev.Status)

	total := 0.0
	for _, it := range m.items {
		total += it.weight
	}
	m.percent = total / float64(len(m.items))
	return m.prog.SetPercent(m.percent)
}

// weightOf is the share of a file's work finished once it reaches stage and
// status.
func weightOf(stage progress.Stage, status progress.Status) float64 {
	switch {
	case stage == progress.StageLink && (status == progress.StatusDone || status == progress.StatusError):
		return 1.0
	case stage == progress.StageCompile && (status == progress.StatusDone || status == progress.StatusError):
		return 0.5
	case stage == progress.StageCompile && status == progress.StatusWorking:
		return 0.25
	default:
		return 0.0
	}
}

func statusLabel(stage progress.Stage, status progress.Status) string {
	switch status {
	case progress.StatusQueued:
		return "queued"
	case progress.StatusError:
		return "error"
	case progress.StatusDone:
		if stage == progress.StageCompile {
			return "compiled"
		}
		return "done"
	case progress.StatusWorking:
		switch stage {
		case progress.StageCompile:
			return "compiling"
		case progress.StageLink:
			return "linking"
		}
	}
	return ""
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "compiling", "compiled", "linking":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
