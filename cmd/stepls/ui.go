package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"stepls/internal/progress"
	"stepls/internal/project"
	"stepls/internal/ui"
	"stepls/internal/workspace"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

// shouldUseTUI decides whether progress is drawn. The display goes to stderr
// so diagnostics on stdout stay clean.
func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stderr)
	}
}

type buildOutcome struct {
	snap *project.Snapshot
	err  error
}

// buildWithUI runs buildOnce while a progress model renders the compiler
// events. Quitting the display stops the build.
func buildWithUI(parent context.Context, cmd *cobra.Command, host *workspace.Host, root string, events chan progress.Event) (*project.Snapshot, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	outcomeCh := make(chan buildOutcome, 1)
	go func() {
		snap, err := buildOnce(ctx, cmd, host, root)
		outcomeCh <- buildOutcome{snap: snap, err: err}
		close(events)
	}()

	model := ui.NewProgressModel("checking "+root, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	final, uiErr := program.Run()
	if uiErr != nil || ui.Interrupted(final) {
		cancel()
	}
	// The compiler blocks on a full channel once nothing renders it.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.snap, uiErr
	}
	if ui.Interrupted(final) {
		return nil, fmt.Errorf("check of %s interrupted", root)
	}
	return outcome.snap, outcome.err
}
