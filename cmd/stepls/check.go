package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"stepls/internal/diagfmt"
	"stepls/internal/diagnostics"
	"stepls/internal/extension"
	"stepls/internal/progress"
	"stepls/internal/project"
	"stepls/internal/stepc"
	"stepls/internal/workspace"
)

var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Build a workspace once and print its diagnostics",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "output format (pretty|json)")
	checkCmd.Flags().Int("max-diagnostics", 100, "maximum number of diagnostics to show (0 shows all)")
	checkCmd.Flags().Bool("no-context", false, "do not print source lines under diagnostics")
	checkCmd.Flags().Duration("timeout", time.Minute, "give up when the build takes longer")
	checkCmd.Flags().String("ui", "auto", "progress display (auto|on|off)")
}

// checkNotifier collects what the host would send to an editor.
type checkNotifier struct {
	mu     sync.Mutex
	errors []string
}

func (n *checkNotifier) PublishDiagnostics(string, []diagnostics.Diagnostic) error {
	return nil
}

func (n *checkNotifier) BuildComplete() error {
	return nil
}

func (n *checkNotifier) ShowError(msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}
	uiValue, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	settings, err := loadSettings(cmd, root)
	if err != nil {
		return err
	}
	tracer, cleanup, err := setupTracing(settings)
	if err != nil {
		return err
	}
	defer cleanup()
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	var (
		events chan progress.Event
		opts   []stepc.Option
	)
	if shouldUseTUI(mode) {
		events = make(chan progress.Event, 256)
		opts = append(opts, stepc.WithProgress(progress.ChannelSink{Ch: events}))
	}

	notifier := &checkNotifier{}
	host := workspace.NewHost(workspace.NewCoordinator(), workspace.Options{
		Compiler:   stepc.New(opts...),
		Extensions: extension.NewLoader(),
		Notifier:   notifier,
		Logger:     workspace.NewLogger(os.Stderr, settings.Log.Level),
		Tracer:     tracer,
		MaxDelay:   settings.Build.MaxDelay,
	})
	var snap *project.Snapshot
	if events != nil {
		snap, err = buildWithUI(cmd.Context(), cmd, host, root, events)
	} else {
		snap, err = buildOnce(cmd.Context(), cmd, host, root)
	}
	if err != nil {
		return err
	}
	if len(notifier.errors) > 0 {
		return errors.New(strings.Join(notifier.errors, "\n"))
	}
	if snap == nil {
		return fmt.Errorf("no build result for %s", root)
	}

	files := collectDiagnostics(snap, root)
	out := cmd.OutOrStdout()
	if format == "json" {
		if err := diagfmt.JSON(out, files); err != nil {
			return err
		}
	} else {
		maxDiags, _ := cmd.Flags().GetInt("max-diagnostics")
		noContext, _ := cmd.Flags().GetBool("no-context")
		diagfmt.Pretty(out, files, diagfmt.PrettyOpts{
			Color:   useColor(cmd, os.Stdout),
			Context: !noContext,
			Max:     maxDiags,
		})
	}

	errCount, warnCount := diagfmt.Counts(files)
	printSummary(cmd, len(snap.Files), errCount, warnCount)
	if errCount > 0 {
		return fmt.Errorf("%d error(s)", errCount)
	}
	return nil
}

// buildOnce runs the host until its first load and build have settled.
func buildOnce(parent context.Context, cmd *cobra.Command, host *workspace.Host, root string) (*project.Snapshot, error) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- host.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if err := host.Initialize(root); err != nil {
		return nil, err
	}
	if err := host.WaitForUpToDateBuild(ctx); err != nil {
		return nil, fmt.Errorf("build of %s did not finish: %w", root, err)
	}
	return host.Snapshot(), nil
}

func collectDiagnostics(snap *project.Snapshot, root string) []diagfmt.File {
	paths := make([]string, 0, len(snap.Files))
	for rel := range snap.Files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	files := make([]diagfmt.File, 0, len(paths))
	for _, rel := range paths {
		diags := diagnostics.ForResult(snap.Files[rel])
		f := diagfmt.File{Path: rel, Diagnostics: diags}
		if len(diags) > 0 {
			f.Lines = readLines(root, rel)
		}
		files = append(files, f)
	}
	return files
}

func readLines(root, rel string) []string {
	path := filepath.FromSlash(rel)
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

func printSummary(cmd *cobra.Command, fileCount, errCount, warnCount int) {
	summary := color.New(color.Bold)
	if errCount > 0 {
		summary = color.New(color.FgRed, color.Bold)
	}
	if useColor(cmd, os.Stderr) {
		summary.EnableColor()
	} else {
		summary.DisableColor()
	}
	fmt.Fprintln(cmd.ErrOrStderr(), summary.Sprintf("%d file(s) checked: %d error(s), %d warning(s)", fileCount, errCount, warnCount))
}
