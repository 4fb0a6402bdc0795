package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"stepls/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "stepls",
	Short: "Language server for step-based test workspaces",
	Long: `stepls keeps a workspace of .as test files and .asi interaction files
compiled in the background and serves diagnostics, hover, completion and
go-to-definition over the language server protocol.`,
	SilenceUsage: true,
}

// main registers subcommands and persistent flags, then executes the root
// command. Any error exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "server settings file (default: stepls.toml in the workspace)")
	flags.String("log-level", "", "log level (debug|info|error)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.Duration("max-delay", 0, "longest time a rebuild may be deferred by newer edits (0s disables)")
	flags.String("trace", "", "trace output file (- for stderr)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "", "trace storage mode (stream|ring|both)")
	flags.Duration("trace-heartbeat", 0, "emit a heartbeat trace event at this interval")
	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves the --color flag for output written to f.
func useColor(cmd *cobra.Command, f *os.File) bool {
	mode, err := cmd.Flags().GetString("color")
	if err != nil {
		return false
	}
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(f)
	}
}
