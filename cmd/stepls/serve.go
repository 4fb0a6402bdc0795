package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stepls/internal/extension"
	"stepls/internal/lsp"
	"stepls/internal/stepc"
	"stepls/internal/version"
	"stepls/internal/watch"
	"stepls/internal/workspace"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"lsp"},
	Short:   "Run the language server over stdio",
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	serveCmd.Flags().Bool("watch", false, "watch the workspace for file changes instead of relying on the client")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	settings, err := loadSettings(cmd, cwd)
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

	opts := lsp.ServerOptions{
		Compiler:   stepc.New(),
		Extensions: extension.NewLoader(),
		Logger:     workspace.NewLogger(os.Stderr, settings.Log.Level),
		Tracer:     tracer,
		MaxDelay:   settings.Build.MaxDelay,
		Heartbeat:  settings.Trace.Heartbeat,
		Version:    version.Version,
	}
	if settings.Watch.Enabled {
		opts.Watch = func(ctx context.Context, root string, host *workspace.Host) error {
			return watch.Run(ctx, root, host)
		}
	}
	server := lsp.NewServer(os.Stdin, os.Stdout, opts)
	if err := server.Run(cmd.Context()); err != nil {
		if errors.Is(err, lsp.ErrExit) {
			return nil
		}
		if errors.Is(err, lsp.ErrExitWithoutShutdown) {
			return fmt.Errorf("lsp exit without shutdown")
		}
		return err
	}
	return nil
}
