package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stepls/internal/prof"
)

// setupProfiling starts the profilers named by the --cpu-profile and
// --mem-profile flags. The returned stop function reports write failures
// on stderr.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	flags := cmd.Root().PersistentFlags()
	cpu, err := flags.GetString("cpu-profile")
	if err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	mem, err := flags.GetString("mem-profile")
	if err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	session, err := prof.Start(prof.Options{CPU: cpu, Mem: mem})
	if err != nil {
		return nil, err
	}
	return func() {
		if err := session.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "stepls: %v\n", err)
		}
	}, nil
}
