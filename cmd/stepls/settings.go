package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"stepls/internal/config"
)

// loadSettings reads the settings file, the explicit --config path or
// stepls.toml under dir, and applies the flags the user set on top.
func loadSettings(cmd *cobra.Command, dir string) (config.Settings, error) {
	flags := cmd.Flags()
	path, err := flags.GetString("config")
	if err != nil {
		return config.Settings{}, err
	}
	required := path != ""
	if path == "" {
		path = filepath.Join(dir, config.SettingsFileName)
	}
	settings, err := config.LoadSettings(path, required)
	if err != nil {
		return settings, err
	}

	if flags.Changed("log-level") {
		settings.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("max-delay") {
		settings.Build.MaxDelay, _ = flags.GetDuration("max-delay")
	}
	if flags.Changed("trace") {
		settings.Trace.Output, _ = flags.GetString("trace")
		if !flags.Changed("trace-level") && settings.Trace.Level == "off" {
			settings.Trace.Level = "phase"
		}
	}
	if flags.Changed("trace-level") {
		settings.Trace.Level, _ = flags.GetString("trace-level")
	}
	if flags.Changed("trace-mode") {
		settings.Trace.Mode, _ = flags.GetString("trace-mode")
	}
	if flags.Changed("trace-heartbeat") {
		settings.Trace.Heartbeat, _ = flags.GetDuration("trace-heartbeat")
	}
	if flags.Lookup("watch") != nil && flags.Changed("watch") {
		settings.Watch.Enabled, _ = flags.GetBool("watch")
	}
	return settings, settings.Validate()
}
