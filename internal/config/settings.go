package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"stepls/internal/trace"
)

// SettingsFileName is the optional server settings file at the workspace root.
const SettingsFileName = "stepls.toml"

// Settings configures the server process.
type Settings struct {
	Log   LogSettings   `toml:"log"`
	Build BuildSettings `toml:"build"`
	Trace TraceSettings `toml:"trace"`
	Watch WatchSettings `toml:"watch"`
}

type LogSettings struct {
	Level string `toml:"level"`
}

type BuildSettings struct {
	// MaxDelay bounds how long the rebuild guard may keep skipping rebuilds
	// under continuous edits. Zero disables the bound.
	MaxDelay time.Duration `toml:"max_delay"`
}

type TraceSettings struct {
	Level     string        `toml:"level"`
	Output    string        `toml:"output"`
	Mode      string        `toml:"mode"`
	Format    string        `toml:"format"`
	Heartbeat time.Duration `toml:"heartbeat"`
}

type WatchSettings struct {
	Enabled bool `toml:"enabled"`
}

// DefaultSettings returns the settings used without a file.
func DefaultSettings() Settings {
	return Settings{
		Log:   LogSettings{Level: "info"},
		Build: BuildSettings{MaxDelay: 5 * time.Second},
		Trace: TraceSettings{Level: "off", Output: "-", Mode: "stream"},
	}
}

// LoadSettings decodes the TOML file at path over the defaults. A missing
// file is not an error unless required is set.
func LoadSettings(path string, required bool) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	meta, err := toml.DecodeFile(path, &settings)
	if err != nil {
		return DefaultSettings(), fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return DefaultSettings(), fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := settings.Validate(); err != nil {
		return DefaultSettings(), fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

// Validate checks enumerated values.
func (s Settings) Validate() error {
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "error":
	default:
		return fmt.Errorf("invalid log level %q (expected: debug|info|error)", s.Log.Level)
	}
	if s.Build.MaxDelay < 0 {
		return fmt.Errorf("build.max_delay must not be negative")
	}
	if _, err := trace.ParseLevel(s.Trace.Level); err != nil {
		return err
	}
	if _, err := trace.ParseMode(s.Trace.Mode); err != nil {
		return err
	}
	if _, err := trace.ParseFormat(s.Trace.Format); err != nil {
		return err
	}
	return nil
}

// TraceConfig converts the trace settings into a tracer configuration.
func (s Settings) TraceConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(s.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(s.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(s.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: s.Trace.Output,
	}, nil
}
