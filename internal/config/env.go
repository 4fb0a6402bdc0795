package config

import (
	"os"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AUTOSTEP_"

// applyEnv overrides list-valued keys from comma-separated environment
// variables. An empty variable clears the list.
func applyEnv(cfg *Project) {
	lists := map[string]*[]string{
		EnvPrefix + "TESTS":            &cfg.Tests,
		EnvPrefix + "INTERACTIONS":     &cfg.Interactions,
		EnvPrefix + "EXTENSIONSOURCES": &cfg.ExtensionSources,
	}
	for env, target := range lists {
		val, ok := os.LookupEnv(env)
		if !ok {
			continue
		}
		*target = splitList(val)
	}
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
