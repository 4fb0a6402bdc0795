package extension

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"stepls/internal/config"
	"stepls/internal/project"
)

func writeExtension(t *testing.T, dir, name, script string) string {
	t.Helper()
	extDir := filepath.Join(dir, name)
	if err := os.MkdirAll(extDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(extDir, ScriptName), []byte(script), 0o644); err != nil {
			t.Fatalf("write script: %v", err)
		}
	}
	return extDir
}

func boolPtr(v bool) *bool { return &v }

func TestLoadRegistersSteps(t *testing.T) {
	root := t.TempDir()
	writeExtension(t, filepath.Join(root, ".autostep", "extensions"), "web", `
step("Given", "the browser is open", "Opens a browser.")
step("When", "I visit {url}")
`)
	cfg := &config.Project{Extensions: []config.Extension{{Package: "web"}}}

	loaded, err := NewLoader().Load(context.Background(), root, nil, cfg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer loaded.Close()

	p := project.New()
	if err := loaded.AttachTo(cfg, p); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defs := p.Definitions()
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Description != "Opens a browser." || defs[0].Extension != "web" || defs[0].Line < 1 {
		t.Fatalf("unexpected first definition: %+v", defs[0])
	}
	if defs[0].SourceFile != ".autostep/extensions/web/extension.lua" {
		t.Fatalf("unexpected source file %q", defs[0].SourceFile)
	}
	if len(defs[1].Arguments) != 1 || defs[1].Arguments[0] != "url" {
		t.Fatalf("unexpected arguments: %v", defs[1].Arguments)
	}
	if dirs := loaded.ContentDirs(); len(dirs) != 1 {
		t.Fatalf("expected one content dir, got %v", dirs)
	}
}

func TestLoadSearchesSourcesFirst(t *testing.T) {
	root := t.TempDir()
	writeExtension(t, filepath.Join(root, "exts"), "db", "")
	writeExtension(t, filepath.Join(root, ".autostep", "extensions"), "db", "")
	cfg := &config.Project{Extensions: []config.Extension{{Package: "db"}, {Package: "off", Enabled: boolPtr(false)}}}

	loaded, err := NewLoader().Load(context.Background(), root, []string{"exts"}, cfg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defer loaded.Close()
	dirs := loaded.ContentDirs()
	if len(dirs) != 1 || dirs[0] != filepath.Join(root, "exts", "db") {
		t.Fatalf("unexpected dirs: %v", dirs)
	}
}

func TestLoadMissingExtension(t *testing.T) {
	cfg := &config.Project{Extensions: []config.Extension{{Package: "ghost"}}}
	_, err := NewLoader().Load(context.Background(), t.TempDir(), nil, cfg)
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestLoadScriptError(t *testing.T) {
	root := t.TempDir()
	writeExtension(t, filepath.Join(root, ".autostep", "extensions"), "bad", `step("Sometimes", "x")`)
	cfg := &config.Project{Extensions: []config.Extension{{Package: "bad"}}}
	if _, err := NewLoader().Load(context.Background(), root, nil, cfg); err == nil {
		t.Fatal("expected script error")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeExtension(t, filepath.Join(root, ".autostep", "extensions"), "web", `step("Then", "done")`)
	cfg := &config.Project{Extensions: []config.Extension{{Package: "web"}}}
	loaded, err := NewLoader().Load(context.Background(), root, nil, cfg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := loaded.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := loaded.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
