package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Index.Language != "c++" {
		t.Errorf("expected default language c++, got %q", cfg.Index.Language)
	}
	if len(cfg.Index.SystemPrefixes) == 0 {
		t.Error("expected default system prefixes")
	}
	if len(cfg.Exclude.Prefixes) == 0 {
		t.Error("expected default excluded prefixes")
	}
	if cfg.Render.GraphvizCommand != "dot" {
		t.Errorf("expected dot renderer, got %q", cfg.Render.GraphvizCommand)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadNonExistent(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	if err != nil {
		t.Fatalf("expected no error for nonexistent file, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config")
	}
	if cfg.Index.Language != "c++" {
		t.Error("expected default language")
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
project:
  base_dir: /src/proj
  build_dir: /src/proj/out

index:
  workers: 3
  system_prefixes:
    - /opt/toolchain/include

exclude:
  prefixes:
    - /src/proj/third_party
  files_glob:
    - "**/generated/**"
  respect_gitignore: true

log:
  level: debug
  format: json
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "xreflens.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Project.BaseDir != "/src/proj" {
		t.Errorf("expected base dir /src/proj, got %s", cfg.Project.BaseDir)
	}
	if cfg.Project.BuildDir != "/src/proj/out" {
		t.Errorf("expected build dir /src/proj/out, got %s", cfg.Project.BuildDir)
	}
	if cfg.WorkerCount() != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.WorkerCount())
	}
	if len(cfg.Index.SystemPrefixes) != 1 {
		t.Errorf("expected 1 system prefix, got %d", len(cfg.Index.SystemPrefixes))
	}
	if !cfg.Exclude.RespectGitignore {
		t.Error("expected respect_gitignore to be enabled")
	}
	// Untouched sections keep their defaults.
	if cfg.Index.Language != "c++" {
		t.Errorf("expected default language, got %q", cfg.Index.Language)
	}
	if cfg.Render.ImageFormat != "png" {
		t.Errorf("expected default image format, got %q", cfg.Render.ImageFormat)
	}
	level, err := cfg.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("expected debug level, got %v (%v)", level, err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"language": "index:\n  language: cobol\n",
		"glob":     "exclude:\n  files_glob:\n    - \"[\"\n",
		"format":   "log:\n  format: xml\n",
		"level":    "log:\n  level: loud\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "xreflens.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for invalid %s", name)
			}
		})
	}
}

func TestIsExcluded(t *testing.T) {
	cfg := Default()

	tests := []struct {
		path     string
		excluded bool
	}{
		{"/usr/include/c++/9/vector", true},
		{"/proj/build/CMakeFiles/foo.cpp", true},
		{"CMakeFiles/3.16/CompilerIdCXX/main.cpp", true},
		{"/proj/src/msg.pb.cc", true},
		{"/proj/src/main.cpp", false},
		{"src/util.h", false},
	}

	for _, tt := range tests {
		got := cfg.IsExcluded(tt.path)
		if got != tt.excluded {
			t.Errorf("IsExcluded(%q) = %v, want %v", tt.path, got, tt.excluded)
		}
	}
}

func TestIsSystemPath(t *testing.T) {
	cfg := Default()

	if !cfg.IsSystemPath("/usr/include/c++/9/iostream") {
		t.Error("expected libstdc++ header to be a system path")
	}
	if cfg.IsSystemPath("/home/me/proj/a.h") {
		t.Error("project header must not be a system path")
	}
}

func TestIsTargetLanguage(t *testing.T) {
	cfg := Default()

	tests := []struct {
		path string
		want bool
	}{
		{"a.cpp", true},
		{"a.CC", true},
		{"a.hpp", true},
		{"a.h", true},
		{"a.c", false},
		{"a.py", false},
	}
	for _, tt := range tests {
		if got := cfg.IsTargetLanguage(tt.path); got != tt.want {
			t.Errorf("IsTargetLanguage(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWorkerCountDefaultsToNumCPU(t *testing.T) {
	cfg := Default()
	if cfg.WorkerCount() != runtime.NumCPU() {
		t.Errorf("expected %d workers, got %d", runtime.NumCPU(), cfg.WorkerCount())
	}
}

func TestDBPath(t *testing.T) {
	cfg := Default()
	if got := cfg.DBPath("/proj"); got != filepath.Join("/proj", ".xreflens", "index.db") {
		t.Errorf("unexpected default db path %s", got)
	}
	cfg.Project.DBPath = "stags.db"
	if got := cfg.DBPath("/proj"); got != filepath.Join("/proj", "stags.db") {
		t.Errorf("unexpected relative db path %s", got)
	}
	cfg.Project.DBPath = "/var/db/x.db"
	if got := cfg.DBPath("/proj"); got != "/var/db/x.db" {
		t.Errorf("unexpected absolute db path %s", got)
	}
}
