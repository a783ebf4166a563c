package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the configuration file looked up when none is given.
const DefaultFileName = "xreflens.yaml"

// Config represents the xreflens configuration.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Index   IndexConfig   `yaml:"index"`
	Exclude ExcludeConfig `yaml:"exclude"`
	Render  RenderConfig  `yaml:"render"`
	Log     LogConfig     `yaml:"log"`
}

// ProjectConfig locates the project being indexed.
type ProjectConfig struct {
	BaseDir  string `yaml:"base_dir"`
	BuildDir string `yaml:"build_dir"`
	// DBPath overrides the default <base_dir>/.xreflens/index.db.
	DBPath string `yaml:"db_path"`
}

// IndexConfig controls the indexing run.
type IndexConfig struct {
	Workers        int      `yaml:"workers"` // 0 = NumCPU
	Language       string   `yaml:"language"`
	SystemPrefixes []string `yaml:"system_prefixes"`
	Sequential     bool     `yaml:"sequential"`
}

// ExcludeConfig defines sources to drop before indexing.
type ExcludeConfig struct {
	Prefixes         []string `yaml:"prefixes"`
	FilesGlob        []string `yaml:"files_glob"`
	RespectGitignore bool     `yaml:"respect_gitignore"`
}

// RenderConfig controls class hierarchy image output.
type RenderConfig struct {
	GraphvizCommand string `yaml:"graphviz_command"`
	ImageFormat     string `yaml:"image_format"`
}

// LogConfig controls the slog handler built by the CLI.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

var languageExtensions = map[string][]string{
	"c++": {".cpp", ".cc", ".cxx", ".h", ".hpp", ".hh", ".hxx"},
	"c":   {".c", ".h"},
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Project: ProjectConfig{
			BaseDir:  ".",
			BuildDir: "build",
		},
		Index: IndexConfig{
			Language:       "c++",
			SystemPrefixes: []string{"/usr/include", "/usr/local/include", "/usr/lib"},
		},
		Exclude: ExcludeConfig{
			Prefixes:  []string{"/usr/include"},
			FilesGlob: []string{"**/CMakeFiles/**", "**/*.pb.cc", "**/*.pb.h"},
		},
		Render: RenderConfig{
			GraphvizCommand: "dot",
			ImageFormat:     "png",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for xreflens.yaml in the current directory.
// Values in the config file replace defaults field by field (no deep merging).
func Load(configPath string) (*Config, error) {
	defaults := Default()

	if configPath == "" {
		configPath = DefaultFileName
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configPath, err)
	}

	defaults.Merge(&fileCfg)
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return defaults, nil
}

// Merge combines another config into this one, with other taking precedence.
// Boolean switches can only be turned on by other.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Project.BaseDir != "" {
		c.Project.BaseDir = other.Project.BaseDir
	}
	if other.Project.BuildDir != "" {
		c.Project.BuildDir = other.Project.BuildDir
	}
	if other.Project.DBPath != "" {
		c.Project.DBPath = other.Project.DBPath
	}

	if other.Index.Workers > 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.Language != "" {
		c.Index.Language = other.Index.Language
	}
	if len(other.Index.SystemPrefixes) > 0 {
		c.Index.SystemPrefixes = other.Index.SystemPrefixes
	}
	if other.Index.Sequential {
		c.Index.Sequential = true
	}

	if len(other.Exclude.Prefixes) > 0 {
		c.Exclude.Prefixes = other.Exclude.Prefixes
	}
	if len(other.Exclude.FilesGlob) > 0 {
		c.Exclude.FilesGlob = other.Exclude.FilesGlob
	}
	if other.Exclude.RespectGitignore {
		c.Exclude.RespectGitignore = true
	}

	if other.Render.GraphvizCommand != "" {
		c.Render.GraphvizCommand = other.Render.GraphvizCommand
	}
	if other.Render.ImageFormat != "" {
		c.Render.ImageFormat = other.Render.ImageFormat
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}

// Validate rejects values the rest of the program cannot act on.
func (c *Config) Validate() error {
	if _, ok := languageExtensions[c.Index.Language]; !ok {
		return fmt.Errorf("unsupported language %q", c.Index.Language)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Index.Workers)
	}
	for _, pattern := range c.Exclude.FilesGlob {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude glob %q", pattern)
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// WorkerCount returns the configured worker count, defaulting to NumCPU.
func (c *Config) WorkerCount() int {
	if c.Index.Workers > 0 {
		return c.Index.Workers
	}
	return runtime.NumCPU()
}

// DBPath returns the database location for the given absolute base directory.
func (c *Config) DBPath(baseDir string) string {
	if c.Project.DBPath == "" {
		return filepath.Join(baseDir, ".xreflens", "index.db")
	}
	if filepath.IsAbs(c.Project.DBPath) {
		return c.Project.DBPath
	}
	return filepath.Join(baseDir, c.Project.DBPath)
}

// IsExcluded checks if a source file should be dropped before indexing.
func (c *Config) IsExcluded(path string) bool {
	clean := filepath.Clean(path)
	for _, prefix := range c.Exclude.Prefixes {
		prefix = filepath.Clean(prefix)
		if clean == prefix || strings.HasPrefix(clean, prefix+string(filepath.Separator)) {
			return true
		}
	}
	slashed := strings.TrimPrefix(filepath.ToSlash(clean), "/")
	for _, pattern := range c.Exclude.FilesGlob {
		if matched, err := doublestar.Match(pattern, slashed); err == nil && matched {
			return true
		}
		// Patterns are usually written relative; let "**/" also match at the root.
		if strings.HasPrefix(pattern, "**/") {
			if matched, err := doublestar.Match(pattern[3:], slashed); err == nil && matched {
				return true
			}
		}
	}
	return false
}

// IsSystemPath reports whether path lies under a system include prefix.
func (c *Config) IsSystemPath(path string) bool {
	clean := filepath.Clean(path)
	for _, prefix := range c.Index.SystemPrefixes {
		prefix = filepath.Clean(prefix)
		if clean == prefix || strings.HasPrefix(clean, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// IsTargetLanguage reports whether path has an extension of the configured language.
func (c *Config) IsTargetLanguage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range languageExtensions[c.Index.Language] {
		if ext == e {
			return true
		}
	}
	return false
}

// SlogLevel converts the configured level name.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("unsupported log level %q", c.Log.Level)
	}
	return level, nil
}
