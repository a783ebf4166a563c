// Package compdb reads clang JSON compilation databases
// (compile_commands.json) as produced by CMake and Bear.
package compdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the compilation database looked up in a build directory.
const FileName = "compile_commands.json"

// ErrNoDatabase is returned when a build directory has no compilation database.
var ErrNoDatabase = errors.New("no compilation database")

// Command is one entry of a compilation database.
type Command struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// Args returns the full argument vector, compiler first. Entries that only
// carry a command string are split on whitespace.
func (c Command) Args() []string {
	if len(c.Arguments) > 0 {
		return append([]string(nil), c.Arguments...)
	}
	return strings.Fields(c.Command)
}

// SourcePath returns the entry's file as an absolute path.
func (c Command) SourcePath() string {
	if filepath.IsAbs(c.File) || c.Directory == "" {
		return filepath.Clean(c.File)
	}
	return filepath.Join(c.Directory, c.File)
}

// Load reads compile_commands.json from buildDir.
func Load(buildDir string) ([]Command, error) {
	info, err := os.Stat(buildDir)
	if err != nil {
		return nil, fmt.Errorf("build directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build directory %s is not a directory", buildDir)
	}

	path := filepath.Join(buildDir, FileName)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", buildDir, ErrNoDatabase)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes the JSON array of a compilation database.
func Parse(data []byte) ([]Command, error) {
	var cmds []Command
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, fmt.Errorf("decoding compilation database: %w", err)
	}
	for i, c := range cmds {
		if c.File == "" {
			return nil, fmt.Errorf("entry %d has no file", i)
		}
		if c.Command == "" && len(c.Arguments) == 0 {
			return nil, fmt.Errorf("entry %d (%s) has neither command nor arguments", i, c.File)
		}
	}
	return cmds, nil
}
