package index

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/abramin/xreflens/internal/compdb"
	"github.com/abramin/xreflens/internal/config"
	"github.com/abramin/xreflens/internal/model"
)

// Job is one unit of indexing work: a source file and the compiler
// arguments it is parsed with.
type Job struct {
	File string
	Args []string
}

var sourceRe = regexp.MustCompile(`\.(c|cpp|cc)$`)

// headerExtensions are probed next to every source file, in order.
var headerExtensions = []string{".hpp", ".h"}

// Loader derives indexing jobs from a build directory.
type Loader struct {
	cfg      *config.Config
	buildDir string
	baseDir  string
	logger   *slog.Logger
}

// NewLoader creates a new job loader.
func NewLoader(cfg *config.Config, buildDir, baseDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		cfg:      cfg,
		buildDir: buildDir,
		baseDir:  baseDir,
		logger:   logger,
	}
}

// Scan reads the compilation database and returns the filtered job list.
func (l *Loader) Scan() ([]Job, error) {
	cmds, err := compdb.Load(l.buildDir)
	if err != nil {
		return nil, fmt.Errorf("loading compilation database: %w", err)
	}
	jobs := JobsFromCommands(cmds)
	filtered := l.Filter(jobs)
	l.logger.Debug("scanned build directory",
		"build_dir", l.buildDir,
		"commands", len(cmds),
		"jobs", len(jobs),
		"kept", len(filtered))
	return filtered, nil
}

// JobsFromCommands turns compile commands into jobs. C++ sources get
// "-x c++" appended, and a companion header sharing the source's stem is
// queued with the same arguments. Each file appears at most once.
func JobsFromCommands(cmds []compdb.Command) []Job {
	var jobs []Job
	seen := make(map[string]bool)
	add := func(file string, args []string) {
		if seen[file] {
			return
		}
		seen[file] = true
		jobs = append(jobs, Job{File: file, Args: args})
	}

	for _, cmd := range cmds {
		src := cmd.SourcePath()
		if !sourceRe.MatchString(src) {
			continue
		}
		args := compilerArgs(cmd, src)
		if ext := filepath.Ext(src); ext == ".cpp" || ext == ".cc" {
			args = append(args, "-x", "c++")
		}
		add(src, args)

		stem := strings.TrimSuffix(src, filepath.Ext(src))
		for _, ext := range headerExtensions {
			if info, err := os.Stat(stem + ext); err == nil && !info.IsDir() {
				add(stem+ext, args)
			}
		}
	}
	return jobs
}

// compilerArgs drops the compiler, the source file, and output flags,
// keeping what affects parsing.
func compilerArgs(cmd compdb.Command, src string) []string {
	all := cmd.Args()
	if len(all) > 0 {
		all = all[1:]
	}
	args := make([]string, 0, len(all))
	for i := 0; i < len(all); i++ {
		a := all[i]
		switch {
		case a == "-c":
		case a == "-o":
			i++
		case strings.HasPrefix(a, "-o") && len(a) > 2:
		case a == cmd.File || a == src:
		default:
			args = append(args, a)
		}
	}
	return args
}

// Filter drops jobs for excluded prefixes and globs, system files,
// gitignored paths, and files outside the configured language.
func (l *Loader) Filter(jobs []Job) []Job {
	var gi *ignore.GitIgnore
	if l.cfg.Exclude.RespectGitignore && l.baseDir != "" {
		gi = loadGitignore(l.baseDir)
	}

	var kept []Job
	for _, job := range jobs {
		switch {
		case l.cfg.IsExcluded(job.File):
			l.logger.Debug("excluded by config", "file", job.File)
		case l.cfg.IsSystemPath(job.File):
			l.logger.Debug("system file", "file", job.File)
		case !l.cfg.IsTargetLanguage(job.File):
			l.logger.Debug("not a target language file", "file", job.File)
		case gi != nil && gi.MatchesPath(model.RelPath(l.baseDir, job.File)):
			l.logger.Debug("excluded by .gitignore", "file", job.File)
		default:
			kept = append(kept, job)
		}
	}
	return kept
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
