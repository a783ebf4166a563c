package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/abramin/xreflens/internal/ast"
	"github.com/abramin/xreflens/internal/config"
	"github.com/abramin/xreflens/internal/store"
)

// Indexer coordinates the indexing pipeline: job derivation, staleness,
// orchestration, and persistence.
type Indexer struct {
	cfg      *config.Config
	baseDir  string
	buildDir string
	provider ast.Provider
	logger   *slog.Logger
}

// NewIndexer creates a new indexer for the project described by cfg.
func NewIndexer(cfg *config.Config, provider ast.Provider, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	baseDir, err := filepath.Abs(cfg.Project.BaseDir)
	if err != nil {
		baseDir = cfg.Project.BaseDir
	}
	buildDir := cfg.Project.BuildDir
	if !filepath.IsAbs(buildDir) {
		buildDir = filepath.Join(baseDir, buildDir)
	}
	return &Indexer{
		cfg:      cfg,
		baseDir:  baseDir,
		buildDir: buildDir,
		provider: provider,
		logger:   logger,
	}
}

// Options tunes a single run.
type Options struct {
	// Sequential builds every job on the calling goroutine.
	Sequential bool
	// DryRun reports stale and removed files without indexing.
	DryRun bool
}

// Result holds the results of an indexing run.
type Result struct {
	Jobs        int
	Stale       []string
	Removed     []string
	Indexed     []string
	Skipped     []string
	Failed      []string
	FileCount   int
	SymbolCount int
	Duration    time.Duration
	DBPath      string
}

// BaseDir returns the absolute project directory.
func (ix *Indexer) BaseDir() string {
	return ix.baseDir
}

// DBPath returns the database location.
func (ix *Indexer) DBPath() string {
	return ix.cfg.DBPath(ix.baseDir)
}

// Scan derives the filtered job list from the build directory.
func (ix *Indexer) Scan() ([]Job, error) {
	return NewLoader(ix.cfg, ix.buildDir, ix.baseDir, ix.logger).Scan()
}

// Run executes the indexing pipeline.
func (ix *Indexer) Run(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{DBPath: ix.DBPath()}

	jobs, err := ix.Scan()
	if err != nil {
		return nil, err
	}
	result.Jobs = len(jobs)

	recorded, err := ix.recordedTimestamps()
	if err != nil {
		return nil, err
	}

	tracker := NewTracker(ix.baseDir)
	stale := tracker.Stale(jobs, recorded)
	result.Removed = tracker.Removed(jobs, recorded)
	for _, job := range stale {
		result.Stale = append(result.Stale, tracker.rel(job.File))
	}
	ix.logger.Info("scanned project",
		"jobs", len(jobs),
		"stale", len(stale),
		"removed", len(result.Removed))

	if opts.DryRun {
		result.Duration = time.Since(start)
		return result, nil
	}

	orch := NewOrchestrator(
		NewBuilder(ix.baseDir, ix.cfg.Index.SystemPrefixes, ix.logger),
		ix.provider,
		ix.cfg.WorkerCount(),
		ix.logger,
	)
	var run *RunResult
	if opts.Sequential || ix.cfg.Index.Sequential {
		run, err = orch.RunSequential(ctx, stale)
	} else {
		run, err = orch.Run(ctx, stale)
	}
	if err != nil {
		return nil, fmt.Errorf("indexing: %w", err)
	}
	result.Indexed = run.Indexed
	result.Skipped = run.Skipped
	result.Failed = run.Failed

	// The store is opened for writing only once every worker has finished.
	st, err := store.Open(result.DBPath, store.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	excise := append(append([]string(nil), result.Removed...), run.Indexed...)
	if err := store.ExciseFiles(st, excise); err != nil {
		return nil, fmt.Errorf("excising files: %w", err)
	}
	if err := store.SaveIndex(st, run.Index); err != nil {
		return nil, fmt.Errorf("saving index: %w", err)
	}

	// Store indexing metadata
	if err := st.SetMetadata("indexed_at", time.Now().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("storing metadata: %w", err)
	}
	if err := st.SetMetadata("base_dir", ix.baseDir); err != nil {
		return nil, fmt.Errorf("storing metadata: %w", err)
	}
	if err := st.Sync(); err != nil {
		return nil, fmt.Errorf("syncing store: %w", err)
	}

	stats, err := st.GetStats()
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	if err := st.WriteIndexJSON(); err != nil {
		return nil, fmt.Errorf("writing index.json: %w", err)
	}

	result.FileCount = stats.FileCount
	result.SymbolCount = stats.SymbolCount
	result.Duration = time.Since(start)
	return result, nil
}

// recordedTimestamps reads the previous run's timestamps, or nil when the
// project has never been indexed.
func (ix *Indexer) recordedTimestamps() (map[string]time.Time, error) {
	path := ix.DBPath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	st, err := store.Open(path, store.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	return store.LoadTimestamps(st)
}
