package index

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abramin/xreflens/internal/ast"
	"github.com/abramin/xreflens/internal/model"
)

// Orchestrator runs the Builder over a job list, optionally in parallel.
type Orchestrator struct {
	builder  *Builder
	provider ast.Provider
	workers  int
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. workers <= 0 means NumCPU.
func NewOrchestrator(builder *Builder, provider ast.Provider, workers int, logger *slog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		builder:  builder,
		provider: provider,
		workers:  workers,
		logger:   logger,
		now:      time.Now,
	}
}

// RunResult is the merged outcome of one orchestration.
type RunResult struct {
	Index *model.Index
	// Indexed lists files that were built and timestamped.
	Indexed []string
	// Skipped lists files whose translation unit failed to parse.
	Skipped []string
	// Failed lists files never processed because a worker crashed or the
	// run was cancelled.
	Failed   []string
	Duration time.Duration
}

// workerResult is the single message each worker sends back.
type workerResult struct {
	part    int
	partial *model.Index
	indexed []string
	skipped []string
	failed  []string
	// err is set when the worker stopped early because ctx was done.
	err error
}

// Run partitions jobs into at most one chunk per worker, builds each chunk
// on its own goroutine, and merges the partial indices once every worker
// has reported. Workers share no mutable state.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) (*RunResult, error) {
	start := time.Now()
	if len(jobs) == 0 {
		return &RunResult{Index: model.New(o.builder.baseDir)}, ctx.Err()
	}

	parts := partition(jobs, o.workers)
	results := make(chan workerResult, len(parts))

	var g errgroup.Group
	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			wr := o.work(ctx, part)
			wr.part = i
			results <- wr
			return wr.err
		})
	}

	collected := make([]workerResult, 0, len(parts))
	for range parts {
		collected = append(collected, <-results)
	}
	// Every worker has reported, so partial results are kept even when
	// one of them was interrupted.
	waitErr := g.Wait()

	res := o.assemble(collected)
	res.Duration = time.Since(start)
	o.logger.Info("indexing finished",
		"workers", len(parts),
		"indexed", len(res.Indexed),
		"skipped", len(res.Skipped),
		"failed", len(res.Failed),
		"duration", res.Duration)
	if waitErr != nil {
		return res, fmt.Errorf("indexing interrupted: %w", waitErr)
	}
	return res, ctx.Err()
}

// RunSequential has the same contract as Run without starting goroutines.
func (o *Orchestrator) RunSequential(ctx context.Context, jobs []Job) (*RunResult, error) {
	start := time.Now()
	res := o.assemble([]workerResult{o.work(ctx, jobs)})
	res.Duration = time.Since(start)
	o.logger.Info("indexing finished",
		"workers", 1,
		"indexed", len(res.Indexed),
		"skipped", len(res.Skipped),
		"failed", len(res.Failed),
		"duration", res.Duration)
	return res, ctx.Err()
}

// partition splits jobs into chunks of ceil(len/workers).
func partition(jobs []Job, workers int) [][]Job {
	if workers <= 0 {
		workers = 1
	}
	size := (len(jobs) + workers - 1) / workers
	if size == 0 {
		return nil
	}
	var parts [][]Job
	for i := 0; i < len(jobs); i += size {
		parts = append(parts, jobs[i:min(i+size, len(jobs))])
	}
	return parts
}

// work builds jobs in order into a private partial index. A panic stops
// the worker; jobs it had not finished are reported as failed and the
// results of completed jobs are kept.
func (o *Orchestrator) work(ctx context.Context, jobs []Job) (res workerResult) {
	res.partial = model.New(o.builder.baseDir)
	done := 0

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("worker crashed", "file", jobs[done].File, "panic", r)
			for _, job := range jobs[done:] {
				res.failed = append(res.failed, o.rel(job.File))
			}
		}
	}()

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			for _, rest := range jobs[done:] {
				res.failed = append(res.failed, o.rel(rest.File))
			}
			res.err = err
			return res
		}
		o.process(ctx, job, &res)
		done++
	}
	return res
}

func (o *Orchestrator) process(ctx context.Context, job Job, res *workerResult) {
	rel := o.rel(job.File)
	stamp := o.now()
	begin := time.Now()

	partial, err := o.builder.BuildFile(ctx, o.provider, job)
	o.logger.Debug("built translation unit", "job", describeJob(job), "took", time.Since(begin))
	if err != nil {
		// No timestamp: the file is retried on the next run.
		res.skipped = append(res.skipped, rel)
		return
	}

	res.partial.Merge(partial)
	res.partial.Timestamps[rel] = stamp
	res.indexed = append(res.indexed, rel)
}

func (o *Orchestrator) rel(file string) string {
	return model.RelPath(o.builder.baseDir, file)
}

// assemble merges worker results on the calling goroutine, in partition
// order so that scalar conflicts resolve the same way on every run.
func (o *Orchestrator) assemble(results []workerResult) *RunResult {
	sort.Slice(results, func(i, j int) bool { return results[i].part < results[j].part })
	res := &RunResult{Index: model.New(o.builder.baseDir)}
	for _, wr := range results {
		res.Index.Merge(wr.partial)
		res.Indexed = append(res.Indexed, wr.indexed...)
		res.Skipped = append(res.Skipped, wr.skipped...)
		res.Failed = append(res.Failed, wr.failed...)
	}
	sort.Strings(res.Indexed)
	sort.Strings(res.Skipped)
	sort.Strings(res.Failed)
	return res
}
