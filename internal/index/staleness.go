package index

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/abramin/xreflens/internal/model"
)

// StatFunc returns a file's modification time.
type StatFunc func(path string) (time.Time, error)

// Tracker decides which jobs need re-indexing by comparing file
// modification times against the times recorded by the previous run.
type Tracker struct {
	BaseDir string
	Stat    StatFunc
}

// NewTracker returns a tracker reading modification times from disk.
func NewTracker(baseDir string) *Tracker {
	return &Tracker{BaseDir: baseDir, Stat: modTime}
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Stale returns the jobs that must be re-indexed. With no recorded run
// every job is stale. Otherwise a job is stale when its file was never
// indexed or was modified strictly after it was last indexed.
func (t *Tracker) Stale(jobs []Job, recorded map[string]time.Time) []Job {
	if recorded == nil {
		return jobs
	}
	var stale []Job
	for _, job := range jobs {
		ts, ok := recorded[t.rel(job.File)]
		if !ok {
			stale = append(stale, job)
			continue
		}
		mtime, err := t.Stat(job.File)
		if err != nil {
			// Vanished files are reported by Removed.
			continue
		}
		if mtime.After(ts) {
			stale = append(stale, job)
		}
	}
	return stale
}

// Removed returns the recorded files that are no longer part of the
// project: absent from the job list or deleted from disk.
func (t *Tracker) Removed(jobs []Job, recorded map[string]time.Time) []string {
	present := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		present[t.rel(job.File)] = true
	}

	var removed []string
	for rel := range recorded {
		if !present[rel] {
			removed = append(removed, rel)
			continue
		}
		if _, err := t.Stat(t.absolute(rel)); errors.Is(err, fs.ErrNotExist) {
			removed = append(removed, rel)
		}
	}
	sort.Strings(removed)
	return removed
}

func (t *Tracker) rel(file string) string {
	return model.RelPath(t.BaseDir, file)
}

func (t *Tracker) absolute(rel string) string {
	if t.BaseDir == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(t.BaseDir, rel)
}
