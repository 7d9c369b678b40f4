package gitlib

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// Default configuration values for DiffPool.
const (
	// DefaultDiffWorkers is the default number of diff workers.
	DefaultDiffWorkers = 4
	// DefaultBatchSize is the default number of commits per batch.
	DefaultBatchSize = 64
)

// CommitDiff holds the first-parent changes of one commit together with the
// contents of every blob those changes reference. A non-nil Err marks a
// commit whose diff failed; the commit is reported and skipped downstream.
type CommitDiff struct {
	Commit  plumbing.Commit
	Changes []Change
	Blobs   map[Hash]*CachedBlob
	Err     error
}

// DiffPool computes first-parent diffs for a sequence of commits using a
// bounded pool of workers. Each worker opens its own repository handle
// because libgit2 handles are not safe for concurrent use. Results are
// delivered in the original commit order.
type DiffPool struct {
	// Path is the repository path each worker opens.
	Path string

	// Workers is the number of concurrent diff workers.
	Workers int

	// BatchSize is the number of commits assigned to a worker at once.
	BatchSize int

	// Logger receives per-commit diff failures.
	Logger *slog.Logger
}

// NewDiffPool creates a diff pool with defaults applied for zero values.
func NewDiffPool(path string, workers, batchSize int, logger *slog.Logger) *DiffPool {
	if workers <= 0 {
		workers = DefaultDiffWorkers
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &DiffPool{Path: path, Workers: workers, BatchSize: batchSize, Logger: logger}
}

// diffJob is a contiguous batch of commit hashes with its sequence number.
type diffJob struct {
	id   int
	shas []Hash
}

// diffResult is the computed batch keyed by the job sequence number.
type diffResult struct {
	id    int
	diffs []CommitDiff
}

// Run streams the diffs of the given commits, oldest first, preserving the
// input order. The returned channel is closed once every commit has been
// processed or the context is cancelled.
func (p *DiffPool) Run(ctx context.Context, shas []Hash) <-chan CommitDiff {
	jobs := make(chan diffJob, p.Workers)
	results := make(chan diffResult, p.Workers)
	out := make(chan CommitDiff, p.BatchSize)

	var wg sync.WaitGroup

	for range p.Workers {
		wg.Add(1)

		go func() {
			defer wg.Done()
			p.worker(ctx, jobs, results)
		}()
	}

	go func() {
		defer close(jobs)

		id := 0

		for i := 0; i < len(shas); i += p.BatchSize {
			end := min(i+p.BatchSize, len(shas))

			select {
			case jobs <- diffJob{id: id, shas: shas[i:end]}:
				id++
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(out)
		reorder(ctx, results, out)
	}()

	return out
}

// worker processes batches on its own repository handle.
func (p *DiffPool) worker(ctx context.Context, jobs <-chan diffJob, results chan<- diffResult) {
	// libgit2 is CGO; pinning the goroutine keeps its handles on one thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	repo, err := Open(p.Path)
	if err != nil {
		p.Logger.Error("diff worker failed to open repository", "path", p.Path, "error", err)

		for job := range jobs {
			diffs := make([]CommitDiff, len(job.shas))
			for i, sha := range job.shas {
				diffs[i] = CommitDiff{Commit: plumbing.Commit{Sha: sha.String()}, Err: err}
			}

			select {
			case results <- diffResult{id: job.id, diffs: diffs}:
			case <-ctx.Done():
				return
			}
		}

		return
	}
	defer repo.Free()

	for job := range jobs {
		diffs := make([]CommitDiff, 0, len(job.shas))

		for _, sha := range job.shas {
			diffs = append(diffs, p.diffCommit(repo, sha))
		}

		select {
		case results <- diffResult{id: job.id, diffs: diffs}:
		case <-ctx.Done():
			return
		}
	}
}

// diffCommit computes one commit's first-parent changes and caches the
// referenced blob contents.
func (p *DiffPool) diffCommit(repo *Repository, sha Hash) CommitDiff {
	commit, err := repo.LookupCommit(sha)
	if err != nil {
		p.Logger.Warn("skipping commit: lookup failed", "sha", sha.String(), "error", err)

		return CommitDiff{Commit: plumbing.Commit{Sha: sha.String()}, Err: fmt.Errorf("lookup commit %s: %w", sha, err)}
	}
	defer commit.Free()

	record := commit.Record()

	changes, err := repo.FirstParentChanges(commit)
	if err != nil {
		p.Logger.Warn("skipping commit: diff failed", "sha", sha.String(), "error", err)

		return CommitDiff{Commit: record, Err: fmt.Errorf("diff commit %s: %w", sha, err)}
	}

	blobs := make(map[Hash]*CachedBlob)

	for _, change := range changes {
		for _, blobHash := range []Hash{change.OldBlob, change.NewBlob} {
			if blobHash.IsZero() {
				continue
			}

			if _, ok := blobs[blobHash]; ok {
				continue
			}

			blob, err := repo.LookupBlob(blobHash)
			if err != nil {
				p.Logger.Warn("skipping commit: blob load failed",
					"sha", sha.String(), "blob", blobHash.String(), "error", err)

				return CommitDiff{Commit: record, Err: fmt.Errorf("load blob %s: %w", blobHash, err)}
			}

			blobs[blobHash] = blob
		}
	}

	return CommitDiff{Commit: record, Changes: changes, Blobs: blobs}
}

// reorder re-emits batch results in job order.
func reorder(ctx context.Context, results <-chan diffResult, out chan<- CommitDiff) {
	pending := make(map[int][]CommitDiff)
	next := 0

	emit := func(diffs []CommitDiff) bool {
		for _, diff := range diffs {
			select {
			case out <- diff:
			case <-ctx.Done():
				return false
			}
		}

		return true
	}

	for result := range results {
		pending[result.id] = result.diffs

		for {
			diffs, ok := pending[next]
			if !ok {
				break
			}

			delete(pending, next)

			if !emit(diffs) {
				return
			}

			next++
		}
	}
}
