// Package provenance replays first-parent diff history and assigns every
// tracked line a birth commit and, when removed within the window, a death
// commit. The output is an append-only ledger of line lifetimes.
package provenance

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/reviewfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/reviewfang/pkg/observability"
	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// Ledger is the result of one provenance replay.
type Ledger struct {
	// Records holds every line lifetime observed in the window.
	Records []plumbing.LineRecord

	// Binaries is the set of paths excluded from tracking because their
	// content is not line-diffable.
	Binaries map[string]bool

	// Untracked counts removals that matched no live line.
	Untracked int

	// FailedDiffs counts commits whose diff could not be computed.
	FailedDiffs int

	// Commits counts the commits replayed.
	Commits int
}

// fileEvent is one edit of a file, queued for per-file replay.
type fileEvent struct {
	sha        string
	when       time.Time
	kind       plumbing.ChangeKind
	path       string
	oldPath    string
	oldData    []byte
	newData    []byte
	pureRename bool
}

// fileHistory is the ordered in-window edit sequence of one file, followed
// across renames.
type fileHistory struct {
	path     string
	language string
	events   []fileEvent
}

// Analyzer turns a commit diff stream into a line-provenance ledger.
// Per-file replay runs concurrently; files share no mutable state.
type Analyzer struct {
	Workers int
	Logger  *slog.Logger
	Metrics *observability.RunMetrics
}

// NewAnalyzer creates an analyzer with defaults applied for zero values.
func NewAnalyzer(workers int, logger *slog.Logger, metrics *observability.RunMetrics) *Analyzer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{Workers: workers, Logger: logger, Metrics: metrics}
}

// Run consumes the ordered commit diff stream oldest first and produces the
// complete ledger. A commit referenced by a tracked line but absent from the
// date index aborts the run.
func (a *Analyzer) Run(ctx context.Context, diffs <-chan gitlib.CommitDiff, dates gitlib.DateIndex) (*Ledger, error) {
	ledger := &Ledger{Binaries: make(map[string]bool)}
	histories := make(map[string]*fileHistory)

	for diff := range diffs {
		if diff.Err != nil {
			ledger.FailedDiffs++

			if a.Metrics != nil {
				a.Metrics.RecordDiffFailure(ctx)
			}

			continue
		}

		ledger.Commits++

		a.ingestCommit(histories, ledger.Binaries, diff)
	}

	if a.Metrics != nil {
		a.Metrics.RecordCommits(ctx, int64(ledger.Commits))
	}

	if err := a.replayAll(ctx, histories, dates, ledger); err != nil {
		return nil, err
	}

	if a.Metrics != nil {
		live, died := int64(0), int64(0)

		for _, record := range ledger.Records {
			if record.Status == plumbing.LineLive {
				live++
			} else {
				died++
			}
		}

		a.Metrics.RecordLedger(ctx, string(plumbing.LineLive), live)
		a.Metrics.RecordLedger(ctx, string(plumbing.LineDied), died)
	}

	return ledger, nil
}

// ingestCommit queues one commit's file changes onto the per-file histories.
// Renames move the history to the new path; binary content evicts the path
// from tracking entirely.
func (a *Analyzer) ingestCommit(histories map[string]*fileHistory, binaries map[string]bool, diff gitlib.CommitDiff) {
	for _, change := range diff.Changes {
		oldBlob := diff.Blobs[change.OldBlob]
		newBlob := diff.Blobs[change.NewBlob]

		if (oldBlob != nil && oldBlob.IsBinary()) || (newBlob != nil && newBlob.IsBinary()) {
			markBinary(histories, binaries, change)

			continue
		}

		if binaries[change.Path] {
			continue
		}

		event := fileEvent{
			sha:  diff.Commit.Sha,
			when: diff.Commit.Timestamp,
			kind: change.Kind,
			path: change.Path,
		}

		if oldBlob != nil {
			event.oldData = oldBlob.Data
		}

		if newBlob != nil {
			event.newData = newBlob.Data
		}

		history := histories[change.Path]

		if change.Kind == plumbing.ChangeRenamed {
			event.oldPath = change.OldPath
			event.pureRename = change.OldBlob == change.NewBlob || bytes.Equal(event.oldData, event.newData)

			if moved, ok := histories[change.OldPath]; ok {
				history = moved

				delete(histories, change.OldPath)
			}
		}

		if history == nil {
			history = &fileHistory{path: change.Path}
		}

		history.path = change.Path

		if history.language == "" && len(event.newData) > 0 {
			history.language = detectLanguage(change.Path, event.newData)
		}

		history.events = append(history.events, event)
		histories[change.Path] = history
	}
}

// markBinary records a binary path and drops any queued history for it.
func markBinary(histories map[string]*fileHistory, binaries map[string]bool, change gitlib.Change) {
	binaries[change.Path] = true

	delete(histories, change.Path)

	if change.OldPath != "" && change.OldPath != change.Path {
		binaries[change.OldPath] = true

		delete(histories, change.OldPath)
	}
}

// replayAll replays every file history on a bounded worker pool and merges
// the per-file ledgers by concatenation.
func (a *Analyzer) replayAll(ctx context.Context, histories map[string]*fileHistory, dates gitlib.DateIndex, ledger *Ledger) error {
	jobs := make(chan *fileHistory)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)

	for range a.Workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for history := range jobs {
				records, untracked, err := a.replayFile(history, dates)

				mu.Lock()

				if err != nil && firstErr == nil {
					firstErr = err
				}

				ledger.Records = append(ledger.Records, records...)
				ledger.Untracked += untracked

				mu.Unlock()

				if a.Metrics != nil {
					for range untracked {
						a.Metrics.RecordUntrackedRemoval(ctx)
					}
				}
			}
		}()
	}

	for _, history := range histories {
		jobs <- history
	}

	close(jobs)
	wg.Wait()

	return firstErr
}

// replayFile replays one file's edit sequence through a tracker.
func (a *Analyzer) replayFile(history *fileHistory, dates gitlib.DateIndex) ([]plumbing.LineRecord, int, error) {
	var tracker *fileTracker

	for _, event := range history.events {
		switch event.kind {
		case plumbing.ChangeAdded:
			if tracker == nil {
				tracker = newFileTracker(event.path, nil)
				tracker.language = history.language
			}

			tracker.appendAll(event.sha, splitLines(event.newData))
		case plumbing.ChangeRemoved:
			if tracker == nil {
				// Deleting a file never seen alive in the window.
				a.Logger.Debug("removal of untracked file", "path", event.path, "sha", event.sha)

				continue
			}

			if err := tracker.deleteAll(event.sha, event.when, dates); err != nil {
				return nil, 0, fmt.Errorf("replay %s: %w", history.path, err)
			}
		case plumbing.ChangeModified, plumbing.ChangeRenamed:
			if tracker == nil {
				seedPath := event.path
				if event.oldPath != "" {
					seedPath = event.oldPath
				}

				tracker = newFileTracker(seedPath, splitLines(event.oldData))
				tracker.language = history.language
			}

			if event.kind == plumbing.ChangeRenamed {
				tracker.rename(event.path)

				if event.pureRename {
					continue
				}
			}

			if err := a.applyEdit(tracker, event, dates); err != nil {
				return nil, 0, fmt.Errorf("replay %s: %w", history.path, err)
			}
		}
	}

	if tracker == nil {
		return nil, 0, nil
	}

	records := tracker.finish()

	if tracker.untracked > 0 {
		a.Logger.Warn("untracked removals during replay",
			"path", history.path, "count", tracker.untracked)
	}

	return records, tracker.untracked, nil
}

// applyEdit diffs the event's blobs and replays the resulting hunks in
// order, threading the position offset between them.
func (a *Analyzer) applyEdit(tracker *fileTracker, event fileEvent, dates gitlib.DateIndex) error {
	hunks := computeHunks(event.sha, event.path, event.oldData, event.newData)

	offset := 0

	for _, hunk := range hunks {
		next, err := tracker.applyHunk(event.sha, event.when, hunk, offset, dates)
		if err != nil {
			return err
		}

		offset = next
	}

	return nil
}
