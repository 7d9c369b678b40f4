package provenance

import (
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/reviewfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// liveLine is one currently-live line of a tracked file. An empty birth sha
// marks content that predates the analysis window; such lines keep positions
// consistent but never reach the ledger.
type liveLine struct {
	birth   string
	content string
}

// fileTracker replays the ordered first-parent edit history of a single file
// and emits the lifetime ledger of its lines.
type fileTracker struct {
	path     string
	language string
	lines    []liveLine
	records  []plumbing.LineRecord

	// untracked counts removals that matched no live entry, typically
	// content whose birth predates the window.
	untracked int
}

// newFileTracker starts tracking a file. seed holds the file's content
// before the first in-window edit; seeded lines carry no birth commit.
func newFileTracker(path string, seed []string) *fileTracker {
	tracker := &fileTracker{path: path}

	for _, content := range seed {
		tracker.lines = append(tracker.lines, liveLine{content: content})
	}

	return tracker
}

// appendAll registers every given line as born at sha. Used for file
// creations, where no hunk positions are needed.
func (t *fileTracker) appendAll(sha string, contents []string) {
	for _, content := range contents {
		t.lines = append(t.lines, liveLine{birth: sha, content: content})
	}
}

// applyHunk replays one hunk at commit sha. offset carries the cumulative
// position shift of earlier hunks of the same commit (hunk positions refer
// to the pre-commit file). The returned offset feeds the next hunk.
func (t *fileTracker) applyHunk(sha string, when time.Time, hunk plumbing.DiffHunk, offset int, dates gitlib.DateIndex) (int, error) {
	at := hunk.OldPos + offset

	for _, content := range hunk.Removed {
		if at >= len(t.lines) || t.lines[at].content != content {
			t.untracked++

			if at < len(t.lines) {
				t.lines = append(t.lines[:at], t.lines[at+1:]...)
			}

			continue
		}

		line := t.lines[at]
		t.lines = append(t.lines[:at], t.lines[at+1:]...)

		if line.birth == "" {
			// Pre-window content: positionally tracked, never emitted.
			t.untracked++

			continue
		}

		birthTime, ok := dates[line.birth]
		if !ok {
			return offset, fmt.Errorf("commit %s missing from date index", line.birth)
		}

		t.records = append(t.records, plumbing.LineRecord{
			Path:     t.path,
			Language: t.language,
			Birth:    line.birth,
			Death:    sha,
			Status:   plumbing.LineDied,
			Lifetime: when.Sub(birthTime),
		})
	}

	added := make([]liveLine, len(hunk.Added))
	for i, content := range hunk.Added {
		added[i] = liveLine{birth: sha, content: content}
	}

	if at > len(t.lines) {
		at = len(t.lines)
	}

	t.lines = append(t.lines[:at], append(added, t.lines[at:]...)...)

	return offset + len(hunk.Added) - len(hunk.Removed), nil
}

// deleteAll replays a whole-file deletion at commit sha.
func (t *fileTracker) deleteAll(sha string, when time.Time, dates gitlib.DateIndex) error {
	for _, line := range t.lines {
		if line.birth == "" {
			continue
		}

		birthTime, ok := dates[line.birth]
		if !ok {
			return fmt.Errorf("commit %s missing from date index", line.birth)
		}

		t.records = append(t.records, plumbing.LineRecord{
			Path:     t.path,
			Language: t.language,
			Birth:    line.birth,
			Death:    sha,
			Status:   plumbing.LineDied,
			Lifetime: when.Sub(birthTime),
		})
	}

	t.lines = nil

	return nil
}

// rename carries every live line identity to the new path. A rename is not
// a death.
func (t *fileTracker) rename(newPath string) {
	t.path = newPath
}

// finish emits every line still live at the end of the replay window.
func (t *fileTracker) finish() []plumbing.LineRecord {
	for _, line := range t.lines {
		if line.birth == "" {
			continue
		}

		t.records = append(t.records, plumbing.LineRecord{
			Path:     t.path,
			Language: t.language,
			Birth:    line.birth,
			Status:   plumbing.LineLive,
		})
	}

	return t.records
}
