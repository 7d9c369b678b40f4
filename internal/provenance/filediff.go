package provenance

import (
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// defaultDiffTimeout bounds a single line-diff computation.
const defaultDiffTimeout = time.Second

// computeHunks computes the line-level hunks between two text blobs. Line
// positions are 0-based indices into the old and new content respectively.
// Binary content never reaches this function; it is filtered at ingest.
func computeHunks(sha, path string, oldData, newData []byte) []plumbing.DiffHunk {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = defaultDiffTimeout

	src, dst, lines := dmp.DiffLinesToRunes(string(oldData), string(newData))
	diffs := dmp.DiffCleanupMerge(dmp.DiffCleanupSemanticLossless(dmp.DiffMainRunes(src, dst, false)))

	return diffsToHunks(sha, path, diffs, lines)
}

// diffsToHunks folds a rune-encoded diff sequence into contiguous hunks.
// Consecutive delete and insert runs merge into one hunk; an equal run
// flushes the pending hunk and advances both cursors.
func diffsToHunks(sha, path string, diffs []diffmatchpatch.Diff, lineIndex []string) []plumbing.DiffHunk {
	var (
		hunks   []plumbing.DiffHunk
		pending *plumbing.DiffHunk
	)

	oldPos, newPos := 0, 0

	flush := func() {
		if pending != nil {
			hunks = append(hunks, *pending)
			pending = nil
		}
	}

	open := func() *plumbing.DiffHunk {
		if pending == nil {
			pending = &plumbing.DiffHunk{Sha: sha, Path: path, OldPos: oldPos, NewPos: newPos}
		}

		return pending
	}

	for _, diff := range diffs {
		content := decodeLines(diff.Text, lineIndex)

		switch diff.Type {
		case diffmatchpatch.DiffEqual:
			flush()

			oldPos += len(content)
			newPos += len(content)
		case diffmatchpatch.DiffDelete:
			hunk := open()
			hunk.Removed = append(hunk.Removed, content...)
			oldPos += len(content)
		case diffmatchpatch.DiffInsert:
			hunk := open()
			hunk.Added = append(hunk.Added, content...)
			newPos += len(content)
		}
	}

	flush()

	return hunks
}

// decodeLines maps a rune-encoded diff text back to the source lines,
// stripping the trailing newline each encoded line carries.
func decodeLines(text string, lineIndex []string) []string {
	runes := []rune(text)
	decoded := make([]string, 0, len(runes))

	for _, r := range runes {
		line := lineIndex[r]
		if len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}

		decoded = append(decoded, line)
	}

	return decoded
}

// splitLines splits blob content into lines without the trailing newline.
// Empty content yields nil.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}

	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}
