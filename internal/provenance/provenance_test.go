package provenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/reviewfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// diffBuilder assembles synthetic commit diffs with fake blob hashes.
type diffBuilder struct {
	diff    gitlib.CommitDiff
	nextOid byte
}

func newDiff(sha string, when time.Time) *diffBuilder {
	return &diffBuilder{
		diff: gitlib.CommitDiff{
			Commit: plumbing.Commit{Sha: sha, Timestamp: when},
			Blobs:  make(map[gitlib.Hash]*gitlib.CachedBlob),
		},
		nextOid: 1,
	}
}

func (b *diffBuilder) blob(content string) gitlib.Hash {
	var hash gitlib.Hash

	hash[0] = b.nextOid
	b.nextOid++

	b.diff.Blobs[hash] = &gitlib.CachedBlob{Data: []byte(content)}

	return hash
}

func (b *diffBuilder) add(path, content string) *diffBuilder {
	b.diff.Changes = append(b.diff.Changes, gitlib.Change{
		Kind: plumbing.ChangeAdded, Path: path, NewBlob: b.blob(content),
	})

	return b
}

func (b *diffBuilder) modify(path, oldContent, newContent string) *diffBuilder {
	b.diff.Changes = append(b.diff.Changes, gitlib.Change{
		Kind: plumbing.ChangeModified, Path: path,
		OldBlob: b.blob(oldContent), NewBlob: b.blob(newContent),
	})

	return b
}

func (b *diffBuilder) remove(path, oldContent string) *diffBuilder {
	b.diff.Changes = append(b.diff.Changes, gitlib.Change{
		Kind: plumbing.ChangeRemoved, Path: path, OldBlob: b.blob(oldContent),
	})

	return b
}

func (b *diffBuilder) rename(oldPath, path, content string) *diffBuilder {
	hash := b.blob(content)
	b.diff.Changes = append(b.diff.Changes, gitlib.Change{
		Kind: plumbing.ChangeRenamed, Path: path, OldPath: oldPath,
		OldBlob: hash, NewBlob: hash,
	})

	return b
}

func stream(diffs ...*diffBuilder) (<-chan gitlib.CommitDiff, gitlib.DateIndex) {
	ch := make(chan gitlib.CommitDiff, len(diffs))
	dates := make(gitlib.DateIndex)

	for _, b := range diffs {
		ch <- b.diff
		dates[b.diff.Commit.Sha] = b.diff.Commit.Timestamp
	}

	close(ch)

	return ch, dates
}

func runAnalyzer(t *testing.T, diffs ...*diffBuilder) *Ledger {
	t.Helper()

	ch, dates := stream(diffs...)

	ledger, err := NewAnalyzer(2, nil, nil).Run(context.Background(), ch, dates)
	require.NoError(t, err)

	return ledger
}

func recordsByStatus(ledger *Ledger, status plumbing.LineStatus) []plumbing.LineRecord {
	var out []plumbing.LineRecord

	for _, record := range ledger.Records {
		if record.Status == status {
			out = append(out, record)
		}
	}

	return out
}

func TestLineAddedThenRemoved(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(48 * time.Hour)

	ledger := runAnalyzer(t,
		newDiff("c1", t0).add("f.go", "keep\ndoomed\n"),
		newDiff("c2", t1).modify("f.go", "keep\ndoomed\n", "keep\n"),
	)

	died := recordsByStatus(ledger, plumbing.LineDied)
	require.Len(t, died, 1)
	assert.Equal(t, "f.go", died[0].Path)
	assert.Equal(t, "c1", died[0].Birth)
	assert.Equal(t, "c2", died[0].Death)
	assert.Equal(t, 48*time.Hour, died[0].Lifetime)

	live := recordsByStatus(ledger, plumbing.LineLive)
	require.Len(t, live, 1)
	assert.Equal(t, "c1", live[0].Birth)
	assert.Empty(t, live[0].Death)
}

func TestBirthBeforeDeath(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ledger := runAnalyzer(t,
		newDiff("c1", t0).add("f.go", "a\nb\nc\n"),
		newDiff("c2", t0.Add(time.Hour)).modify("f.go", "a\nb\nc\n", "a\nc\n"),
		newDiff("c3", t0.Add(2*time.Hour)).modify("f.go", "a\nc\n", "c\n"),
	)

	for _, record := range recordsByStatus(ledger, plumbing.LineDied) {
		assert.GreaterOrEqual(t, record.Lifetime, time.Duration(0))
	}

	require.Len(t, recordsByStatus(ledger, plumbing.LineDied), 2)
	require.Len(t, recordsByStatus(ledger, plumbing.LineLive), 1)
}

func TestPureRenameIsNotDeath(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ledger := runAnalyzer(t,
		newDiff("c1", t0).add("old.go", "a\nb\n"),
		newDiff("c2", t0.Add(time.Hour)).rename("old.go", "new.go", "a\nb\n"),
	)

	require.Empty(t, recordsByStatus(ledger, plumbing.LineDied))

	live := recordsByStatus(ledger, plumbing.LineLive)
	require.Len(t, live, 2)

	for _, record := range live {
		assert.Equal(t, "new.go", record.Path)
		assert.Equal(t, "c1", record.Birth)
	}
}

func TestBinaryFilesExcluded(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ledger := runAnalyzer(t,
		newDiff("c1", t0).add("img.png", "\x89PNG\x00data"),
	)

	assert.Empty(t, ledger.Records)
	assert.True(t, ledger.Binaries["img.png"])
}

func TestPreWindowContentNeverEmitted(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	// The file is first seen as a modification: its prior content
	// predates the window and must stay out of the ledger.
	ledger := runAnalyzer(t,
		newDiff("c1", t0).modify("f.go", "ancient\nrelic\n", "ancient\nfresh\n"),
	)

	died := recordsByStatus(ledger, plumbing.LineDied)
	assert.Empty(t, died)
	assert.Equal(t, 1, ledger.Untracked)

	live := recordsByStatus(ledger, plumbing.LineLive)
	require.Len(t, live, 1)
	assert.Equal(t, "c1", live[0].Birth)
}

func TestWholeFileDeletion(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ledger := runAnalyzer(t,
		newDiff("c1", t0).add("f.go", "a\nb\n"),
		newDiff("c2", t0.Add(time.Hour)).remove("f.go", "a\nb\n"),
	)

	died := recordsByStatus(ledger, plumbing.LineDied)
	require.Len(t, died, 2)

	for _, record := range died {
		assert.Equal(t, "c2", record.Death)
		assert.Equal(t, time.Hour, record.Lifetime)
	}

	assert.Empty(t, recordsByStatus(ledger, plumbing.LineLive))
}

func TestFailedDiffSkipped(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	good := newDiff("c1", t0).add("f.go", "a\n")

	ch := make(chan gitlib.CommitDiff, 2)
	ch <- good.diff
	ch <- gitlib.CommitDiff{Commit: plumbing.Commit{Sha: "c2"}, Err: assert.AnError}
	close(ch)

	dates := gitlib.DateIndex{"c1": t0}

	ledger, err := NewAnalyzer(1, nil, nil).Run(context.Background(), ch, dates)
	require.NoError(t, err)

	assert.Equal(t, 1, ledger.FailedDiffs)
	assert.Equal(t, 1, ledger.Commits)
	require.Len(t, ledger.Records, 1)
}

func TestMissingDateIndexFatal(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	ch := make(chan gitlib.CommitDiff, 2)
	ch <- newDiff("c1", t0).add("f.go", "a\n").diff
	ch <- newDiff("c2", t0.Add(time.Hour)).modify("f.go", "a\n", "").diff
	close(ch)

	// c1 absent from the index: its lifetime cannot be computed.
	dates := gitlib.DateIndex{"c2": t0.Add(time.Hour)}

	_, err := NewAnalyzer(1, nil, nil).Run(context.Background(), ch, dates)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "date index")
}

func TestComputeHunksPositions(t *testing.T) {
	t.Parallel()

	oldData := []byte("a\nb\nc\nd\n")
	newData := []byte("a\nx\nc\nd\ne\n")

	hunks := computeHunks("sha", "f.go", oldData, newData)
	require.Len(t, hunks, 2)

	assert.Equal(t, 1, hunks[0].OldPos)
	assert.Equal(t, []string{"b"}, hunks[0].Removed)
	assert.Equal(t, []string{"x"}, hunks[0].Added)

	assert.Equal(t, 4, hunks[1].OldPos)
	assert.Empty(t, hunks[1].Removed)
	assert.Equal(t, []string{"e"}, hunks[1].Added)
}

func TestSplitLines(t *testing.T) {
	t.Parallel()

	assert.Nil(t, splitLines(nil))
	assert.Equal(t, []string{"a", "b"}, splitLines([]byte("a\nb\n")))
	assert.Equal(t, []string{"a", "b"}, splitLines([]byte("a\nb")))
	assert.Equal(t, []string{""}, splitLines([]byte("\n")))
}
