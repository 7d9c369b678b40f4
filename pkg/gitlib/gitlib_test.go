package gitlib_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/reviewfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// testRepo wraps a scratch repository for integration testing.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
	clock  time.Time
}

// newTestRepo creates a repository in a temp directory.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{
		t:      t,
		path:   dir,
		native: repo,
		clock:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// createFile writes a file into the working directory.
func (tr *testRepo) createFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)
	dir := filepath.Dir(path)

	if dir != tr.path {
		err := os.MkdirAll(dir, 0o755)
		require.NoError(tr.t, err)
	}

	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(tr.t, err)
}

// removeFile deletes a file from the working directory and the index.
func (tr *testRepo) removeFile(name string) {
	tr.t.Helper()

	err := os.Remove(filepath.Join(tr.path, name))
	require.NoError(tr.t, err)

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	err = index.RemoveByPath(name)
	require.NoError(tr.t, err)

	err = index.Write()
	require.NoError(tr.t, err)
}

// commit stages every file and commits it. Each commit advances the
// repository clock by one hour so timestamps are strictly increasing.
func (tr *testRepo) commit(message string) gitlib.Hash {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	err = index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil)
	require.NoError(tr.t, err)

	err = index.Write()
	require.NoError(tr.t, err)

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	tr.clock = tr.clock.Add(time.Hour)

	sig := &git2go.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  tr.clock,
	}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		defer headCommit.Free()

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	return gitlib.HashFromOid(oid)
}

// open returns a gitlib handle on the test repository.
func (tr *testRepo) open() *gitlib.Repository {
	tr.t.Helper()

	repo, err := gitlib.Open(tr.path)
	require.NoError(tr.t, err)

	tr.t.Cleanup(repo.Free)

	return repo
}

func TestFirstParentLogOldestFirst(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("a.txt", "one\n")
	first := tr.commit("first")

	tr.createFile("a.txt", "one\ntwo\n")
	second := tr.commit("second")

	tr.createFile("b.txt", "three\n")
	third := tr.commit("third")

	repo := tr.open()

	commits, err := repo.FirstParentLog(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, commits, 3)

	assert.Equal(t, first, commits[0].Hash())
	assert.Equal(t, second, commits[1].Hash())
	assert.Equal(t, third, commits[2].Hash())

	for i := 1; i < len(commits); i++ {
		assert.True(t, commits[i].When().After(commits[i-1].When()))
	}
}

func TestFirstParentLogWindow(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("a.txt", "one\n")
	tr.commit("first")

	tr.createFile("a.txt", "one\ntwo\n")
	second := tr.commit("second")

	tr.createFile("b.txt", "three\n")
	tr.commit("third")

	repo := tr.open()

	all, err := repo.FirstParentLog(time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	start := all[1].When().Add(-time.Minute)
	end := all[1].When().Add(time.Minute)

	windowed, err := repo.FirstParentLog(start, end)
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, second, windowed[0].Hash())
}

func TestBuildDateIndex(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("a.txt", "one\n")
	tr.commit("first")

	tr.createFile("a.txt", "one\ntwo\n")
	tr.commit("second")

	repo := tr.open()

	commits, err := repo.FirstParentLog(time.Time{}, time.Time{})
	require.NoError(t, err)

	index := gitlib.BuildDateIndex(commits)
	require.Len(t, index, 2)

	for _, commit := range commits {
		when, ok := index[commit.Hash().String()]
		require.True(t, ok)
		assert.Equal(t, commit.When(), when)
	}
}

func TestFirstParentChanges(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("keep.txt", "alpha\n")
	tr.createFile("gone.txt", "beta\n")
	tr.commit("base")

	tr.createFile("keep.txt", "alpha\ngamma\n")
	tr.createFile("new.txt", "delta\n")
	tr.removeFile("gone.txt")
	sha := tr.commit("mutate")

	repo := tr.open()

	commit, err := repo.LookupCommit(sha)
	require.NoError(t, err)

	defer commit.Free()

	changes, err := repo.FirstParentChanges(commit)
	require.NoError(t, err)

	byPath := make(map[string]gitlib.Change, len(changes))
	for _, change := range changes {
		byPath[change.Path] = change
	}

	require.Len(t, byPath, 3)

	assert.Equal(t, plumbing.ChangeAdded, byPath["new.txt"].Kind)
	assert.True(t, byPath["new.txt"].OldBlob.IsZero())
	assert.False(t, byPath["new.txt"].NewBlob.IsZero())

	assert.Equal(t, plumbing.ChangeModified, byPath["keep.txt"].Kind)
	assert.False(t, byPath["keep.txt"].OldBlob.IsZero())
	assert.False(t, byPath["keep.txt"].NewBlob.IsZero())

	assert.Equal(t, plumbing.ChangeRemoved, byPath["gone.txt"].Kind)
	assert.False(t, byPath["gone.txt"].OldBlob.IsZero())
	assert.True(t, byPath["gone.txt"].NewBlob.IsZero())
}

func TestFirstParentChangesRootCommit(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("a.txt", "one\n")
	sha := tr.commit("first")

	repo := tr.open()

	commit, err := repo.LookupCommit(sha)
	require.NoError(t, err)

	defer commit.Free()

	changes, err := repo.FirstParentChanges(commit)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	assert.Equal(t, plumbing.ChangeAdded, changes[0].Kind)
	assert.Equal(t, "a.txt", changes[0].Path)
}

func TestFirstParentChangesRename(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("old_name.txt", "line one\nline two\nline three\nline four\n")
	tr.commit("base")

	tr.createFile("new_name.txt", "line one\nline two\nline three\nline four\n")
	tr.removeFile("old_name.txt")
	sha := tr.commit("rename")

	repo := tr.open()

	commit, err := repo.LookupCommit(sha)
	require.NoError(t, err)

	defer commit.Free()

	changes, err := repo.FirstParentChanges(commit)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	assert.Equal(t, plumbing.ChangeRenamed, changes[0].Kind)
	assert.Equal(t, "old_name.txt", changes[0].OldPath)
	assert.Equal(t, "new_name.txt", changes[0].Path)
	assert.Equal(t, changes[0].OldBlob, changes[0].NewBlob)
}

func TestCachedBlobLines(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("a.txt", "one\ntwo\nthree\n")
	sha := tr.commit("first")

	repo := tr.open()

	commit, err := repo.LookupCommit(sha)
	require.NoError(t, err)

	defer commit.Free()

	changes, err := repo.FirstParentChanges(commit)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	blob, err := repo.LookupBlob(changes[0].NewBlob)
	require.NoError(t, err)

	lines, err := blob.Lines()
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
	assert.False(t, blob.IsBinary())
}

func TestCachedBlobBinary(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("blob.bin", "data\x00more")
	sha := tr.commit("binary")

	repo := tr.open()

	commit, err := repo.LookupCommit(sha)
	require.NoError(t, err)

	defer commit.Free()

	changes, err := repo.FirstParentChanges(commit)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	blob, err := repo.LookupBlob(changes[0].NewBlob)
	require.NoError(t, err)
	assert.True(t, blob.IsBinary())

	_, err = blob.Lines()
	require.ErrorIs(t, err, gitlib.ErrBinary)
}

func TestDiffPoolPreservesOrder(t *testing.T) {
	tr := newTestRepo(t)

	var shas []gitlib.Hash

	tr.createFile("a.txt", "0\n")
	shas = append(shas, tr.commit("c0"))

	for i := 1; i < 10; i++ {
		tr.createFile("a.txt", fmt.Sprintf("revision %d\n", i))
		shas = append(shas, tr.commit(fmt.Sprintf("c%d", i)))
	}

	pool := gitlib.NewDiffPool(tr.path, 3, 2, nil)

	var got []gitlib.CommitDiff
	for diff := range pool.Run(context.Background(), shas) {
		got = append(got, diff)
	}

	require.Len(t, got, len(shas))

	for i, diff := range got {
		require.NoError(t, diff.Err)
		assert.Equal(t, shas[i].String(), diff.Commit.Sha)
		require.Len(t, diff.Changes, 1)
		assert.Equal(t, "a.txt", diff.Changes[0].Path)

		for _, change := range diff.Changes {
			if !change.NewBlob.IsZero() {
				_, ok := diff.Blobs[change.NewBlob]
				assert.True(t, ok)
			}
		}
	}
}

func TestDiffPoolBadCommit(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("a.txt", "one\n")
	good := tr.commit("good")

	var bogus gitlib.Hash
	bogus[0] = 0xde
	bogus[1] = 0xad

	pool := gitlib.NewDiffPool(tr.path, 1, 4, nil)

	var got []gitlib.CommitDiff
	for diff := range pool.Run(context.Background(), []gitlib.Hash{good, bogus}) {
		got = append(got, diff)
	}

	require.Len(t, got, 2)
	require.NoError(t, got[0].Err)
	require.Error(t, got[1].Err)
	assert.Equal(t, bogus.String(), got[1].Commit.Sha)
}
