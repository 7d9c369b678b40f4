package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// Change is one per-file change of a commit against its first parent,
// carrying the blob hashes needed to load content for line diffing.
type Change struct {
	Kind    plumbing.ChangeKind
	Path    string
	OldPath string
	OldBlob Hash
	NewBlob Hash
}

// FileChange converts the change to its metadata record for the given
// commit.
func (c *Change) FileChange(sha string) plumbing.FileChange {
	return plumbing.FileChange{
		Sha:     sha,
		Path:    c.Path,
		OldPath: c.OldPath,
		Kind:    c.Kind,
	}
}

// FirstParentChanges diffs the commit against its first parent (or the empty
// tree for a root commit) with rename detection. Merge commits are diffed
// against the first parent only, so content arriving via another parent is
// treated as already present upstream.
func (r *Repository) FirstParentChanges(commit *Commit) ([]Change, error) {
	newTree, err := commit.commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get commit tree: %w", err)
	}
	defer newTree.Free()

	var oldTree *git2go.Tree

	if commit.NumParents() > 0 {
		parent := commit.commit.Parent(0)
		if parent == nil {
			return nil, fmt.Errorf("lookup first parent of %s: not found", commit.Hash())
		}
		defer parent.Free()

		oldTree, err = parent.Tree()
		if err != nil {
			return nil, fmt.Errorf("get parent tree: %w", err)
		}
		defer oldTree.Free()
	}

	diff, err := r.diffTrees(oldTree, newTree)
	if err != nil {
		return nil, err
	}
	defer func() { _ = diff.Free() }()

	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("get num deltas: %w", err)
	}

	changes := make([]Change, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			continue
		}

		change, ok := deltaToChange(delta)
		if ok {
			changes = append(changes, change)
		}
	}

	return changes, nil
}

func deltaToChange(delta git2go.DiffDelta) (Change, bool) {
	switch delta.Status {
	case git2go.DeltaAdded:
		return Change{
			Kind:    plumbing.ChangeAdded,
			Path:    delta.NewFile.Path,
			NewBlob: HashFromOid(delta.NewFile.Oid),
		}, true
	case git2go.DeltaDeleted:
		return Change{
			Kind:    plumbing.ChangeRemoved,
			Path:    delta.OldFile.Path,
			OldBlob: HashFromOid(delta.OldFile.Oid),
		}, true
	case git2go.DeltaModified:
		return Change{
			Kind:    plumbing.ChangeModified,
			Path:    delta.NewFile.Path,
			OldBlob: HashFromOid(delta.OldFile.Oid),
			NewBlob: HashFromOid(delta.NewFile.Oid),
		}, true
	case git2go.DeltaRenamed, git2go.DeltaCopied:
		return Change{
			Kind:    plumbing.ChangeRenamed,
			Path:    delta.NewFile.Path,
			OldPath: delta.OldFile.Path,
			OldBlob: HashFromOid(delta.OldFile.Oid),
			NewBlob: HashFromOid(delta.NewFile.Oid),
		}, true
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaTypeChange, git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return Change{}, false
	default:
		return Change{}, false
	}
}
