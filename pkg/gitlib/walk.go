package gitlib

import (
	"fmt"
	"time"

	git2go "github.com/libgit2/git2go/v34"
)

// FirstParentLog walks the first-parent chain from HEAD and returns the
// commits whose committer timestamp falls inside [start, end], ordered
// oldest first. Zero bounds leave the corresponding side open.
func (r *Repository) FirstParentLog(start, end time.Time) ([]*Commit, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}
	defer walk.Free()

	headRef, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}
	defer headRef.Free()

	err = walk.Push(headRef.Target())
	if err != nil {
		return nil, fmt.Errorf("push HEAD to revwalk: %w", err)
	}

	// Reverse topological order: older commits replay before newer ones.
	walk.Sorting(git2go.SortTopological | git2go.SortReverse)
	walk.SimplifyFirstParent()

	var commits []*Commit

	err = walk.Iterate(func(raw *git2go.Commit) bool {
		commit := &Commit{commit: raw, repo: r}
		when := commit.When()

		if (!start.IsZero() && when.Before(start)) || (!end.IsZero() && when.After(end)) {
			commit.Free()

			return true
		}

		commits = append(commits, commit)

		return true
	})
	if err != nil {
		return nil, fmt.Errorf("revwalk iterate: %w", err)
	}

	return commits, nil
}

// DateIndex maps commit shas to their committer timestamps. Every lifetime
// computation requires a hit; a miss is a fatal condition surfaced by the
// caller.
type DateIndex map[string]time.Time

// BuildDateIndex collects the timestamp of every given commit.
func BuildDateIndex(commits []*Commit) DateIndex {
	index := make(DateIndex, len(commits))

	for _, commit := range commits {
		index[commit.Hash().String()] = commit.When()
	}

	return index
}
