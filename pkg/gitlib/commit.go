package gitlib

import (
	"fmt"
	"time"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
	repo   *Repository
}

// Hash returns the commit hash.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Committer returns the committer identity as "Name <email>".
func (c *Commit) Committer() string {
	sig := c.commit.Committer()

	return fmt.Sprintf("%s <%s>", sig.Name, sig.Email)
}

// When returns the committer timestamp.
func (c *Commit) When() time.Time {
	return c.commit.Committer().When
}

// Message returns the full commit message.
func (c *Commit) Message() string {
	return c.commit.Message()
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int {
	return int(c.commit.ParentCount())
}

// ParentHash returns the hash of the nth parent.
func (c *Commit) ParentHash(n int) Hash {
	return HashFromOid(c.commit.ParentId(uint(n)))
}

// Free releases the commit resources.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}

// Record converts the commit to its immutable metadata record.
func (c *Commit) Record() plumbing.Commit {
	parents := make([]string, c.NumParents())
	for i := range parents {
		parents[i] = c.ParentHash(i).String()
	}

	return plumbing.Commit{
		Sha:       c.Hash().String(),
		Timestamp: c.When(),
		Parents:   parents,
		Committer: c.Committer(),
		Message:   c.Message(),
	}
}
