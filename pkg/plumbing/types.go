// Package plumbing holds the record types exchanged between the pipeline
// stages. Commits, pull requests and diff hunks are read-only facts sourced
// externally; ledger and attribution records are derived and append-only.
package plumbing

import "time"

// ChangeKind classifies a file change within a commit.
type ChangeKind int

const (
	// ChangeAdded marks a newly created file.
	ChangeAdded ChangeKind = iota
	// ChangeRemoved marks a deleted file.
	ChangeRemoved
	// ChangeModified marks an edit to an existing file.
	ChangeModified
	// ChangeRenamed marks a path change; OldPath carries the previous name.
	ChangeRenamed
)

// String returns the serialized change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeModified:
		return "modified"
	case ChangeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Commit is the immutable metadata of one observed commit.
type Commit struct {
	Sha       string
	Timestamp time.Time
	Parents   []string
	Committer string
	Message   string
}

// FirstParent returns the sha of the commit's first parent, or "" for a root
// commit.
func (c *Commit) FirstParent() string {
	if len(c.Parents) == 0 {
		return ""
	}

	return c.Parents[0]
}

// IsMerge reports whether the commit has more than one parent.
func (c *Commit) IsMerge() bool {
	return len(c.Parents) > 1
}

// FileChange records one per-file change of a commit. Renames carry the old
// path.
type FileChange struct {
	Sha     string
	Path    string
	OldPath string
	Kind    ChangeKind
}

// DiffHunk is one contiguous edit of a file in a commit. Removed and Added
// hold full line content; a binary file produces no hunks at all (the path
// lands in the binaries set instead).
type DiffHunk struct {
	Sha     string
	Path    string
	OldPos  int // 0-based line index of the hunk in the old file.
	NewPos  int // 0-based line index of the hunk in the new file.
	Removed []string
	Added   []string
}

// LineStatus is the terminal state of a tracked line.
type LineStatus string

const (
	// LineLive marks a line still present at the end of the replay window.
	LineLive LineStatus = "live"
	// LineDied marks a line removed within the window.
	LineDied LineStatus = "died"
)

// LineRecord is one entry of the append-only provenance ledger.
type LineRecord struct {
	Path     string        `json:"path"`
	Language string        `json:"language,omitempty"`
	Birth    string        `json:"birth"`
	Death    string        `json:"death,omitempty"`
	Status   LineStatus    `json:"status"`
	Lifetime time.Duration `json:"lifetime,omitempty"`
}

// PRState is the lifecycle state of a pull request.
type PRState string

const (
	// PROpen marks a pull request still open.
	PROpen PRState = "open"
	// PRClosed marks a pull request closed without merging.
	PRClosed PRState = "closed"
	// PRMerged marks a merged pull request.
	PRMerged PRState = "merged"
)

// PullRequest is the externally sourced metadata of one pull request.
type PullRequest struct {
	Number         int        `json:"number"`
	State          PRState    `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	MergeCommitSha string     `json:"merge_commit_sha,omitempty"`
	HeadRef        string     `json:"head_ref"`
	HeadRepo       string     `json:"head_repo"`
	HumanComments  int        `json:"human_comments"`
}

// AttributionSource names the heuristic that linked a commit to a PR.
type AttributionSource string

const (
	// SourceCommitMessage marks a merge-message or trailing "(#N)" match.
	SourceCommitMessage AttributionSource = "commit_message"
	// SourceAutolink marks a closes/fixes #N annotation match.
	SourceAutolink AttributionSource = "autolink"
	// SourceMergeCommit marks a literal merge-commit-sha match.
	SourceMergeCommit AttributionSource = "merge_commit"
	// SourceCascade marks attribution inherited through an identical
	// (committer, timestamp) equivalence class.
	SourceCascade AttributionSource = "cascade"
)

// ReviewAttribution links one commit to the PR that reviewed it. At most one
// attribution exists per commit.
type ReviewAttribution struct {
	Sha      string            `json:"sha"`
	PRNumber int               `json:"pr"`
	Source   AttributionSource `json:"source"`
}

// EventKind classifies a PR timeline event.
type EventKind string

const (
	// EventComment is a discussion or review comment.
	EventComment EventKind = "comment"
	// EventReview is a review state change (approve, request changes).
	EventReview EventKind = "review"
	// EventCommit is a commit pushed to the PR branch.
	EventCommit EventKind = "commit"
)

// Event is one entry of a PR's chronological timeline.
type Event struct {
	PRNumber  int       `json:"pr"`
	Actor     string    `json:"actor"`
	Role      string    `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"kind"`
}

// Ply is one continuous turn by a single actor within a PR timeline.
// Sequence starts at 0 and increases strictly within the PR.
type Ply struct {
	PRNumber  int       `json:"pr"`
	Actor     string    `json:"actor"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}
