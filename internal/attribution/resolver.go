// Package attribution labels every window commit as reviewed or unreviewed.
// Direct linkage runs an ordered rule table over commit messages, then a
// literal merge-commit sha match; remaining commits may inherit through the
// (committer, timestamp) cascade, which captures rebase and cherry-pick
// duplicates of an already-reviewed change.
package attribution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/reviewfang/pkg/observability"
	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// Record is one attribution table row. Exactly one record exists per window
// commit; reviewed and unreviewed records partition the window.
type Record struct {
	Sha         string                     `json:"sha"`
	Reviewed    bool                       `json:"reviewed"`
	PRNumber    int                        `json:"pr,omitempty"`
	Source      plumbing.AttributionSource `json:"source,omitempty"`
	ZeroComment bool                       `json:"zero_comment,omitempty"`
}

// Table is the resolved attribution of one analysis window, in commit order.
type Table struct {
	Records []Record

	// BySha indexes the reviewed records.
	BySha map[string]plumbing.ReviewAttribution
}

// Resolver links window commits to the pull requests that reviewed them.
type Resolver struct {
	Rules   []LinkRule
	Logger  *slog.Logger
	Metrics *observability.RunMetrics

	windowStart time.Time
	windowEnd   time.Time
}

// NewResolver creates a resolver over the given analysis window. Zero
// bounds leave the corresponding side open.
func NewResolver(windowStart, windowEnd time.Time, logger *slog.Logger, metrics *observability.RunMetrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		Rules:       DefaultRules(),
		Logger:      logger,
		Metrics:     metrics,
		windowStart: windowStart,
		windowEnd:   windowEnd,
	}
}

// Resolve produces the attribution table for the window's commits. The PR
// set is expected to be pre-filtered of default-branch self-merges.
func (r *Resolver) Resolve(ctx context.Context, commits []plumbing.Commit, prs []plumbing.PullRequest) *Table {
	byNumber := make(map[int]*plumbing.PullRequest, len(prs))
	byMergeSha := make(map[string]*plumbing.PullRequest)

	for i := range prs {
		pr := &prs[i]
		byNumber[pr.Number] = pr

		if pr.MergeCommitSha != "" {
			byMergeSha[pr.MergeCommitSha] = pr
		}
	}

	direct := make(map[string]plumbing.ReviewAttribution, len(commits))

	for i := range commits {
		commit := &commits[i]

		if attr, ok := r.resolveDirect(commit, byNumber, byMergeSha); ok {
			direct[commit.Sha] = attr
		}
	}

	resolved := r.cascade(commits, direct)

	return r.buildTable(ctx, commits, resolved, byNumber)
}

// resolveDirect runs the rule table and the merge-sha match for one commit.
// A rule's tentative PR reference is discarded when the PR fails the window
// filter; later rules still get a chance.
func (r *Resolver) resolveDirect(commit *plumbing.Commit, byNumber map[int]*plumbing.PullRequest, byMergeSha map[string]*plumbing.PullRequest) (plumbing.ReviewAttribution, bool) {
	for i := range r.Rules {
		rule := &r.Rules[i]

		number, ok := rule.Match(commit.Message)
		if !ok {
			continue
		}

		pr, known := byNumber[number]
		if !known || !r.inWindow(pr) {
			r.Logger.Debug("tentative PR reference rejected",
				"sha", commit.Sha, "rule", rule.Name, "pr", number)

			continue
		}

		return plumbing.ReviewAttribution{Sha: commit.Sha, PRNumber: number, Source: rule.Source}, true
	}

	if pr, ok := byMergeSha[commit.Sha]; ok && r.inWindow(pr) {
		return plumbing.ReviewAttribution{Sha: commit.Sha, PRNumber: pr.Number, Source: plumbing.SourceMergeCommit}, true
	}

	return plumbing.ReviewAttribution{}, false
}

// inWindow reports whether a PR was created or closed inside the analysis
// window.
func (r *Resolver) inWindow(pr *plumbing.PullRequest) bool {
	if r.contains(pr.CreatedAt) {
		return true
	}

	return pr.ClosedAt != nil && r.contains(*pr.ClosedAt)
}

func (r *Resolver) contains(when time.Time) bool {
	if !r.windowStart.IsZero() && when.Before(r.windowStart) {
		return false
	}

	return r.windowEnd.IsZero() || !when.After(r.windowEnd)
}

// cascadeKey is the equivalence class key: identical committer identity and
// commit timestamp. Cascade never crosses classes.
func cascadeKey(commit *plumbing.Commit) string {
	return fmt.Sprintf("%s\x00%d", commit.Committer, commit.Timestamp.UnixNano())
}

// cascade lets unattributed commits inherit the PR of a directly attributed
// commit in their equivalence class. Only direct attributions seed a class;
// a cascade entry therefore always references a non-cascade source.
func (r *Resolver) cascade(commits []plumbing.Commit, direct map[string]plumbing.ReviewAttribution) map[string]plumbing.ReviewAttribution {
	seeds := make(map[string]plumbing.ReviewAttribution)

	for i := range commits {
		commit := &commits[i]

		attr, ok := direct[commit.Sha]
		if !ok {
			continue
		}

		key := cascadeKey(commit)
		if _, taken := seeds[key]; !taken {
			seeds[key] = attr
		}
	}

	resolved := make(map[string]plumbing.ReviewAttribution, len(direct))

	for i := range commits {
		commit := &commits[i]

		if attr, ok := direct[commit.Sha]; ok {
			resolved[commit.Sha] = attr

			continue
		}

		seed, ok := seeds[cascadeKey(commit)]
		if !ok {
			continue
		}

		resolved[commit.Sha] = plumbing.ReviewAttribution{
			Sha:      commit.Sha,
			PRNumber: seed.PRNumber,
			Source:   plumbing.SourceCascade,
		}
	}

	return resolved
}

// buildTable materializes one record per window commit, in input order,
// with the zero-comment split applied to reviewed commits.
func (r *Resolver) buildTable(ctx context.Context, commits []plumbing.Commit, resolved map[string]plumbing.ReviewAttribution, byNumber map[int]*plumbing.PullRequest) *Table {
	table := &Table{
		Records: make([]Record, 0, len(commits)),
		BySha:   resolved,
	}

	counts := make(map[plumbing.AttributionSource]int64)

	for i := range commits {
		commit := &commits[i]

		attr, ok := resolved[commit.Sha]
		if !ok {
			table.Records = append(table.Records, Record{Sha: commit.Sha})

			continue
		}

		record := Record{
			Sha:      commit.Sha,
			Reviewed: true,
			PRNumber: attr.PRNumber,
			Source:   attr.Source,
		}

		if pr, known := byNumber[attr.PRNumber]; known {
			record.ZeroComment = pr.HumanComments == 0
		}

		counts[attr.Source]++

		table.Records = append(table.Records, record)
	}

	if r.Metrics != nil {
		for source, n := range counts {
			r.Metrics.RecordAttributions(ctx, string(source), n)
		}
	}

	return table
}
