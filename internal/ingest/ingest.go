// Package ingest loads the externally collected PR metadata and timeline
// event streams. Records arrive as JSON lines, are validated against a
// schema before use, and leave this package pre-filtered (default-branch
// self-merges removed) and chronologically sorted per PR.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/reviewfang/pkg/persist"
	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// ErrNoPullRequests is returned when the PR stream is empty after filtering.
var ErrNoPullRequests = errors.New("ingest: no pull requests after filtering")

// Loader reads and filters the external input streams.
type Loader struct {
	// DefaultBranch is the repository's default branch; merges of that
	// branch into itself are excluded as not requiring review.
	DefaultBranch string

	Logger *slog.Logger
}

// NewLoader creates a loader for the given default branch.
func NewLoader(defaultBranch string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{DefaultBranch: defaultBranch, Logger: logger}
}

// PullRequests loads the PR metadata stream, drops records that fail schema
// validation and filters out default-branch self-merges.
func (l *Loader) PullRequests(path string) ([]plumbing.PullRequest, error) {
	prs, err := readValidated[plumbing.PullRequest](path, pullRequestSchema, l.Logger)
	if err != nil {
		return nil, fmt.Errorf("load pull requests: %w", err)
	}

	filtered := make([]plumbing.PullRequest, 0, len(prs))

	for _, pr := range prs {
		if l.isSelfMerge(&pr) {
			l.Logger.Debug("excluding self-merge PR", "pr", pr.Number, "head_ref", pr.HeadRef)

			continue
		}

		filtered = append(filtered, pr)
	}

	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: %d records read", ErrNoPullRequests, len(prs))
	}

	return filtered, nil
}

// Events loads the PR timeline stream and sorts it chronologically within
// each PR, which the ply extractor depends on.
func (l *Loader) Events(path string) ([]plumbing.Event, error) {
	events, err := readValidated[plumbing.Event](path, eventSchema, l.Logger)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].PRNumber != events[j].PRNumber {
			return events[i].PRNumber < events[j].PRNumber
		}

		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events, nil
}

// isSelfMerge reports whether a PR merges the default branch of the
// repository into itself.
func (l *Loader) isSelfMerge(pr *plumbing.PullRequest) bool {
	return pr.HeadRef == l.DefaultBranch && pr.HeadRepo == ""
}

// readValidated reads a JSONL stream and re-validates each record against
// the schema. Invalid records are logged and dropped, not fatal.
func readValidated[T any](path, schema string, logger *slog.Logger) ([]T, error) {
	records, err := persist.ReadStream[T](path)
	if err != nil {
		return nil, err
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	valid := make([]T, 0, len(records))

	for i, record := range records {
		raw, err := json.Marshal(record)
		if err != nil {
			logger.Warn("dropping unmarshalable record", "path", path, "index", i, "error", err)

			continue
		}

		result, err := compiled.Validate(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			logger.Warn("dropping unvalidatable record", "path", path, "index", i, "error", err)

			continue
		}

		if !result.Valid() {
			logger.Warn("dropping invalid record",
				"path", path, "index", i, "violation", result.Errors()[0].String())

			continue
		}

		valid = append(valid, record)
	}

	return valid, nil
}
