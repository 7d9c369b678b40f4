// Package framework orchestrates the analysis pipeline: window walk, diff
// extraction, provenance replay, attribution, ply extraction and reporting.
package framework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/reviewfang/internal/attribution"
	"github.com/Sumatoshi-tech/reviewfang/internal/ingest"
	"github.com/Sumatoshi-tech/reviewfang/internal/plies"
	"github.com/Sumatoshi-tech/reviewfang/internal/provenance"
	"github.com/Sumatoshi-tech/reviewfang/internal/report"
	"github.com/Sumatoshi-tech/reviewfang/pkg/config"
	"github.com/Sumatoshi-tech/reviewfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/reviewfang/pkg/observability"
	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// Fatal pipeline conditions. Each is reported with the stage reached and
// the candidate count, so a caller can tell an empty filter from corrupted
// upstream data.
var (
	// ErrNoCommits means the window filter matched no commits.
	ErrNoCommits = errors.New("framework: no commits in analysis window")

	// ErrNoFiles means replay produced no tracked lines.
	ErrNoFiles = errors.New("framework: no trackable files in analysis window")
)

// Result bundles everything a run produced.
type Result struct {
	Summary    report.RunSummary
	Statistics []report.Stat
}

// Runner executes the full pipeline for one configuration.
type Runner struct {
	cfg     *config.Config
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.RunMetrics
}

// NewRunner creates a runner over initialized observability providers.
func NewRunner(cfg *config.Config, providers observability.Providers, metrics *observability.RunMetrics) *Runner {
	return &Runner{
		cfg:     cfg,
		logger:  providers.Logger,
		tracer:  providers.Tracer,
		metrics: metrics,
	}
}

// Run executes every stage in order and persists the outputs.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	ctx, span := r.tracer.Start(ctx, "run")
	defer span.End()

	windowStart, windowEnd, err := r.cfg.Repository.Window()
	if err != nil {
		return nil, err
	}

	commits, shas, dates, err := r.walk(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	prs, events, err := r.ingest(ctx)
	if err != nil {
		return nil, err
	}

	ledger, err := r.replay(ctx, shas, dates)
	if err != nil {
		return nil, err
	}

	table := r.attribute(ctx, commits, prs, windowStart, windowEnd)
	sessions := r.extractPlies(ctx, events)

	inputs := &report.Inputs{
		Ledger:             ledger,
		Attribution:        table,
		Sessions:           sessions,
		LifetimeThresholds: r.cfg.Analysis.LifetimeThresholds,
		LatencyThresholds:  r.cfg.Analysis.LatencyThresholds,
	}

	statistics, err := r.report(ctx, inputs)
	if err != nil {
		return nil, err
	}

	summary := report.Summarize(r.cfg.Repository.Path, inputs, len(prs), time.Since(started))
	summary.WindowStart = windowStart
	summary.WindowEnd = windowEnd

	if err := r.writeSummary(summary); err != nil {
		return nil, err
	}

	return &Result{Summary: summary, Statistics: statistics}, nil
}

// walk resolves the first-parent window commits and the date index. The
// libgit2 handles are released before returning; only plain records, shas
// and timestamps flow further.
func (r *Runner) walk(ctx context.Context, windowStart, windowEnd time.Time) ([]plumbing.Commit, []gitlib.Hash, gitlib.DateIndex, error) {
	_, span := r.tracer.Start(ctx, "walk")
	defer span.End()

	repo, err := gitlib.Open(r.cfg.Repository.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open repository: %w", err)
	}
	defer repo.Free()

	walked, err := repo.FirstParentLog(windowStart, windowEnd)
	if err != nil {
		return nil, nil, nil, err
	}

	r.logger.Info("stage: walk", "commits", len(walked))
	span.SetAttributes(attribute.Int("commits", len(walked)))

	if len(walked) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: 0 candidates after window filter", ErrNoCommits)
	}

	dates := gitlib.BuildDateIndex(walked)
	records := make([]plumbing.Commit, 0, len(walked))
	shas := make([]gitlib.Hash, 0, len(walked))

	for _, commit := range walked {
		records = append(records, commit.Record())
		shas = append(shas, commit.Hash())
		commit.Free()
	}

	return records, shas, dates, nil
}

// ingest loads the PR metadata and timeline streams.
func (r *Runner) ingest(ctx context.Context) ([]plumbing.PullRequest, []plumbing.Event, error) {
	_, span := r.tracer.Start(ctx, "ingest")
	defer span.End()

	loader := ingest.NewLoader(r.cfg.Repository.DefaultBranch, r.logger)

	prs, err := loader.PullRequests(r.cfg.Repository.PRFile)
	if err != nil {
		return nil, nil, err
	}

	events, err := loader.Events(r.cfg.Repository.EventFile)
	if err != nil {
		return nil, nil, err
	}

	r.logger.Info("stage: ingest", "pull_requests", len(prs), "events", len(events))
	span.SetAttributes(attribute.Int("pull_requests", len(prs)), attribute.Int("events", len(events)))

	return prs, events, nil
}

// replay runs the diff pool and the provenance analyzer.
func (r *Runner) replay(ctx context.Context, shas []gitlib.Hash, dates gitlib.DateIndex) (*provenance.Ledger, error) {
	ctx, span := r.tracer.Start(ctx, "replay")
	defer span.End()

	pool := gitlib.NewDiffPool(
		r.cfg.Repository.Path,
		r.cfg.Analysis.DiffWorkers,
		r.cfg.Analysis.CommitBatchSize,
		r.logger,
	)

	analyzer := provenance.NewAnalyzer(r.cfg.Analysis.DiffWorkers, r.logger, r.metrics)

	ledger, err := analyzer.Run(ctx, pool.Run(ctx, shas), dates)
	if err != nil {
		return nil, err
	}

	r.logger.Info("stage: replay",
		"commits", ledger.Commits,
		"failed_diffs", ledger.FailedDiffs,
		"records", len(ledger.Records),
		"binaries", len(ledger.Binaries),
		"untracked_removals", ledger.Untracked,
	)
	span.SetAttributes(attribute.Int("records", len(ledger.Records)))

	if len(ledger.Records) == 0 {
		return nil, fmt.Errorf("%w: %d commits replayed, 0 tracked lines", ErrNoFiles, ledger.Commits)
	}

	return ledger, nil
}

// attribute resolves the review attribution table.
func (r *Runner) attribute(ctx context.Context, commits []plumbing.Commit, prs []plumbing.PullRequest, windowStart, windowEnd time.Time) *attribution.Table {
	ctx, span := r.tracer.Start(ctx, "attribution")
	defer span.End()

	resolver := attribution.NewResolver(windowStart, windowEnd, r.logger, r.metrics)
	table := resolver.Resolve(ctx, commits, prs)

	reviewed := 0

	for _, record := range table.Records {
		if record.Reviewed {
			reviewed++
		}
	}

	r.logger.Info("stage: attribution",
		"commits", len(table.Records), "reviewed", reviewed, "unreviewed", len(table.Records)-reviewed)
	span.SetAttributes(attribute.Int("reviewed", reviewed))

	return table
}

// extractPlies segments PR timelines into sessions.
func (r *Runner) extractPlies(ctx context.Context, events []plumbing.Event) *plies.Result {
	_, span := r.tracer.Start(ctx, "plies")
	defer span.End()

	sessions := plies.NewExtractor(r.logger).Extract(events)

	r.logger.Info("stage: plies",
		"sessions", len(sessions.Sessions), "mean_reply_gap", sessions.MeanReplyGap)
	span.SetAttributes(attribute.Int("sessions", len(sessions.Sessions)))

	return sessions
}

// report computes the named statistics and persists every output stream.
func (r *Runner) report(ctx context.Context, inputs *report.Inputs) ([]report.Stat, error) {
	_, span := r.tracer.Start(ctx, "report")
	defer span.End()

	statistics, err := report.Compute(inputs)
	if err != nil {
		return nil, err
	}

	writer, err := report.NewWriter(r.cfg.Output.Directory, r.cfg.Output.Compress)
	if err != nil {
		return nil, err
	}

	ledgerCount, err := writer.WriteLedger(inputs.Ledger.Records)
	if err != nil {
		return nil, err
	}

	attributionCount, err := writer.WriteAttribution(inputs.Attribution.Records)
	if err != nil {
		return nil, err
	}

	statCount, err := writer.WriteStats(statistics)
	if err != nil {
		return nil, err
	}

	for _, stat := range statistics {
		if curves, ok := stat.Data.([]report.StatusCDF); ok && stat.Name == "lifetime_cdf_by_status" {
			if _, err := writer.WritePlot(curves); err != nil {
				return nil, err
			}
		}
	}

	r.logger.Info("stage: report",
		"ledger_records", ledgerCount,
		"attribution_records", attributionCount,
		"statistics", statCount,
		"directory", r.cfg.Output.Directory,
	)

	return statistics, nil
}

// writeSummary persists the run summary alongside the record streams.
func (r *Runner) writeSummary(summary report.RunSummary) error {
	writer, err := report.NewWriter(r.cfg.Output.Directory, r.cfg.Output.Compress)
	if err != nil {
		return err
	}

	return writer.WriteSummary(summary)
}
