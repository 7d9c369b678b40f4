package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCommitsTotal           = "reviewfang.replay.commits.total"
	metricDiffFailuresTotal      = "reviewfang.replay.diff_failures.total"
	metricUntrackedRemovalsTotal = "reviewfang.replay.untracked_removals.total"
	metricLedgerRecordsTotal     = "reviewfang.ledger.records.total"
	metricAttributionsTotal      = "reviewfang.attribution.commits.total"

	attrStatus = "status"
	attrSource = "source"
)

// RunMetrics holds OTel instruments for one analysis run.
type RunMetrics struct {
	commitsTotal      metric.Int64Counter
	diffFailures      metric.Int64Counter
	untrackedRemovals metric.Int64Counter
	ledgerRecords     metric.Int64Counter
	attributions      metric.Int64Counter
}

// NewRunMetrics creates the replay metric instruments from the given meter.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	commits, err := mt.Int64Counter(metricCommitsTotal,
		metric.WithDescription("Total commits replayed"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsTotal, err)
	}

	diffFailures, err := mt.Int64Counter(metricDiffFailuresTotal,
		metric.WithDescription("Diff batches that failed and were skipped"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricDiffFailuresTotal, err)
	}

	untracked, err := mt.Int64Counter(metricUntrackedRemovalsTotal,
		metric.WithDescription("Removed-line hunks without a matching live line"),
		metric.WithUnit("{hunk}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricUntrackedRemovalsTotal, err)
	}

	ledger, err := mt.Int64Counter(metricLedgerRecordsTotal,
		metric.WithDescription("Provenance ledger records emitted, by status"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLedgerRecordsTotal, err)
	}

	attributions, err := mt.Int64Counter(metricAttributionsTotal,
		metric.WithDescription("Commits attributed to PRs, by source"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricAttributionsTotal, err)
	}

	return &RunMetrics{
		commitsTotal:      commits,
		diffFailures:      diffFailures,
		untrackedRemovals: untracked,
		ledgerRecords:     ledger,
		attributions:      attributions,
	}, nil
}

// RecordCommits adds to the replayed-commit counter.
func (m *RunMetrics) RecordCommits(ctx context.Context, n int64) {
	m.commitsTotal.Add(ctx, n)
}

// RecordDiffFailure counts one skipped diff batch.
func (m *RunMetrics) RecordDiffFailure(ctx context.Context) {
	m.diffFailures.Add(ctx, 1)
}

// RecordUntrackedRemoval counts one removal without a matching live line.
func (m *RunMetrics) RecordUntrackedRemoval(ctx context.Context) {
	m.untrackedRemovals.Add(ctx, 1)
}

// RecordLedger counts emitted ledger records for one status.
func (m *RunMetrics) RecordLedger(ctx context.Context, status string, n int64) {
	m.ledgerRecords.Add(ctx, n, metric.WithAttributes(attribute.String(attrStatus, status)))
}

// RecordAttributions counts attributed commits for one source.
func (m *RunMetrics) RecordAttributions(ctx context.Context, source string, n int64) {
	m.attributions.Add(ctx, n, metric.WithAttributes(attribute.String(attrSource, source)))
}
