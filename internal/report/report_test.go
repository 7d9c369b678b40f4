package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/reviewfang/internal/attribution"
	"github.com/Sumatoshi-tech/reviewfang/internal/plies"
	"github.com/Sumatoshi-tech/reviewfang/internal/provenance"
	"github.com/Sumatoshi-tech/reviewfang/pkg/persist"
	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

func fixtureInputs() *Inputs {
	ledger := &provenance.Ledger{
		Records: []plumbing.LineRecord{
			{Path: "a.go", Language: "Go", Birth: "c1", Death: "c2", Status: plumbing.LineDied, Lifetime: 24 * time.Hour},
			{Path: "a.go", Language: "Go", Birth: "c1", Death: "c3", Status: plumbing.LineDied, Lifetime: 48 * time.Hour},
			{Path: "b.go", Language: "Go", Birth: "c2", Death: "c3", Status: plumbing.LineDied, Lifetime: 12 * time.Hour},
			{Path: "a.go", Language: "Go", Birth: "c1", Status: plumbing.LineLive},
			{Path: "b.go", Language: "Go", Birth: "c2", Status: plumbing.LineLive},
		},
		Binaries: map[string]bool{"img.png": true},
		Commits:  3,
	}

	table := &attribution.Table{
		Records: []attribution.Record{
			{Sha: "c1", Reviewed: true, PRNumber: 1, Source: plumbing.SourceCommitMessage},
			{Sha: "c2"},
			{Sha: "c3", Reviewed: true, PRNumber: 2, Source: plumbing.SourceCascade, ZeroComment: true},
		},
	}

	sessions := &plies.Result{
		Sessions: []plies.Session{
			{PRNumber: 1, Exchanges: 2, WallClock: 10 * time.Hour, Engagement: 4 * time.Hour},
			{PRNumber: 2, Exchanges: 0, AuthorOnly: true, WallClock: time.Hour},
		},
		MeanReplyGap: 2 * time.Hour,
	}

	return &Inputs{
		Ledger:             ledger,
		Attribution:        table,
		Sessions:           sessions,
		LifetimeThresholds: []float64{1, 7},
		LatencyThresholds:  []float64{1, 24},
	}
}

func statByName(t *testing.T, statistics []Stat, name string) Stat {
	t.Helper()

	for _, stat := range statistics {
		if stat.Name == name {
			return stat
		}
	}

	t.Fatalf("statistic %q not computed", name)

	return Stat{}
}

func TestComputeCoverage(t *testing.T) {
	t.Parallel()

	statistics, err := Compute(fixtureInputs())
	require.NoError(t, err)

	data, ok := statByName(t, statistics, "review_coverage").Data.(map[string]any)
	require.True(t, ok)

	assert.Equal(t, 3, data["commits"])
	assert.Equal(t, 1, data["reviewed"])
	assert.Equal(t, 1, data["zero_comment_reviewed"])
	assert.Equal(t, 1, data["unreviewed"])
	assert.InDelta(t, 2.0/3.0, data["reviewed_share"], 1e-9)
}

func TestComputeLifetimeByStatus(t *testing.T) {
	t.Parallel()

	statistics, err := Compute(fixtureInputs())
	require.NoError(t, err)

	groups, ok := statByName(t, statistics, "line_lifetime_by_status").Data.([]GroupSummary)
	require.True(t, ok)
	require.Len(t, groups, 2)

	// Lexical key order: reviewed before unreviewed.
	assert.Equal(t, []string{"reviewed"}, groups[0].Key)
	assert.Equal(t, 2, groups[0].Count)
	assert.InDelta(t, 36.0, groups[0].Mean, 1e-9)
	// Interpolated between the 24h and 48h lifetimes.
	assert.InDelta(t, 45.6, groups[0].P90, 1e-9)

	assert.Equal(t, []string{"unreviewed"}, groups[1].Key)
	assert.Equal(t, 1, groups[1].Count)
	assert.InDelta(t, 12.0, groups[1].Median, 1e-9)
}

func TestComputeLifetimeCDF(t *testing.T) {
	t.Parallel()

	statistics, err := Compute(fixtureInputs())
	require.NoError(t, err)

	curves, ok := statByName(t, statistics, "lifetime_cdf_by_status").Data.([]StatusCDF)
	require.True(t, ok)
	require.NotEmpty(t, curves)

	for _, curve := range curves {
		last := 0.0

		for _, point := range curve.Points {
			assert.GreaterOrEqual(t, point.Fraction, last)
			last = point.Fraction
		}

		assert.InDelta(t, 1.0, last, 1e-9)
	}
}

func TestComputeFootprintJaccard(t *testing.T) {
	t.Parallel()

	statistics, err := Compute(fixtureInputs())
	require.NoError(t, err)

	data, ok := statByName(t, statistics, "file_footprint_jaccard").Data.(map[string]any)
	require.True(t, ok)

	jaccard, ok := data["jaccard"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, jaccard, 0.0)
	assert.LessOrEqual(t, jaccard, 1.0)
}

func TestComputePlyDistribution(t *testing.T) {
	t.Parallel()

	statistics, err := Compute(fixtureInputs())
	require.NoError(t, err)

	data, ok := statByName(t, statistics, "ply_distribution").Data.(map[string]any)
	require.True(t, ok)

	assert.Equal(t, 2, data["prs"])
	assert.Equal(t, 1, data["author_only"])

	histogram, ok := data["exchanges"].(map[int]int)
	require.True(t, ok)
	assert.Equal(t, 1, histogram[0])
	assert.Equal(t, 1, histogram[2])
}

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writer, err := NewWriter(dir, true)
	require.NoError(t, err)

	in := fixtureInputs()

	n, err := writer.WriteLedger(in.Ledger.Records)
	require.NoError(t, err)
	assert.Equal(t, len(in.Ledger.Records), n)

	path := filepath.Join(dir, LedgerBasename+persist.Extension(true))
	records, err := persist.ReadStream[plumbing.LineRecord](path)
	require.NoError(t, err)
	assert.Equal(t, in.Ledger.Records, records)
}

func TestWriteSummaryYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writer, err := NewWriter(dir, false)
	require.NoError(t, err)

	summary := Summarize("repo.git", fixtureInputs(), 2, 5*time.Second)
	require.NoError(t, writer.WriteSummary(summary))

	data, err := os.ReadFile(filepath.Join(dir, SummaryFilename))
	require.NoError(t, err)
	assert.Contains(t, string(data), "repository: repo.git")
	assert.Contains(t, string(data), "ledger_records: 5")
}

func TestWritePlot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writer, err := NewWriter(dir, false)
	require.NoError(t, err)

	statistics, err := Compute(fixtureInputs())
	require.NoError(t, err)

	curves := statByName(t, statistics, "lifetime_cdf_by_status").Data.([]StatusCDF)

	path, err := writer.WritePlot(curves)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "echarts")
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	in := fixtureInputs()

	statistics, err := Compute(in)
	require.NoError(t, err)

	var buf bytes.Buffer

	RenderSummary(&buf, Summarize("repo.git", in, 2, time.Second), statistics)

	out := buf.String()
	assert.Contains(t, out, "reviewfang: repo.git")
	assert.Contains(t, out, "Commits replayed")
	assert.Contains(t, out, "reviewed")
}

func TestSummarizeCounts(t *testing.T) {
	t.Parallel()

	summary := Summarize("repo.git", fixtureInputs(), 2, time.Second)

	assert.Equal(t, 3, summary.Commits)
	assert.Equal(t, 2, summary.LiveLines)
	assert.Equal(t, 3, summary.DiedLines)
	assert.Equal(t, 2, summary.Reviewed)
	assert.Equal(t, 1, summary.Unreviewed)
	assert.Equal(t, 1, summary.BinaryPaths)
	assert.Equal(t, 2, summary.Sessions)
}
