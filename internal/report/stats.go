// Package report computes and persists the run's outputs: the provenance
// ledger, the attribution table, named statistic records, text and HTML
// summaries.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/Sumatoshi-tech/reviewfang/internal/attribution"
	"github.com/Sumatoshi-tech/reviewfang/internal/plies"
	"github.com/Sumatoshi-tech/reviewfang/internal/provenance"
	"github.com/Sumatoshi-tech/reviewfang/pkg/alg/groupreduce"
	"github.com/Sumatoshi-tech/reviewfang/pkg/alg/stats"
	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// Review classes used as group keys.
const (
	classUnreviewed  = "unreviewed"
	classReviewed    = "reviewed"
	classZeroComment = "zero_comment_reviewed"
)

const hoursPerDay = 24.0

// Stat is one named statistic record: `{"stat": name, "data": {...}}`, one
// JSON object per output line. Statistics are independently computed and
// order-independent in the stream.
type Stat struct {
	Name string `json:"stat"`
	Data any    `json:"data"`
}

// GroupSummary is the serialized form of one group-reduce emission.
type GroupSummary struct {
	Key    []string `json:"key"`
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	StdDev float64  `json:"stddev"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Median float64  `json:"median"`
	P90    float64  `json:"p90"`
}

// StatusCDF pairs a review class with its lifetime distribution.
type StatusCDF struct {
	Status string                 `json:"status"`
	Points []groupreduce.CDFPoint `json:"points"`
}

// Inputs bundles everything the statistics are computed from.
type Inputs struct {
	Ledger      *provenance.Ledger
	Attribution *attribution.Table
	Sessions    *plies.Result

	// LifetimeThresholds are CDF thresholds in days.
	LifetimeThresholds []float64

	// LatencyThresholds are CDF thresholds in hours.
	LatencyThresholds []float64
}

// Compute derives every named statistic. Each statistic is independent; a
// group-reduce failure on one aborts the whole computation since it signals
// a sorting bug, not bad data.
func Compute(in *Inputs) ([]Stat, error) {
	classes := reviewClasses(in.Attribution)

	out := []Stat{coverage(in.Attribution)}

	byStatus, err := lifetimeSummaries(in.Ledger, classes, keyByStatus)
	if err != nil {
		return nil, fmt.Errorf("lifetime by status: %w", err)
	}

	out = append(out, Stat{Name: "line_lifetime_by_status", Data: byStatus})

	byLanguage, err := lifetimeSummaries(in.Ledger, classes, keyByLanguage)
	if err != nil {
		return nil, fmt.Errorf("lifetime by language: %w", err)
	}

	out = append(out,
		Stat{Name: "line_lifetime_by_language", Data: byLanguage},
		Stat{Name: "lifetime_cdf_by_status", Data: lifetimeCDFs(in.Ledger, classes, in.LifetimeThresholds)},
		Stat{Name: "line_survival_by_status", Data: survival(in.Ledger, classes)},
		Stat{Name: "pr_latency", Data: latency(in.Sessions)},
		Stat{Name: "pr_latency_cdf", Data: latencyCDF(in.Sessions, in.LatencyThresholds)},
		Stat{Name: "ply_distribution", Data: plyDistribution(in.Sessions)},
		Stat{Name: "file_footprint_jaccard", Data: footprintJaccard(in.Ledger, classes)},
	)

	return out, nil
}

// reviewClasses maps every window commit sha to its review class.
func reviewClasses(table *attribution.Table) map[string]string {
	classes := make(map[string]string, len(table.Records))

	for _, record := range table.Records {
		switch {
		case !record.Reviewed:
			classes[record.Sha] = classUnreviewed
		case record.ZeroComment:
			classes[record.Sha] = classZeroComment
		default:
			classes[record.Sha] = classReviewed
		}
	}

	return classes
}

// coverage is the reviewed/unreviewed split of the window's commits.
func coverage(table *attribution.Table) Stat {
	counts := map[string]int{}

	for _, record := range table.Records {
		switch {
		case !record.Reviewed:
			counts[classUnreviewed]++
		case record.ZeroComment:
			counts[classZeroComment]++
		default:
			counts[classReviewed]++
		}
	}

	total := len(table.Records)
	reviewed := counts[classReviewed] + counts[classZeroComment]

	share := 0.0
	if total > 0 {
		share = float64(reviewed) / float64(total)
	}

	return Stat{Name: "review_coverage", Data: map[string]any{
		"commits":               total,
		"reviewed":              counts[classReviewed],
		"zero_comment_reviewed": counts[classZeroComment],
		"unreviewed":            counts[classUnreviewed],
		"reviewed_share":        share,
	}}
}

func keyByStatus(_ *plumbing.LineRecord, class string) []string {
	return []string{class}
}

func keyByLanguage(record *plumbing.LineRecord, class string) []string {
	language := record.Language
	if language == "" {
		language = "unknown"
	}

	return []string{language, class}
}

// lifetimeSummaries group-reduces died line lifetimes (in hours) under the
// given key function.
func lifetimeSummaries(ledger *provenance.Ledger, classes map[string]string, key func(*plumbing.LineRecord, string) []string) ([]GroupSummary, error) {
	var samples []groupreduce.Sample

	for i := range ledger.Records {
		record := &ledger.Records[i]
		if record.Status != plumbing.LineDied {
			continue
		}

		class, ok := classes[record.Birth]
		if !ok {
			continue
		}

		samples = append(samples, groupreduce.Sample{
			Key:   key(record, class),
			Value: record.Lifetime.Hours(),
		})
	}

	var out []GroupSummary

	err := groupreduce.ReduceSlice(samples, groupreduce.Lexical, func(s *groupreduce.Summary) error {
		out = append(out, GroupSummary{
			Key:    s.Key,
			Count:  s.Count,
			Mean:   s.Mean(),
			StdDev: s.StdDev(),
			Min:    s.Min,
			Max:    s.Max,
			Median: s.Median(),
			P90:    s.Percentile(stats.PercentileP90),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// lifetimeCDFs builds one lifetime CDF per review class. Thresholds arrive
// in days and are evaluated in hours.
func lifetimeCDFs(ledger *provenance.Ledger, classes map[string]string, thresholdDays []float64) []StatusCDF {
	byClass := make(map[string][]float64)

	for i := range ledger.Records {
		record := &ledger.Records[i]
		if record.Status != plumbing.LineDied {
			continue
		}

		class, ok := classes[record.Birth]
		if !ok {
			continue
		}

		byClass[class] = append(byClass[class], record.Lifetime.Hours())
	}

	thresholds := make([]float64, len(thresholdDays))
	for i, days := range thresholdDays {
		thresholds[i] = days * hoursPerDay
	}

	names := make([]string, 0, len(byClass))
	for name := range byClass {
		names = append(names, name)
	}

	sort.Strings(names)

	out := make([]StatusCDF, 0, len(names))

	for _, name := range names {
		values := byClass[name]
		sort.Float64s(values)

		out = append(out, StatusCDF{Status: name, Points: groupreduce.CDF(values, thresholds)})
	}

	return out
}

// survival counts live versus died lines per review class.
func survival(ledger *provenance.Ledger, classes map[string]string) map[string]map[string]int {
	out := make(map[string]map[string]int)

	for i := range ledger.Records {
		record := &ledger.Records[i]

		class, ok := classes[record.Birth]
		if !ok {
			continue
		}

		if out[class] == nil {
			out[class] = make(map[string]int)
		}

		out[class][string(record.Status)]++
	}

	return out
}

// latency summarizes PR wall-clock lifetime against the engagement
// estimate. The two differ by design: wall clock includes idle waiting.
func latency(sessions *plies.Result) map[string]any {
	wall := make([]float64, 0, len(sessions.Sessions))
	engagement := make([]float64, 0, len(sessions.Sessions))

	for _, session := range sessions.Sessions {
		wall = append(wall, session.WallClock.Hours())
		engagement = append(engagement, session.Engagement.Hours())
	}

	wallMean, wallStdDev := stats.MeanStdDev(wall)
	engMean, engStdDev := stats.MeanStdDev(engagement)

	return map[string]any{
		"prs":                  len(sessions.Sessions),
		"mean_reply_gap_hours": sessions.MeanReplyGap.Hours(),
		"wall_clock_hours": map[string]float64{
			"mean":   wallMean,
			"stddev": wallStdDev,
			"median": stats.Median(wall),
			"p90":    stats.Percentile(wall, stats.PercentileP90),
		},
		"engagement_hours": map[string]float64{
			"mean":   engMean,
			"stddev": engStdDev,
			"median": stats.Median(engagement),
			"p90":    stats.Percentile(engagement, stats.PercentileP90),
		},
	}
}

// latencyCDF is the wall-clock distribution at the configured thresholds.
func latencyCDF(sessions *plies.Result, thresholds []float64) []groupreduce.CDFPoint {
	wall := make([]float64, 0, len(sessions.Sessions))

	for _, session := range sessions.Sessions {
		wall = append(wall, session.WallClock.Hours())
	}

	sort.Float64s(wall)

	return groupreduce.CDF(wall, thresholds)
}

// plyDistribution histograms exchange counts across PRs. Author-only PRs
// surface as the zero-exchange bucket rather than being dropped.
func plyDistribution(sessions *plies.Result) map[string]any {
	histogram := make(map[int]int)
	authorOnly := 0

	for _, session := range sessions.Sessions {
		histogram[session.Exchanges]++

		if session.AuthorOnly {
			authorOnly++
		}
	}

	return map[string]any{
		"prs":         len(sessions.Sessions),
		"author_only": authorOnly,
		"exchanges":   histogram,
	}
}

// footprintJaccard compares the file footprints of reviewed-born and
// unreviewed-born lines as weighted sets. Weights are per-path line counts;
// normalization inside the Jaccard keeps unequal populations comparable.
func footprintJaccard(ledger *provenance.Ledger, classes map[string]string) map[string]any {
	reviewed := make(map[string]float64)
	unreviewed := make(map[string]float64)

	for i := range ledger.Records {
		record := &ledger.Records[i]

		switch classes[record.Birth] {
		case classReviewed, classZeroComment:
			reviewed[record.Path]++
		case classUnreviewed:
			unreviewed[record.Path]++
		}
	}

	return map[string]any{
		"reviewed_paths":   len(reviewed),
		"unreviewed_paths": len(unreviewed),
		"jaccard":          groupreduce.WeightedJaccard(reviewed, unreviewed),
	}
}

// RunSummary is the run-level overview persisted as YAML and rendered by
// the text reporter.
type RunSummary struct {
	Repository    string        `yaml:"repository"`
	WindowStart   time.Time     `yaml:"window_start,omitempty"`
	WindowEnd     time.Time     `yaml:"window_end,omitempty"`
	Commits       int           `yaml:"commits"`
	FailedDiffs   int           `yaml:"failed_diffs"`
	LedgerRecords int           `yaml:"ledger_records"`
	LiveLines     int           `yaml:"live_lines"`
	DiedLines     int           `yaml:"died_lines"`
	BinaryPaths   int           `yaml:"binary_paths"`
	Untracked     int           `yaml:"untracked_removals"`
	PullRequests  int           `yaml:"pull_requests"`
	Reviewed      int           `yaml:"reviewed_commits"`
	Unreviewed    int           `yaml:"unreviewed_commits"`
	Sessions      int           `yaml:"sessions"`
	MeanReplyGap  time.Duration `yaml:"mean_reply_gap"`
	Elapsed       time.Duration `yaml:"elapsed"`
}

// Summarize assembles the run summary from the pipeline results.
func Summarize(repository string, in *Inputs, pullRequests int, elapsed time.Duration) RunSummary {
	summary := RunSummary{
		Repository:    repository,
		Commits:       in.Ledger.Commits,
		FailedDiffs:   in.Ledger.FailedDiffs,
		LedgerRecords: len(in.Ledger.Records),
		BinaryPaths:   len(in.Ledger.Binaries),
		Untracked:     in.Ledger.Untracked,
		PullRequests:  pullRequests,
		Sessions:      len(in.Sessions.Sessions),
		MeanReplyGap:  in.Sessions.MeanReplyGap,
		Elapsed:       elapsed,
	}

	for i := range in.Ledger.Records {
		if in.Ledger.Records[i].Status == plumbing.LineLive {
			summary.LiveLines++
		} else {
			summary.DiedLines++
		}
	}

	for _, record := range in.Attribution.Records {
		if record.Reviewed {
			summary.Reviewed++
		} else {
			summary.Unreviewed++
		}
	}

	return summary
}
