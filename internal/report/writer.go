package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/reviewfang/internal/attribution"
	"github.com/Sumatoshi-tech/reviewfang/pkg/persist"
	"github.com/Sumatoshi-tech/reviewfang/pkg/plumbing"
)

// Output stream basenames.
const (
	LedgerBasename      = "ledger"
	AttributionBasename = "attribution"
	StatsBasename       = "stats"
	SummaryFilename     = "summary.yaml"
	PlotFilename        = "lifetime_cdf.html"
)

// Writer persists the run outputs into one directory.
type Writer struct {
	dir      string
	compress bool
}

// NewWriter creates the output directory if needed.
func NewWriter(dir string, compress bool) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &Writer{dir: dir, compress: compress}, nil
}

// WriteLedger streams the provenance ledger records.
func (w *Writer) WriteLedger(records []plumbing.LineRecord) (int, error) {
	return writeAll(w, LedgerBasename, records)
}

// WriteAttribution streams the attribution table.
func (w *Writer) WriteAttribution(records []attribution.Record) (int, error) {
	return writeAll(w, AttributionBasename, records)
}

// WriteStats streams the named statistic records.
func (w *Writer) WriteStats(statistics []Stat) (int, error) {
	return writeAll(w, StatsBasename, statistics)
}

// WriteSummary dumps the run summary as YAML.
func (w *Writer) WriteSummary(summary RunSummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	path := filepath.Join(w.dir, SummaryFilename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

// writeAll streams one record slice through a persist writer.
func writeAll[T any](w *Writer, basename string, records []T) (int, error) {
	stream, err := persist.NewStreamWriter[T](w.dir, basename, w.compress)
	if err != nil {
		return 0, err
	}

	for _, record := range records {
		if err := stream.Write(record); err != nil {
			stream.Close()

			return 0, fmt.Errorf("write %s record: %w", basename, err)
		}
	}

	if err := stream.Close(); err != nil {
		return 0, fmt.Errorf("close %s stream: %w", basename, err)
	}

	return stream.Count(), nil
}
