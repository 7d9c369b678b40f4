package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/reviewfang/internal/report"
	"github.com/Sumatoshi-tech/reviewfang/pkg/persist"
)

// ErrNoCDFStatistic is returned when the stats stream lacks the lifetime
// CDF record the chart is built from.
var ErrNoCDFStatistic = errors.New("stats stream contains no lifetime_cdf_by_status record")

// rawStat defers data decoding until the statistic name is known.
type rawStat struct {
	Name string          `json:"stat"`
	Data json.RawMessage `json:"data"`
}

// PlotCommand re-renders the lifetime CDF chart from a persisted stats
// stream, so plots can be regenerated without re-running the analysis.
type PlotCommand struct {
	outputDir string
}

// NewPlotCommand creates the plot command.
func NewPlotCommand() *cobra.Command {
	pc := &PlotCommand{}

	cmd := &cobra.Command{
		Use:   "plot <stats-file>",
		Short: "Re-render the lifetime CDF chart from a stats stream",
		Args:  cobra.ExactArgs(1),
		RunE:  pc.run,
	}

	cmd.Flags().StringVarP(&pc.outputDir, "output", "o", ".", "directory for the rendered chart")

	return cmd
}

func (pc *PlotCommand) run(cmd *cobra.Command, args []string) error {
	statistics, err := persist.ReadStream[rawStat](args[0])
	if err != nil {
		return fmt.Errorf("read stats stream: %w", err)
	}

	var curves []report.StatusCDF

	for _, stat := range statistics {
		if stat.Name != "lifetime_cdf_by_status" {
			continue
		}

		if err := json.Unmarshal(stat.Data, &curves); err != nil {
			return fmt.Errorf("decode lifetime CDF data: %w", err)
		}

		break
	}

	if len(curves) == 0 {
		return ErrNoCDFStatistic
	}

	writer, err := report.NewWriter(pc.outputDir, false)
	if err != nil {
		return err
	}

	path, err := writer.WritePlot(curves)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "chart written to %s\n", path)

	return nil
}
