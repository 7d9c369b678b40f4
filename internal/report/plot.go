package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const plotLineWidth = 2

// WritePlot renders the per-status lifetime CDFs as an HTML line chart and
// returns the written path.
func (w *Writer) WritePlot(curves []StatusCDF) (string, error) {
	if len(curves) == 0 {
		return "", nil
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Line lifetime CDF",
			Subtitle: "Cumulative fraction of died lines per review status",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Lifetime (hours)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Fraction"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(curves[0].Points))
	for _, point := range curves[0].Points {
		labels = append(labels, fmt.Sprintf("%.0f", point.Threshold))
	}

	line.SetXAxis(labels)

	for _, curve := range curves {
		data := make([]opts.LineData, 0, len(curve.Points))
		for _, point := range curve.Points {
			data = append(data, opts.LineData{Value: point.Fraction})
		}

		line.AddSeries(curve.Status, data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Width: plotLineWidth}),
		)
	}

	path := filepath.Join(w.dir, PlotFilename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create plot file: %w", err)
	}

	if err := line.Render(file); err != nil {
		file.Close()

		return "", fmt.Errorf("render plot: %w", err)
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close plot file: %w", err)
	}

	return path, nil
}
