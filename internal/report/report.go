// Package report renders tuning results to an HTML chart page and exports
// evaluation traces to XLSX workbooks.
package report

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/beamphys/beamtune/internal/sim"
	"github.com/beamphys/beamtune/internal/store"
)

// Histogram bins positions into count evenly spaced bins over the data
// range. Returns bin centers and counts.
func Histogram(positions []float64, count int) ([]float64, []int) {
	if len(positions) == 0 || count < 1 {
		return nil, nil
	}

	lo, hi := positions[0], positions[0]
	for _, x := range positions {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	if hi == lo {
		hi = lo + 1e-9
	}

	width := (hi - lo) / float64(count)
	centers := make([]float64, count)
	counts := make([]int, count)
	for i := range centers {
		centers[i] = lo + (float64(i)+0.5)*width
	}
	for _, x := range positions {
		bin := int((x - lo) / width)
		if bin >= count {
			bin = count - 1
		}
		counts[bin]++
	}
	return centers, counts
}

// WriteHTML renders the focal-plane distributions of both species and the
// convergence trace into a single HTML page.
func WriteHTML(path string, product, beam *sim.Result, trace []store.TraceEntry) error {
	page := components.NewPage()
	page.PageTitle = "beamtune report"

	page.AddCharts(
		focalPlaneChart("Focal plane 1", product.FP1, beam.FP1),
		focalPlaneChart("Focal plane 2", product.FP2, beam.FP2),
	)
	if len(trace) > 0 {
		page.AddCharts(convergenceChart(trace))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

const histogramBins = 60

func focalPlaneChart(title string, product, beam []float64) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x, mm"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "counts"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	// Bin both species over the combined range so the bars share an axis.
	combined := append(append([]float64{}, product...), beam...)
	centers, _ := Histogram(combined, histogramBins)

	labels := make([]string, len(centers))
	for i, c := range centers {
		labels[i] = fmt.Sprintf("%.1f", c*1e3)
	}
	bar.SetXAxis(labels)
	bar.AddSeries("product", barData(rebin(product, combined, histogramBins)))
	bar.AddSeries("unreacted beam", barData(rebin(beam, combined, histogramBins)))
	return bar
}

// rebin counts positions into the bin grid defined by the combined data.
func rebin(positions, combined []float64, count int) []int {
	if len(combined) == 0 {
		return nil
	}
	lo, hi := combined[0], combined[0]
	for _, x := range combined {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	if hi == lo {
		hi = lo + 1e-9
	}
	width := (hi - lo) / float64(count)
	counts := make([]int, count)
	for _, x := range positions {
		bin := int((x - lo) / width)
		if bin < 0 {
			bin = 0
		}
		if bin >= count {
			bin = count - 1
		}
		counts[bin]++
	}
	return counts
}

func barData(counts []int) []opts.BarData {
	data := make([]opts.BarData, len(counts))
	for i, c := range counts {
		data[i] = opts.BarData{Value: c}
	}
	return data
}

// WriteSweepHTML renders a single-quad scan of the objective.
func WriteSweepHTML(path, title string, settings, values []float64) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "gradient, T/m"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "objective", Scale: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	labels := make([]string, len(settings))
	data := make([]opts.LineData, len(values))
	for i := range settings {
		labels[i] = fmt.Sprintf("%.3f", settings[i])
		data[i] = opts.LineData{Value: values[i]}
	}
	line.SetXAxis(labels)
	line.AddSeries("objective", data)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create sweep file: %w", err)
	}
	defer f.Close()

	if err := line.Render(f); err != nil {
		return fmt.Errorf("failed to render sweep: %w", err)
	}
	return nil
}

func convergenceChart(trace []store.TraceEntry) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Convergence"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "evaluation"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "objective", Scale: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)

	xs := make([]int, len(trace))
	data := make([]opts.LineData, len(trace))
	best := trace[0].Value
	for i, e := range trace {
		if e.Value < best {
			best = e.Value
		}
		xs[i] = e.Evaluation
		data[i] = opts.LineData{Value: best}
	}
	line.SetXAxis(xs)
	line.AddSeries("best objective", data)
	return line
}
