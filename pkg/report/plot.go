package report

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/ebm/pkg/pipeline"
	"github.com/Sumatoshi-tech/ebm/pkg/reading"
)

const (
	plotWidth  = "1100px"
	plotHeight = "600px"

	boundarySymbolSize = 4
	readingSymbolSize  = 7
	anomalySymbolSize  = 11
)

// Series colours.
const (
	colorNormal   = "#16a34a"
	colorAnomaly  = "#dc2626"
	colorBoundary = "#a16207"
	colorText     = "#44403c"
	colorMuted    = "#78716c"
)

// WritePlot writes an HTML page with one scatter chart per aggregated region:
// the region ellipse boundary over its sensors' differences, plus the
// classified readings. Everything is drawn in the modeling space.
func WritePlot(w io.Writer, result *pipeline.Result) error {
	page := components.NewPage()
	page.SetPageTitle("EBM run " + result.RunID)

	for _, name := range slices.Sorted(maps.Keys(result.Regions)) {
		page.AddCharts(regionChart(result, name))
	}

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

func regionChart(result *pipeline.Result, name string) *charts.Scatter {
	agg := result.Regions[name]
	axis := "temperature / humidity"

	if result.Options.Standardize {
		axis = "z-score"
	}

	chart := charts.NewScatter()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: plotWidth, Height: plotHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:         "Region " + name,
			Subtitle:      fmt.Sprintf("a=%.4f b=%.4f theta=%.4f", agg.AxisA, agg.AxisB, agg.Theta),
			Left:          "center",
			TitleStyle:    &opts.TextStyle{Color: colorText},
			SubtitleStyle: &opts.TextStyle{Color: colorMuted},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "8%", Left: "center"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "temperature (" + axis + ")", Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "humidity (" + axis + ")", Type: "value"}),
	)

	var upper, lower, normal, anomalous []opts.ScatterData

	for _, id := range result.Members[name] {
		sr, ok := result.Sensors[id]
		if !ok {
			continue
		}

		if sr.RegionBoundary != nil {
			for _, bp := range sr.RegionBoundary.Boundary {
				upper = append(upper, point(bp.X, bp.YUpper, id, boundarySymbolSize))
				lower = append(lower, point(bp.X, bp.YLower, id, boundarySymbolSize))
			}
		}

		normal = appendPoints(normal, result.Normal[id], id, readingSymbolSize)
		anomalous = appendPoints(anomalous, result.Anomalies[id], id, anomalySymbolSize)
	}

	chart.AddSeries("boundary (upper)", upper, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBoundary}))
	chart.AddSeries("boundary (lower)", lower, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorBoundary}))
	chart.AddSeries("normal", normal, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorNormal}))
	chart.AddSeries("anomaly", anomalous, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorAnomaly}))

	return chart
}

func appendPoints(dst []opts.ScatterData, series reading.Series, sensorID string, size int) []opts.ScatterData {
	for _, r := range series {
		dst = append(dst, point(r.X, r.Y, sensorID, size))
	}

	return dst
}

func point(x, y float64, sensorID string, size int) opts.ScatterData {
	return opts.ScatterData{Name: sensorID, Value: []any{x, y}, SymbolSize: size}
}
