package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

const floatFormat = "%.4f"

// WriteText writes rep as human-readable tables.
func WriteText(w io.Writer, rep *Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "=== EBM RUN %s ===\n", rep.RunID)

	if rep.Input != nil {
		fmt.Fprintf(&b, "input: %s (%s rows, %s incomplete)\n",
			rep.Input.Path, humanize.Comma(int64(rep.Input.Stats.TotalRows)),
			humanize.Comma(int64(rep.Input.Stats.IncompleteRows)))
	}

	fmt.Fprintf(&b, "model: a=%g b=%g theta=%s seed=%d standardize=%t\n",
		rep.Parameters.AxisA, rep.Parameters.AxisB, thetaLabel(rep.Parameters.Theta),
		rep.Parameters.Seed, rep.Parameters.Standardize)

	s := rep.Summary
	fmt.Fprintf(&b, "sensors: %d modeled, %d skipped, %d failed | readings: %s normal, ",
		s.Modeled, s.Skipped, s.Failed, humanize.Comma(int64(s.Normal)))

	verdict := color.New(color.FgGreen)
	if s.Anomalies > 0 {
		verdict = color.New(color.FgRed)
	}

	verdict.Fprintf(&b, "%s anomalous\n", humanize.Comma(int64(s.Anomalies)))

	b.WriteString("\n")
	b.WriteString(regionTable(rep.Regions))
	b.WriteString("\n\n")
	b.WriteString(sensorTable(rep.Sensors))
	b.WriteString("\n")

	if anomalies := anomalyTable(rep.Sensors); anomalies != "" {
		b.WriteString("\n")
		b.WriteString(anomalies)
		b.WriteString("\n")
	}

	if len(rep.Failures) > 0 {
		b.WriteString("\n")
		b.WriteString(failureTable(rep.Failures))
		b.WriteString("\n")
	}

	if len(rep.Skipped) > 0 {
		fmt.Fprintf(&b, "\nskipped (fewer than two readings): %s\n", strings.Join(rep.Skipped, ", "))
	}

	_, err := io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("write text report: %w", err)
	}

	return nil
}

func thetaLabel(theta *float64) string {
	if theta == nil {
		return "estimated"
	}

	return fmt.Sprintf(floatFormat, *theta)
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)

	return tbl
}

func regionTable(regions []Region) string {
	tbl := newTable()
	tbl.SetTitle("Regions")
	tbl.AppendHeader(table.Row{"Region", "Sensors", "Modeled", "a", "b", "Theta", "Theta min", "Theta max", "Status"})

	for _, r := range regions {
		if r.Error != "" {
			tbl.AppendRow(table.Row{r.Name, len(r.Sensors), r.Modeled, "-", "-", "-", "-", "-", r.Error})

			continue
		}

		tbl.AppendRow(table.Row{
			r.Name, len(r.Sensors), r.Modeled,
			fmt.Sprintf(floatFormat, r.AxisA), fmt.Sprintf(floatFormat, r.AxisB),
			fmt.Sprintf(floatFormat, r.Theta),
			fmt.Sprintf(floatFormat, r.ThetaMin), fmt.Sprintf(floatFormat, r.ThetaMax),
			"ok",
		})
	}

	return tbl.Render()
}

func sensorTable(sensors []Sensor) string {
	tbl := newTable()
	tbl.SetTitle("Sensors")
	tbl.AppendHeader(table.Row{
		"Sensor", "Region", "Readings", "Mean T", "Mean H", "Theta", "Boundary", "Outside", "Normal", "Anomalies",
	})

	anomalies := 0

	for _, s := range sensors {
		anomalies += len(s.Anomalies)

		tbl.AppendRow(table.Row{
			s.ID, s.Region, humanize.Comma(int64(s.Readings)),
			fmt.Sprintf(floatFormat, s.MeanTemperature), fmt.Sprintf(floatFormat, s.MeanHumidity),
			fmt.Sprintf(floatFormat, s.Theta),
			s.BoundaryPoints, s.OutsideExtent, s.Normal, len(s.Anomalies),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d sensors", len(sensors)), "", "", "", "", "", "", "", "", anomalies})

	return tbl.Render()
}

func anomalyTable(sensors []Sensor) string {
	tbl := newTable()
	tbl.SetTitle("Anomalies")
	tbl.AppendHeader(table.Row{"Sensor", "Temperature", "Humidity", "Score", "Distance"})

	rows := 0

	for _, s := range sensors {
		for _, a := range s.Anomalies {
			tbl.AppendRow(table.Row{
				s.ID,
				fmt.Sprintf(floatFormat, a.Temperature), fmt.Sprintf(floatFormat, a.Humidity),
				fmt.Sprintf(floatFormat, a.Score), fmt.Sprintf("%.2fσ", a.Distance),
			})

			rows++
		}
	}

	if rows == 0 {
		return ""
	}

	return tbl.Render()
}

func failureTable(failures []Failure) string {
	tbl := newTable()
	tbl.SetTitle("Failures")
	tbl.AppendHeader(table.Row{"Sensor", "Stage", "Error"})

	for _, f := range failures {
		tbl.AppendRow(table.Row{f.Sensor, f.Stage, f.Error})
	}

	return tbl.Render()
}
