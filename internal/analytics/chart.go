package analytics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
)

// RenderSpeedChart draws the speed-over-time analytics graph as a PNG. An
// empty store renders a flat placeholder line at 30 mph so the chart is never
// blank.
func RenderSpeedChart(times []time.Time, speeds []float64, now time.Time) ([]byte, error) {
	// go-chart needs at least two points to establish an x-range.
	switch len(times) {
	case 0:
		times = []time.Time{now.Add(-time.Minute), now}
		speeds = []float64{30, 30}
	case 1:
		times = []time.Time{times[0].Add(-time.Minute), times[0]}
		speeds = []float64{speeds[0], speeds[0]}
	}

	graph := chart.Chart{
		Title:  "Speed Detection Analytics",
		Width:  1000,
		Height: 500,
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: chart.TimeValueFormatterWithFormat("15:04:05"),
		},
		YAxis: chart.YAxis{
			Name: "Speed (mph)",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				XValues: times,
				YValues: speeds,
				Style: chart.Style{
					StrokeWidth: 1,
					DotWidth:    3,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}
