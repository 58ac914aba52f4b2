package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/idevanshrai/RoadVision/internal/domain/detection"
	"github.com/idevanshrai/RoadVision/internal/repository"
)

// speedBins are the fixed distribution buckets, keyed by upper bound.
var speedBins = []struct {
	label string
	upper float64
}{
	{"0-20", 20},
	{"21-40", 40},
	{"41-60", 60},
	{"61-80", 80},
	{"81+", math.Inf(1)},
}

type AnalyticsService struct {
	repo     *repository.DetectionRepository
	location *time.Location
	log      zerolog.Logger
}

func NewAnalyticsService(repo *repository.DetectionRepository, location *time.Location, log zerolog.Logger) *AnalyticsService {
	return &AnalyticsService{
		repo:     repo,
		location: location,
		log:      log,
	}
}

// ChartData buckets speeds into the fixed bins and computes mean speed per
// hour of day from each record's recording time. With no records it returns
// the documented non-empty fallback so charts always render something.
func (s *AnalyticsService) ChartData(ctx context.Context) (*detection.ChartData, error) {
	records, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load detections: %w", err)
	}

	if len(records) == 0 {
		return emptyChartData(), nil
	}

	distribution := make(map[string]int, len(speedBins))
	for _, bin := range speedBins {
		distribution[bin.label] = 0
	}

	var totals, counts [24]float64
	for _, rec := range records {
		for _, bin := range speedBins {
			if rec.SpeedMph <= bin.upper {
				distribution[bin.label]++
				break
			}
		}
		hour := rec.RecordedAt.In(s.location).Hour()
		totals[hour] += rec.SpeedMph
		counts[hour]++
	}

	hourly := make([]detection.HourlyAverage, 0, 24)
	for hour := 0; hour < 24; hour++ {
		var avg float64
		if counts[hour] > 0 {
			avg = math.Round(totals[hour]/counts[hour]*10) / 10
		}
		hourly = append(hourly, detection.HourlyAverage{
			Hour:         fmt.Sprintf("%d:00", hour),
			AverageSpeed: avg,
		})
	}

	return &detection.ChartData{
		SpeedDistribution: distribution,
		HourlyAverages:    hourly,
		TotalDetections:   len(records),
	}, nil
}

// SpeedSeries returns recording times and speeds in chronological order for
// the rendered analytics chart.
func (s *AnalyticsService) SpeedSeries(ctx context.Context) ([]time.Time, []float64, error) {
	records, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load detections: %w", err)
	}

	// ListAll is newest first; the chart wants oldest first.
	times := make([]time.Time, 0, len(records))
	speeds := make([]float64, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		times = append(times, records[i].RecordedAt.In(s.location))
		speeds = append(speeds, records[i].SpeedMph)
	}
	return times, speeds, nil
}

// emptyChartData is a display convenience for an empty store, not a
// statistical default.
func emptyChartData() *detection.ChartData {
	distribution := map[string]int{"0-20": 1, "21-40": 0, "41-60": 0, "61-80": 0, "81+": 0}

	hourly := make([]detection.HourlyAverage, 0, 24)
	for hour := 0; hour < 24; hour++ {
		hourly = append(hourly, detection.HourlyAverage{
			Hour:         fmt.Sprintf("%d:00", hour),
			AverageSpeed: 30,
		})
	}

	return &detection.ChartData{
		SpeedDistribution: distribution,
		HourlyAverages:    hourly,
		TotalDetections:   1,
	}
}
