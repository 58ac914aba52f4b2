package detection

import (
	"time"

	"github.com/google/uuid"
)

// PlateReading is the result of running plate detection on a single image.
// NormalizedPlate is nil when no region was located or no text came back.
type PlateReading struct {
	RawText         string  `json:"raw_text"`
	NormalizedPlate *string `json:"plate"`
	DetectedState   *string `json:"state"`
	PlateImageRef   *string `json:"plate_image"`
}

// Record is one persisted speed detection. Records are append-only; nothing
// mutates them after Commit.
type Record struct {
	ID                   uuid.UUID      `json:"id"`
	Plate                string         `json:"plate"`
	State                *string        `json:"state"`
	EntryTimestamp       time.Time      `json:"entryTimestamp"`
	ExitTimestamp        time.Time      `json:"exitTimestamp"`
	DistanceFeet         float64        `json:"distanceFeet"`
	SpeedMph             float64        `json:"speedMph"`
	SpeedLimitMph        float64        `json:"speedLimitMph"`
	RecordedAt           time.Time      `json:"recordedAt"`
	IsOverSpeed          bool           `json:"isOverSpeed"`
	PreviousDetectionRef *time.Time     `json:"previousDetectionRef"`
	PlateImageRef        *string        `json:"plateImageRef"`
	RawReadings          []PlateReading `json:"raw_readings,omitempty"`
}

// HourlyAverage is the mean speed of records recorded in one hour of day.
type HourlyAverage struct {
	Hour         string  `json:"hour"`
	AverageSpeed float64 `json:"average_speed"`
}

// ChartData is the aggregator output backing the dashboard charts.
type ChartData struct {
	SpeedDistribution map[string]int  `json:"speed_distribution"`
	HourlyAverages    []HourlyAverage `json:"hourly_averages"`
	TotalDetections   int             `json:"total_detections"`
}
