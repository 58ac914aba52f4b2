package analytics

import (
	"bytes"
	"testing"
	"time"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestRenderSpeedChart(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		times  []time.Time
		speeds []float64
	}{
		{"empty series renders placeholder", nil, nil},
		{"single point", []time.Time{now}, []float64{42}},
		{
			"multiple points",
			[]time.Time{now.Add(-2 * time.Hour), now.Add(-time.Hour), now},
			[]float64{28.5, 35.1, 41},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := RenderSpeedChart(tt.times, tt.speeds, now)
			if err != nil {
				t.Fatalf("RenderSpeedChart failed: %v", err)
			}
			if len(out) == 0 {
				t.Fatal("rendered chart is empty")
			}
			if !bytes.HasPrefix(out, pngMagic) {
				t.Errorf("output does not start with the PNG signature: % x", out[:8])
			}
		})
	}
}
