package speed

import (
	"errors"
	"math"
	"time"
)

const feetPerMile = 5280

var (
	// ErrZeroElapsed reports entry and exit timestamps with no time between
	// them; the speed is undefined.
	ErrZeroElapsed = errors.New("zero elapsed time between entry and exit")

	// ErrNegativeElapsed reports an exit timestamp before the entry
	// timestamp, usually bad EXIF data or swapped images.
	ErrNegativeElapsed = errors.New("exit timestamp precedes entry timestamp")
)

// Calculate converts an entry/exit timestamp pair and a distance in feet into
// an average speed in miles per hour, rounded to one decimal.
func Calculate(entry, exit time.Time, distanceFeet float64) (float64, error) {
	elapsed := exit.Sub(entry)
	if elapsed == 0 {
		return 0, ErrZeroElapsed
	}
	if elapsed < 0 {
		return 0, ErrNegativeElapsed
	}

	mph := (distanceFeet / feetPerMile) / elapsed.Hours()
	return math.Round(mph*10) / 10, nil
}
