package plate

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	disintegration "github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/idevanshrai/RoadVision/internal/domain/detection"
	"github.com/idevanshrai/RoadVision/internal/imaging"
)

// boxExpandFraction widens each located region by 10% of its size per side so
// the crop never clips plate edges.
const boxExpandFraction = 0.1

// Reader turns a decoded image into a PlateReading by composing the plate
// locator and text reader collaborators.
type Reader struct {
	locator    Locator
	textReader TextReader
	imageDir   string
	now        func() time.Time
	log        zerolog.Logger
}

func NewReader(locator Locator, textReader TextReader, imageDir string, log zerolog.Logger) *Reader {
	return &Reader{
		locator:    locator,
		textReader: textReader,
		imageDir:   imageDir,
		now:        time.Now,
		log:        log,
	}
}

// Read locates plate regions, OCRs each expanded and enhanced crop, and
// joins the fragments into one raw-text blob. Multiple regions concatenate;
// the locator's confidence filter is the only disambiguation. The last raw
// crop is persisted as a plate-image artifact when at least one region was
// found. Errors are unexpected internal failures, terminal for the image.
func (r *Reader) Read(raw *imaging.RawImage) (*detection.PlateReading, error) {
	regions, err := r.locator.Locate(raw.Pixels)
	if err != nil {
		return nil, fmt.Errorf("plate location failed: %w", err)
	}

	bounds := raw.Pixels.Bounds()
	var fragments []string
	var lastCrop image.Image

	for _, region := range regions {
		box := imaging.ExpandRect(region.Box, bounds, boxExpandFraction)
		if box.Empty() {
			continue
		}

		crop := disintegration.Crop(raw.Pixels, box)
		lastCrop = crop
		enhanced := imaging.Enhance(crop)

		text, err := r.textReader.ReadText(enhanced, Allowlist)
		if err != nil {
			return nil, fmt.Errorf("plate OCR failed: %w", err)
		}
		fragments = append(fragments, strings.Join(text, " "))
	}

	rawText := strings.TrimSpace(strings.Join(fragments, "\n"))

	reading := &detection.PlateReading{
		RawText:       rawText,
		DetectedState: DetectState(rawText),
	}

	if normalized := Normalize(rawText); normalized != "" {
		reading.NormalizedPlate = &normalized
	}

	if lastCrop != nil {
		if name, err := r.saveCrop(lastCrop); err != nil {
			// The crop artifact is a side product; losing it does not fail
			// the reading.
			r.log.Warn().Err(err).Msg("failed to save plate image")
		} else {
			reading.PlateImageRef = &name
		}
	}

	return reading, nil
}

func (r *Reader) saveCrop(crop image.Image) (string, error) {
	name := fmt.Sprintf("plate_%s_%s.jpg", r.now().Format("20060102_150405"), uuid.NewString()[:8])
	if err := disintegration.Save(crop, filepath.Join(r.imageDir, name)); err != nil {
		return "", fmt.Errorf("failed to save plate crop: %w", err)
	}
	return name, nil
}
