package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// Enhance prepares a cropped plate region for OCR: grayscale conversion,
// median smoothing to knock out noise without blurring character edges, then
// binarization at an automatically chosen threshold. Low-contrast plates read
// far better after this pass.
func Enhance(img image.Image) *image.Gray {
	gray := effect.Grayscale(img)
	smoothed := effect.Median(gray, 3)
	return segment.Threshold(smoothed, otsuLevel(smoothed))
}

// otsuLevel picks the binarization threshold that maximizes between-class
// variance over the grayscale histogram (Otsu's method).
func otsuLevel(img *image.RGBA) uint8 {
	var hist [256]int
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// Grayscale input, so any channel carries the luminance.
			i := img.PixOffset(x, y)
			hist[img.Pix[i]]++
		}
	}

	var sum float64
	for level, count := range hist {
		sum += float64(level) * float64(count)
	}

	var sumBack, weightBack float64
	var bestLevel uint8
	var bestVariance float64

	for level := 0; level < 256; level++ {
		weightBack += float64(hist[level])
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}

		sumBack += float64(level) * float64(hist[level])
		meanBack := sumBack / weightBack
		meanFore := (sum - sumBack) / weightFore

		variance := weightBack * weightFore * (meanBack - meanFore) * (meanBack - meanFore)
		if variance > bestVariance {
			bestVariance = variance
			bestLevel = uint8(level)
		}
	}

	// The split point separates levels <= bestLevel from the rest, and the
	// threshold filter sends pixels >= level to white, so cut one above.
	if bestLevel < 255 {
		bestLevel++
	}
	return bestLevel
}

// ExpandRect grows a bounding box by the given fraction of its width and
// height on each side, clamped to the image bounds. Plate crops are expanded
// this way so the box never clips character edges.
func ExpandRect(box image.Rectangle, bounds image.Rectangle, fraction float64) image.Rectangle {
	expandX := int(fraction * float64(box.Dx()))
	expandY := int(fraction * float64(box.Dy()))

	expanded := image.Rect(
		box.Min.X-expandX,
		box.Min.Y-expandY,
		box.Max.X+expandX,
		box.Max.Y+expandY,
	)
	return expanded.Intersect(bounds)
}
