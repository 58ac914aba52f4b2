package plate

import "image"

// MinLocatorConfidence filters candidate plate regions; anything the locator
// is less than half sure about is ignored.
const MinLocatorConfidence = 0.5

// Region is one candidate plate bounding box produced by a Locator.
type Region struct {
	Box        image.Rectangle
	Confidence float64
}

// Locator finds candidate license-plate regions in a decoded image. The
// returned regions are already filtered to Confidence >= MinLocatorConfidence.
type Locator interface {
	Locate(img image.Image) ([]Region, error)
}

// TextReader runs OCR over an enhanced plate crop, restricted to the given
// character allow-list, and returns the recognized text fragments in order.
type TextReader interface {
	ReadText(img image.Image, allowlist string) ([]string, error)
}
