package plate

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Engine backs both the Locator and TextReader interfaces with Tesseract.
// Construct it once at startup and share it; each call still uses a fresh
// gosseract client because clients are not safe for concurrent use.
type Engine struct {
	language string

	initOnce sync.Once
	initErr  error
}

func NewEngine(language string) *Engine {
	return &Engine{language: language}
}

// verify opens and closes a throwaway client so a missing tessdata install
// fails at startup instead of on the first request.
func (e *Engine) verify() error {
	e.initOnce.Do(func() {
		client := gosseract.NewClient()
		defer client.Close()
		if err := client.SetLanguage(e.language); err != nil {
			e.initErr = fmt.Errorf("tesseract language %q unavailable: %w", e.language, err)
		}
	})
	return e.initErr
}

// Locate finds text-bearing regions at block level. Block detection stands in
// for a dedicated plate-detection model: it produces bounding boxes with
// confidence scores, filtered at MinLocatorConfidence.
func (e *Engine) Locate(img image.Image) ([]Region, error) {
	if err := e.verify(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	encoded, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	if err := client.SetImageFromBytes(encoded); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_BLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to get text regions: %w", err)
	}

	regions := make([]Region, 0, len(boxes))
	for _, box := range boxes {
		confidence := box.Confidence / 100.0
		if confidence < MinLocatorConfidence {
			continue
		}
		regions = append(regions, Region{
			Box:        box.Box,
			Confidence: confidence,
		})
	}
	return regions, nil
}

// ReadText OCRs an enhanced crop restricted to the allow-list and returns the
// recognized lines as ordered fragments.
func (e *Engine) ReadText(img image.Image, allowlist string) ([]string, error) {
	if err := e.verify(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetWhitelist(allowlist); err != nil {
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}

	encoded, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	if err := client.SetImageFromBytes(encoded); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	return strings.Fields(text), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
