package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"time"

	disintegration "github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrUndecodable reports raw bytes that no decode attempt could turn into a
// usable pixel grid.
var ErrUndecodable = errors.New("could not decode image")

// RawImage is a decoded pixel grid plus the capture timestamp embedded in the
// source bytes, when one exists.
type RawImage struct {
	Pixels     image.Image
	CapturedAt *time.Time
}

// Normalize decodes raw bytes into a RawImage. The capture timestamp is
// best-effort: absence or a parse failure leaves CapturedAt nil.
func Normalize(raw []byte, loc *time.Location) (*RawImage, error) {
	img, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return &RawImage{
		Pixels:     img,
		CapturedAt: CaptureTime(raw, loc),
	}, nil
}

// Decode turns raw bytes into a 3-channel image. The primary attempt uses the
// registered stdlib decoders; on failure it retries through the imaging
// library's decode path, which also honors EXIF orientation. Images carrying
// an alpha channel are flattened onto white.
func Decode(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		img, err = disintegration.Decode(bytes.NewReader(raw), disintegration.AutoOrientation(true))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
		}
	}
	return flattenAlpha(img), nil
}

// flattenAlpha composites images with an alpha channel over a white
// background so downstream processing always sees three channels.
func flattenAlpha(img image.Image) image.Image {
	switch img.(type) {
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64:
	default:
		return img
	}

	bounds := img.Bounds()
	flat := image.NewNRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}
