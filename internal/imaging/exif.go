package imaging

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// CaptureTime reads the EXIF DateTimeOriginal tag from raw image bytes and
// localizes it to loc. Returns nil on any failure; timestamp extraction is
// best-effort and never blocks the pipeline.
func CaptureTime(raw []byte, loc *time.Location) *time.Time {
	meta, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}

	tag, err := meta.Get(exif.DateTimeOriginal)
	if err != nil {
		tag, err = meta.Get(exif.DateTime)
		if err != nil {
			return nil
		}
	}

	value, err := tag.StringVal()
	if err != nil {
		return nil
	}

	ts, err := time.ParseInLocation(exifTimeLayout, value, loc)
	if err != nil {
		return nil
	}
	return &ts
}
