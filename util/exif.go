package util

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// Orientation returns the EXIF orientation of JPEG or TIFF data, or 1 when
// the tag is missing or unreadable.
func Orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}
