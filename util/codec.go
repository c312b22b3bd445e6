package util

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"github.com/nvr-ai/go-darkroom/images"
)

// ErrUnsupportedFormat is returned when an output extension has no encoder.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Decode sniffs and decodes PNG, JPEG, TIFF or WebP data. The image is
// returned as stored, without applying EXIF orientation.
func Decode(data []byte) (image.Image, string, error) {
	if isWebP(data) {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", errors.Wrap(err, "decode webp")
		}
		return img, "webp", nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "decode image")
	}
	return img, format, nil
}

// DecodeLinear decodes data into linear light. Radiance files are read
// without clipping; everything else goes through Decode, is rotated upright
// per its EXIF orientation and converted from sRGB.
//
// Arguments:
//   - data: The raw file bytes.
//
// Returns:
//   - *images.LinearImage: The upright linear image.
//   - string: The detected format name.
//   - error: If the data cannot be decoded.
func DecodeLinear(data []byte) (*images.LinearImage, string, error) {
	if isRadiance(data) {
		img, err := decodeRadiance(data)
		return img, "hdr", err
	}

	src, format, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	img, err := images.FromImage(src)
	if err != nil {
		return nil, "", err
	}
	if o := Orientation(data); o != 1 {
		if img, err = images.Orient(img, o); err != nil {
			return nil, "", err
		}
	}
	return img, format, nil
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// Encode writes img in the format implied by the extension of path.
//
// Arguments:
//   - w: The destination.
//   - path: Only its extension is used.
//   - img: The image to encode. 16-bit images stay 16-bit for PNG and TIFF.
//     The .hdr extension requires an hdr.Image such as the one HDR returns.
//
// Returns:
//   - error: ErrUnsupportedFormat or the encoder's error.
func Encode(w io.Writer, path string, img image.Image) error {
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		err = png.Encode(w, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case ".tif", ".tiff":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".webp":
		err = webp.Encode(w, img, &webp.Options{Lossless: true})
	case ".hdr":
		h, ok := img.(hdr.Image)
		if !ok {
			return errors.Wrapf(ErrUnsupportedFormat, "hdr output needs an hdr.Image, got %T", img)
		}
		err = rgbe.Encode(w, h)
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "extension %q", ext)
	}
	return errors.Wrapf(err, "encode %s", filepath.Base(path))
}
