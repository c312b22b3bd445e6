package util

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-darkroom/images"
)

func testImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 6, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 40), G: uint8(y * 60), B: 128, A: 255})
		}
	}
	return img
}

func TestLoadDirectoryImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.TIFF", "c.webp", "notes.txt", "d.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.png"), 0o700))

	files, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name())
		assert.Equal(t, filepath.Base(f.Path), string(f.Data))
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}

func TestLoadDirectoryMissing(t *testing.T) {
	_, err := LoadDirectoryImageFiles(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	src := testImage()
	for _, ext := range []string{".png", ".tiff", ".webp"} {
		t.Run(ext, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, "out"+ext, src))

			img, _, err := Decode(buf.Bytes())
			require.NoError(t, err)
			require.Equal(t, src.Bounds(), img.Bounds())
			for y := 0; y < 4; y++ {
				for x := 0; x < 6; x++ {
					r1, g1, b1, _ := src.At(x, y).RGBA()
					r2, g2, b2, _ := img.At(x, y).RGBA()
					assert.Equal(t, []uint32{r1 >> 8, g1 >> 8, b1 >> 8}, []uint32{r2 >> 8, g2 >> 8, b2 >> 8})
				}
			}
		})
	}
}

func TestEncodeUnsupported(t *testing.T) {
	err := Encode(&bytes.Buffer{}, "out.bmp", testImage())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("x/y/photo.JPG"))
	assert.True(t, IsSupported("scan.tif"))
	assert.True(t, IsSupported("merge.hdr"))
	assert.False(t, IsSupported("raw.cr2"))
}

func TestHDRRoundTripKeepsHeadroom(t *testing.T) {
	src, err := images.NewLinearImage(6, 4)
	require.NoError(t, err)
	for i := range src.R {
		src.R[i] = 0.05 + float32(i)*0.1
		src.G[i] = 2.5
		src.B[i] = 0.25
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, "out.HDR", HDR(src)))

	got, format, err := DecodeLinear(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "hdr", format)
	require.True(t, src.SameSize(got))
	for i := range src.R {
		// RGBE keeps 8 mantissa bits per channel.
		assert.InEpsilon(t, src.R[i], got.R[i], 0.02)
		assert.InEpsilon(t, src.G[i], got.G[i], 0.02)
		assert.InEpsilon(t, src.B[i], got.B[i], 0.02)
	}
}

func TestEncodeHDRNeedsHDRImage(t *testing.T) {
	err := Encode(&bytes.Buffer{}, "out.hdr", testImage())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeLinearPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, "out.png", testImage()))
	assert.Equal(t, 1, Orientation(buf.Bytes()))

	got, format, err := DecodeLinear(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	want, err := images.FromImage(testImage())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeLinearRejectsGarbage(t *testing.T) {
	_, _, err := DecodeLinear([]byte("not an image"))
	assert.Error(t, err)
}
