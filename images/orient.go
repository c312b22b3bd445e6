package images

import "github.com/pkg/errors"

// Orient applies an EXIF orientation (1-8) so the result displays upright.
// Orientations 5-8 swap width and height. Orientation 1 returns a copy.
//
// Arguments:
//   - src: The decoded image as stored in the file.
//   - orientation: The EXIF Orientation tag value.
//
// Returns:
//   - *LinearImage: The upright image.
//   - error: If src is invalid or orientation is outside 1-8.
func Orient(src *LinearImage, orientation int) (*LinearImage, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if orientation < 1 || orientation > 8 {
		return nil, errors.Errorf("invalid orientation %d", orientation)
	}
	if orientation == 1 {
		return src.Clone(), nil
	}

	w, h := src.Width, src.Height
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	dst, err := NewLinearImage(dw, dh)
	if err != nil {
		return nil, err
	}

	// source maps a destination pixel to its source pixel.
	source := func(x, y int) (int, int) {
		switch orientation {
		case 2:
			return w - 1 - x, y
		case 3:
			return w - 1 - x, h - 1 - y
		case 4:
			return x, h - 1 - y
		case 5:
			return y, x
		case 6:
			return y, h - 1 - x
		case 7:
			return w - 1 - y, h - 1 - x
		default:
			return w - 1 - y, x
		}
	}

	Parallel(dh, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			for x := 0; x < dw; x++ {
				sx, sy := source(x, y)
				s := sy*w + sx
				d := y*dw + x
				dst.R[d] = src.R[s]
				dst.G[d] = src.G[s]
				dst.B[d] = src.B[s]
			}
		}
	})

	return dst, nil
}
