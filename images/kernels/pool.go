package kernels

import (
	"sync"

	"github.com/nvr-ai/go-darkroom/images"
)

// Pool lets callers reuse intermediate images to reduce GC pressure when the
// same geometry is filtered repeatedly, such as slider previews.
type Pool struct {
	images sync.Pool // *images.LinearImage
}

// Get returns an image of the given size. Its contents are unspecified; the
// next writer must overwrite every pixel. A nil Pool always allocates.
func (p *Pool) Get(width, height int) (*images.LinearImage, error) {
	if p == nil {
		return images.NewLinearImage(width, height)
	}
	if v := p.images.Get(); v != nil {
		img := v.(*images.LinearImage)
		if img.Width == width && img.Height == height {
			return img, nil
		}
	}
	return images.NewLinearImage(width, height)
}

// Put hands img back for reuse. The caller must not touch it afterwards.
func (p *Pool) Put(img *images.LinearImage) {
	if p == nil || img == nil {
		return
	}
	p.images.Put(img)
}
