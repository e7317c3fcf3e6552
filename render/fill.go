package render

// The simplest renderable: paints every pixel with one constant color.

import (
	"github.com/karlmutch/errors"
)

// FillRenderable fills its entire buffer with a single HSI color each frame.
type FillRenderable struct {
	BaseRenderable

	Color HSIPixel
}

// NewFillRenderable returns a fill renderable of numPixels pixels in the
// given color.
func NewFillRenderable(numPixels int, color HSIPixel) *FillRenderable {
	f := &FillRenderable{Color: color}
	f.Init(numPixels)
	return f
}

// Render populates the buffer with the fill color.
func (f *FillRenderable) Render() (err errors.Error) {
	buf := f.Pixels()
	for i := range buf {
		buf[i] = f.Color
	}
	return nil
}
