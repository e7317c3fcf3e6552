package render

// This module implements a two color gradient renderable. The endpoint
// colors are blended in Lab space so the ramp stays perceptually even, and
// the gradient can optionally scroll across the strip a configurable number
// of pixels per frame.

import (
	"math"

	"github.com/go-stack/stack"
	"github.com/karlmutch/errors"

	"github.com/lucasb-eyer/go-colorful"
)

// GradientRenderable blends between two colors across the pixel range.
type GradientRenderable struct {
	BaseRenderable

	from colorful.Color
	to   colorful.Color

	// pixels the gradient advances each frame, 0 for a static ramp
	speed int

	offset int
}

// NewGradientRenderable builds a gradient renderable from hex color strings
// such as "#36FF1F".
func NewGradientRenderable(numPixels int, fromHex string, toHex string, speed int) (r *GradientRenderable, err errors.Error) {
	from, errGo := colorful.Hex(fromHex)
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("color", fromHex).With("stack", stack.Trace().TrimRuntime())
	}

	to, errGo := colorful.Hex(toHex)
	if errGo != nil {
		return nil, errors.Wrap(errGo).With("color", toHex).With("stack", stack.Trace().TrimRuntime())
	}

	r = &GradientRenderable{
		from:  from,
		to:    to,
		speed: speed,
	}
	r.Init(numPixels)
	return r, nil
}

// Prepare advances the scroll offset for the coming frame.
func (g *GradientRenderable) Prepare() {
	g.offset += g.speed
}

// Render populates the buffer with the blended ramp, rotated by the current
// scroll offset.
func (g *GradientRenderable) Render() (err errors.Error) {
	buf := g.Pixels()
	n := len(buf)
	if n == 0 {
		return nil
	}

	for i := range buf {
		pos := ((i + g.offset) % n + n) % n

		t := 0.0
		if n > 1 {
			t = float64(pos) / float64(n-1)
		}

		h, s, v := g.from.BlendLab(g.to, t).Clamped().Hsv()
		buf[i] = HSIPixel{H: math.Mod(h, 360), S: s, I: v}
	}
	return nil
}
