package render

// This module implements the effect registry the command endpoint uses to
// turn a stored routine into a live renderable. Effects are compiled in;
// each constructor receives the routine's free form parameter map and the
// pixel count of the target it will drive.

import (
	"github.com/karlmutch/errors"
)

// EffectParams carries the parameters of a stored routine through to the
// effect constructor.
type EffectParams map[string]interface{}

func (p EffectParams) float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func (p EffectParams) str(key string, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// NewEffect constructs the named renderable with numPixels pixels. Unknown
// effect names fail with ErrInvalidArg.
func NewEffect(name string, params EffectParams, numPixels int) (r Renderable, err errors.Error) {
	if numPixels <= 0 {
		return nil, ErrInvalidArg
	}

	switch name {
	case "fill":
		color := HSIPixel{
			H: params.float("hue", 0),
			S: params.float("saturation", 1),
			I: params.float("intensity", 1),
		}
		return NewFillRenderable(numPixels, color), nil

	case "gradient":
		return NewGradientRenderable(numPixels,
			params.str("from", "#000000"),
			params.str("to", "#FFFFFF"),
			int(params.float("speed", 0)))

	default:
		return nil, ErrInvalidArg
	}
}
