package render

import (
	"testing"
)

func TestHSIPixelRGB(t *testing.T) {
	tests := []struct {
		name    string
		pixel   HSIPixel
		r, g, b uint8
	}{
		{"black", HSIPixel{H: 0, S: 0, I: 0}, 0, 0, 0},
		{"full red", HSIPixel{H: 0, S: 1, I: 1}, 255, 0, 0},
		{"full green", HSIPixel{H: 120, S: 1, I: 1}, 0, 255, 0},
		{"full blue", HSIPixel{H: 240, S: 1, I: 1}, 0, 0, 255},
		{"white", HSIPixel{H: 0, S: 0, I: 1}, 255, 255, 255},
		{"half red", HSIPixel{H: 0, S: 1, I: 0.5}, 255, 0, 0},
		{"hue wraps", HSIPixel{H: 360, S: 1, I: 1}, 255, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, g, b := tc.pixel.RGB()
			if r != tc.r || g != tc.g || b != tc.b {
				t.Fatalf("RGB() = (%d, %d, %d), expected (%d, %d, %d)",
					r, g, b, tc.r, tc.g, tc.b)
			}
		})
	}
}

func TestHSIPixelScaled(t *testing.T) {
	p := HSIPixel{H: 90, S: 0.5, I: 0.8}

	got := p.Scaled(0.5)
	if got.I != 0.4 || got.H != 90 || got.S != 0.5 {
		t.Fatalf("Scaled(0.5) = %+v", got)
	}

	if got := p.Scaled(10); got.I != 1 {
		t.Fatalf("scaling must clamp intensity, got %v", got.I)
	}
	if got := p.Scaled(-1); got.I != 0 {
		t.Fatalf("scaling must clamp intensity, got %v", got.I)
	}

	// the receiver is untouched
	if p.I != 0.8 {
		t.Fatalf("Scaled mutated its receiver: %+v", p)
	}
}
