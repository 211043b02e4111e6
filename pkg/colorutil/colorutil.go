// Package colorutil provides shared color utilities for the calcium tracer application.
package colorutil

import (
	"image/color"
	"math"
)

// Common overlay colors used throughout the application.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Grey  = color.RGBA{R: 204, G: 204, B: 204, A: 255}
)

// Fixed saturation/value used for generated cell palettes. These are part of
// the measurement output's documented color policy; changing them would
// silently alter rendered overlays and charts.
const (
	paletteSaturation = 0.8
	paletteValue      = 0.9

	// Overlay colors are dimmed so white ID text stays legible on top.
	overlayDimFactor = 0.7
)

// HSVToRGB converts HSV (H, S, V all in 0-1) to RGB (0-255).
func HSVToRGB(h, s, v float64) (r, g, b uint8) {
	h = h - math.Floor(h) // wrap hue into [0,1)

	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var rf, gf, bf float64
	switch i % 6 {
	case 0:
		rf, gf, bf = v, t, p
	case 1:
		rf, gf, bf = q, v, p
	case 2:
		rf, gf, bf = p, v, t
	case 3:
		rf, gf, bf = p, q, v
	case 4:
		rf, gf, bf = t, p, v
	case 5:
		rf, gf, bf = v, p, q
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

// Palette generates n visually distinct colors by spacing hues evenly over the
// unit circle at fixed saturation and value. Deterministic for a given n;
// n == 0 yields an empty slice.
func Palette(n int) []color.RGBA {
	colors := make([]color.RGBA, 0, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := HSVToRGB(hue, paletteSaturation, paletteValue)
		colors = append(colors, color.RGBA{R: r, G: g, B: b, A: 255})
	}
	return colors
}

// OverlayPalette generates the dimmed variant of Palette used when painting
// label masks, where full-brightness colors would wash out the ID text.
func OverlayPalette(n int) []color.RGBA {
	colors := Palette(n)
	for i, c := range colors {
		colors[i] = color.RGBA{
			R: uint8(float64(c.R) * overlayDimFactor),
			G: uint8(float64(c.G) * overlayDimFactor),
			B: uint8(float64(c.B) * overlayDimFactor),
			A: c.A,
		}
	}
	return colors
}

// Named ColorBrewer qualitative palettes used for small series counts in
// charts. Beyond the palette size callers fall back to Palette.
var brewerPalettes = map[string][]color.RGBA{
	"Set1": {
		{R: 0xe4, G: 0x1a, B: 0x1c, A: 255},
		{R: 0x37, G: 0x7e, B: 0xb8, A: 255},
		{R: 0x4d, G: 0xaf, B: 0x4a, A: 255},
		{R: 0x98, G: 0x4e, B: 0xa3, A: 255},
		{R: 0xff, G: 0x7f, B: 0x00, A: 255},
		{R: 0xff, G: 0xff, B: 0x33, A: 255},
		{R: 0xa6, G: 0x56, B: 0x28, A: 255},
		{R: 0xf7, G: 0x81, B: 0xbf, A: 255},
		{R: 0x99, G: 0x99, B: 0x99, A: 255},
	},
	"Set2": {
		{R: 0x66, G: 0xc2, B: 0xa5, A: 255},
		{R: 0xfc, G: 0x8d, B: 0x62, A: 255},
		{R: 0x8d, G: 0xa0, B: 0xcb, A: 255},
		{R: 0xe7, G: 0x8a, B: 0xc3, A: 255},
		{R: 0xa6, G: 0xd8, B: 0x54, A: 255},
		{R: 0xff, G: 0xd9, B: 0x2f, A: 255},
		{R: 0xe5, G: 0xc4, B: 0x94, A: 255},
		{R: 0xb3, G: 0xb3, B: 0xb3, A: 255},
	},
	"Dark2": {
		{R: 0x1b, G: 0x9e, B: 0x77, A: 255},
		{R: 0xd9, G: 0x5f, B: 0x02, A: 255},
		{R: 0x75, G: 0x70, B: 0xb3, A: 255},
		{R: 0xe7, G: 0x29, B: 0x8a, A: 255},
		{R: 0x66, G: 0xa6, B: 0x1e, A: 255},
		{R: 0xe6, G: 0xab, B: 0x02, A: 255},
		{R: 0xa6, G: 0x76, B: 0x1d, A: 255},
		{R: 0x66, G: 0x66, B: 0x66, A: 255},
	},
}

// Brewer returns the named qualitative palette, or Set1 if the name is unknown.
func Brewer(name string) []color.RGBA {
	if p, ok := brewerPalettes[name]; ok {
		return p
	}
	return brewerPalettes["Set1"]
}

// SeriesPalette picks chart colors for n series: the named palette when it is
// large enough, generated HSV colors otherwise.
func SeriesPalette(name string, n int) []color.RGBA {
	named := Brewer(name)
	if n <= len(named) {
		return named[:n]
	}
	return Palette(n)
}
