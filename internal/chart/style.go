// Package chart defines the charting collaborator boundary and a built-in
// line renderer for time-series plots.
//
// Style crosses the collaborator boundary as a structured configuration
// object; no plotting code is generated or templated on this side.
package chart

import (
	"image"

	"calcium-tracer/internal/intensity"
)

// Axis column selectors; these name table columns, not display labels.
const (
	XFrame = "frame"
	XTime  = "time_seconds"

	YIntensity  = "intensity"
	YNormalized = "normalized_intensity"
	YDeltaF     = "dF"
)

// Grid style options.
const (
	GridBoth  = "both"
	GridMajor = "major"
	GridNone  = "none"
)

// Y-scale options.
const (
	ScaleLinear = "linear"
	ScaleLog    = "log"
)

// Style is the full configuration accepted by charting collaborators.
// Renderers may ignore options they cannot honor (the built-in renderer
// ignores Smooth and ErrorBands, which need a LOESS-capable backend).
type Style struct {
	Theme          string  `toml:"theme"`
	LineWidth      int     `toml:"line_width"`
	ShowPoints     bool    `toml:"show_points"`
	PointSize      int     `toml:"point_size"`
	FillAlpha      float64 `toml:"fill_alpha"`
	Palette        string  `toml:"palette"`
	Background     string  `toml:"background"`
	GridColor      string  `toml:"grid_color"`
	GridStyle      string  `toml:"grid_style"`
	YScale         string  `toml:"y_scale"`
	AxisTextSize   int     `toml:"axis_text_size"`
	LegendPosition string  `toml:"legend_position"`
	Smooth         bool    `toml:"smooth"`
	SmoothSpan     float64 `toml:"smooth_span"`
	ErrorBands     bool    `toml:"error_bands"`
}

// DefaultStyle returns the default chart styling.
func DefaultStyle() Style {
	return Style{
		Theme:          "minimal",
		LineWidth:      1,
		ShowPoints:     false,
		PointSize:      2,
		FillAlpha:      0,
		Palette:        "Set1",
		GridColor:      "grey80",
		GridStyle:      GridBoth,
		YScale:         ScaleLinear,
		AxisTextSize:   10,
		LegendPosition: "right",
		Smooth:         false,
		SmoothSpan:     0.75,
		ErrorBands:     false,
	}
}

// Renderer is the charting collaborator contract: given a measurement table
// in the shared column shape, axis selectors, and a style, produce a raster.
type Renderer interface {
	Render(rows []intensity.Record, xAxis, yAxis string, style Style) (image.Image, error)
}
