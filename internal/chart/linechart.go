package chart

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"calcium-tracer/internal/intensity"
	"calcium-tracer/internal/results"
	"calcium-tracer/pkg/colorutil"
)

// LineChart is the built-in Renderer: one polyline per cell on a plain
// gridded canvas. It honors palette, line width, points, grid style and
// y-scale; smoothing and error bands are left to external backends.
type LineChart struct {
	Width  int
	Height int
}

// NewLineChart returns a renderer with the standard output size.
func NewLineChart() LineChart {
	return LineChart{Width: 1000, Height: 600}
}

const chartMargin = 40

// Render implements Renderer.
func (c LineChart) Render(rows []intensity.Record, xAxis, yAxis string, style Style) (image.Image, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to plot")
	}

	w, h := c.Width, c.Height
	if w == 0 || h == 0 {
		w, h = 1000, 600
	}

	ids := results.CellIDs(rows)
	palette := colorutil.SeriesPalette(style.Palette, len(ids))

	series := make(map[int][][2]float64, len(ids))
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		x := axisValue(r, xAxis)
		y := axisValue(r, yAxis)
		if style.YScale == ScaleLog {
			if y <= 0 {
				continue // log scale drops non-positive samples
			}
			y = math.Log10(y)
		}
		series[r.CellID] = append(series[r.CellID], [2]float64{x, y})
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	if math.IsInf(minX, 1) {
		return nil, fmt.Errorf("no plottable samples for axes %s/%s", xAxis, yAxis)
	}
	if maxX == minX {
		maxX = minX + 1
	}
	if maxY == minY {
		maxY = minY + 1
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := colorutil.White
	if style.Background != "" {
		bg = parseColor(style.Background, colorutil.White)
	}
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	plot := image.Rect(chartMargin, chartMargin, w-chartMargin, h-chartMargin)

	if style.GridStyle != GridNone {
		drawGrid(img, plot, parseColor(style.GridColor, colorutil.Grey), style.GridStyle == GridBoth)
	}
	drawAxes(img, plot)

	toPx := func(x, y float64) (int, int) {
		px := plot.Min.X + int(float64(plot.Dx())*(x-minX)/(maxX-minX))
		py := plot.Max.Y - int(float64(plot.Dy())*(y-minY)/(maxY-minY))
		return px, py
	}

	lineWidth := style.LineWidth
	if lineWidth < 1 {
		lineWidth = 1
	}

	for i, id := range ids {
		pts := series[id]
		sort.Slice(pts, func(a, b int) bool { return pts[a][0] < pts[b][0] })

		col := palette[i%len(palette)]
		for j := 0; j < len(pts)-1; j++ {
			x1, y1 := toPx(pts[j][0], pts[j][1])
			x2, y2 := toPx(pts[j+1][0], pts[j+1][1])
			drawThickLine(img, x1, y1, x2, y2, lineWidth, col, plot)
		}
		if style.ShowPoints {
			r := style.PointSize
			if r < 1 {
				r = 2
			}
			for _, p := range pts {
				x, y := toPx(p[0], p[1])
				fillCircle(img, x, y, r, col, plot)
			}
		}
	}

	legend := style.LegendPosition
	if legend == "" {
		legend = DefaultStyle().LegendPosition
	}
	if legend != "none" {
		drawLegend(img, plot, ids, palette)
	}
	return img, nil
}

// axisValue picks the table column named by the axis selector.
func axisValue(r intensity.Record, axis string) float64 {
	switch axis {
	case XTime:
		return r.TimeSeconds
	case YIntensity:
		return r.Intensity
	case YNormalized:
		return r.Normalized
	case YDeltaF:
		return r.DF
	default: // XFrame
		return float64(r.Frame)
	}
}

// named R-style colors the original styles referenced.
var namedColors = map[string]color.RGBA{
	"white":  colorutil.White,
	"black":  colorutil.Black,
	"grey80": colorutil.Grey,
	"grey90": {R: 229, G: 229, B: 229, A: 255},
}

func parseColor(name string, fallback color.RGBA) color.RGBA {
	if c, ok := namedColors[name]; ok {
		return c
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(name, "#%02x%02x%02x", &r, &g, &b); err == nil {
		return color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return fallback
}

const gridDivisions = 10

func drawGrid(img *image.RGBA, plot image.Rectangle, col color.RGBA, minor bool) {
	steps := gridDivisions
	if minor {
		steps *= 2
	}
	for i := 0; i <= steps; i++ {
		x := plot.Min.X + i*plot.Dx()/steps
		y := plot.Min.Y + i*plot.Dy()/steps
		for py := plot.Min.Y; py <= plot.Max.Y; py++ {
			img.SetRGBA(x, py, col)
		}
		for px := plot.Min.X; px <= plot.Max.X; px++ {
			img.SetRGBA(px, y, col)
		}
	}
}

func drawAxes(img *image.RGBA, plot image.Rectangle) {
	for x := plot.Min.X; x <= plot.Max.X; x++ {
		img.SetRGBA(x, plot.Max.Y, colorutil.Black)
	}
	for y := plot.Min.Y; y <= plot.Max.Y; y++ {
		img.SetRGBA(plot.Min.X, y, colorutil.Black)
	}
}

const (
	legendSwatch = 10
	legendPitch  = 16
)

// drawLegend paints one color swatch per cell along the right edge.
func drawLegend(img *image.RGBA, plot image.Rectangle, ids []int, palette []color.RGBA) {
	x := plot.Max.X + 8
	for i := range ids {
		y := plot.Min.Y + i*legendPitch
		if y+legendSwatch > plot.Max.Y {
			break
		}
		for dy := 0; dy < legendSwatch; dy++ {
			for dx := 0; dx < legendSwatch; dx++ {
				if x+dx < img.Bounds().Max.X {
					img.SetRGBA(x+dx, y+dy, palette[i%len(palette)])
				}
			}
		}
	}
}

// drawThickLine draws a clipped line with the given thickness.
func drawThickLine(img *image.RGBA, x1, y1, x2, y2, thickness int, c color.RGBA, clip image.Rectangle) {
	dx := float64(x2 - x1)
	dy := float64(y2 - y1)
	length := math.Sqrt(dx*dx + dy*dy)
	if length == 0 {
		fillCircle(img, x1, y1, thickness/2, c, clip)
		return
	}

	// Perpendicular unit vector
	px := -dy / length
	py := dx / length

	halfThick := float64(thickness-1) / 2
	for t := -halfThick; t <= halfThick; t += 1.0 {
		drawLine(img,
			x1+int(px*t), y1+int(py*t),
			x2+int(px*t), y2+int(py*t), c, clip)
	}
}

// drawLine draws a line using Bresenham's algorithm, clipped to a rectangle.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA, clip image.Rectangle) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy
	for {
		if x1 >= clip.Min.X && x1 <= clip.Max.X && y1 >= clip.Min.Y && y1 <= clip.Max.Y {
			img.SetRGBA(x1, y1, c)
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// fillCircle fills a clipped circle with the given color.
func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA, clip image.Rectangle) {
	for y := cy - r; y <= cy+r; y++ {
		if y < clip.Min.Y || y > clip.Max.Y {
			continue
		}
		for x := cx - r; x <= cx+r; x++ {
			if x < clip.Min.X || x > clip.Max.X {
				continue
			}
			ddx, ddy := x-cx, y-cy
			if ddx*ddx+ddy*ddy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
