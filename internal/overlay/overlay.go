// Package overlay renders label images as colored visualization rasters.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"gocv.io/x/gocv"

	"calcium-tracer/internal/labels"
	"calcium-tracer/pkg/colorutil"
)

// Text size bounds: the font scales inversely with image size between these.
const (
	defaultMinFontScale = 0.3
	defaultMaxFontScale = 0.7
	fontScaleReference  = 400.0
)

// Outline pass offsets around the ID text, so labels stay legible over any
// cell color.
var outlineOffsets = [][2]int{
	{-1, -1}, {-1, 1}, {1, -1}, {1, 1},
	{-2, 0}, {2, 0}, {0, -2}, {0, 2},
}

// Options configures overlay rendering.
type Options struct {
	IncludeIDs bool // draw each cell's sequential ID at its centroid

	// Weights optionally weights the centroid computation per pixel
	// (row-major, mask-sized). Nil means unweighted binary membership.
	Weights []float64

	MinFontScale float64
	MaxFontScale float64
}

// DefaultOptions returns overlay options matching the mask preview output.
func DefaultOptions() Options {
	return Options{
		IncludeIDs:   true,
		MinFontScale: defaultMinFontScale,
		MaxFontScale: defaultMaxFontScale,
	}
}

// Render paints every cell with its palette color (background stays black)
// and optionally draws each sequential ID at the cell centroid as white text
// with a black outline. The output has the mask's dimensions.
func Render(mask *labels.Image, palette []color.RGBA, opts Options) (*image.RGBA, error) {
	cells := mask.Cells()
	if len(cells) > 0 && int(cells[len(cells)-1]) > len(palette) {
		return nil, fmt.Errorf("palette has %d colors but mask has cell %d",
			len(palette), cells[len(cells)-1])
	}
	if opts.Weights != nil && len(opts.Weights) != mask.Width*mask.Height {
		return nil, fmt.Errorf("weight map has %d entries, want %d",
			len(opts.Weights), mask.Width*mask.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, mask.Width, mask.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{colorutil.Black}, image.Point{}, draw.Src)

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if v := mask.At(x, y); v > 0 {
				img.SetRGBA(x, y, palette[v-1])
			}
		}
	}

	if !opts.IncludeIDs {
		return img, nil
	}
	return drawIDs(img, mask, cells, opts)
}

// Centroid returns the (possibly weighted) mean pixel coordinate of a cell.
// ok is false when the cell has no member pixels or zero total weight.
func Centroid(mask *labels.Image, id int32, weights []float64) (cx, cy float64, ok bool) {
	var sumX, sumY, sumW float64
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y) != id {
				continue
			}
			w := 1.0
			if weights != nil {
				w = weights[y*mask.Width+x]
			}
			sumX += float64(x) * w
			sumY += float64(y) * w
			sumW += w
		}
	}
	if sumW == 0 {
		return 0, 0, false
	}
	return sumX / sumW, sumY / sumW, true
}

// drawIDs stamps cell IDs at their centroids using an outline pass followed
// by a white fill pass.
func drawIDs(img *image.RGBA, mask *labels.Image, cells []int32, opts Options) (*image.RGBA, error) {
	minScale, maxScale := opts.MinFontScale, opts.MaxFontScale
	if minScale == 0 {
		minScale = defaultMinFontScale
	}
	if maxScale == 0 {
		maxScale = defaultMaxFontScale
	}

	maxDim := mask.Width
	if mask.Height > maxDim {
		maxDim = mask.Height
	}
	fontScale := fontScaleReference / float64(maxDim)
	if fontScale < minScale {
		fontScale = minScale
	}
	if fontScale > maxScale {
		fontScale = maxScale
	}

	mat, err := matFromRGBA(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	for _, id := range cells {
		cx, cy, ok := Centroid(mask, id, opts.Weights)
		if !ok {
			continue
		}
		text := fmt.Sprintf("%d", id)
		origin := image.Pt(int(cx), int(cy))

		for _, off := range outlineOffsets {
			gocv.PutText(&mat, text, image.Pt(origin.X+off[0], origin.Y+off[1]),
				gocv.FontHersheySimplex, fontScale, colorutil.Black, 2)
		}
		gocv.PutText(&mat, text, origin, gocv.FontHersheySimplex, fontScale, colorutil.White, 1)
	}

	return rgbaFromMat(mat)
}

// matFromRGBA converts an RGBA image to a BGR Mat.
func matFromRGBA(img *image.RGBA) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			mat.SetUCharAt(y, x*3+0, c.B)
			mat.SetUCharAt(y, x*3+1, c.G)
			mat.SetUCharAt(y, x*3+2, c.R)
		}
	}
	return mat, nil
}

// rgbaFromMat converts a BGR Mat back to an RGBA image.
func rgbaFromMat(mat gocv.Mat) (*image.RGBA, error) {
	decoded, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert overlay: %w", err)
	}
	if rgba, ok := decoded.(*image.RGBA); ok {
		return rgba, nil
	}
	out := image.NewRGBA(decoded.Bounds())
	draw.Draw(out, out.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
	return out, nil
}
