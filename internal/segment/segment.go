// Package segment defines the cell segmentation collaborator boundary.
//
// The segmentation model proper is external: anything that maps a 2-D uint8
// image to a raw label image satisfies Segmenter. A threshold-based stand-in
// is provided so the pipeline runs end to end without the external model.
package segment

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"calcium-tracer/internal/labels"
	"calcium-tracer/internal/video"
)

// ErrSegmentationFailed wraps any failure of the segmentation collaborator.
var ErrSegmentationFailed = errors.New("segmentation failed")

// Segmenter produces a raw (not yet canonical) label image from a prepared
// 2-D intensity image. 0 is background; positive values are distinct cells.
// Implementations may return sparse or arbitrary IDs; callers canonicalize.
type Segmenter interface {
	Segment(img *image.Gray) (*labels.Image, error)
}

// Prepare extracts the segmentation input from a frame: the green channel
// rescaled to the 8-bit range. Unit-range data is scaled by 255; wider data
// is scaled down by its maximum.
func Prepare(frames *video.Tensor, frame int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, frames.Width, frames.Height))

	maxV := 0.0
	for y := 0; y < frames.Height; y++ {
		for x := 0; x < frames.Width; x++ {
			if v := frames.Green(frame, y, x); v > maxV {
				maxV = v
			}
		}
	}

	scale := 1.0
	switch {
	case maxV == 0:
		scale = 0
	case maxV <= 1:
		scale = 255
	case maxV > 255:
		scale = 255 / maxV
	}

	for y := 0; y < frames.Height; y++ {
		for x := 0; x < frames.Width; x++ {
			v := frames.Green(frame, y, x) * scale
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

// ThresholdSegmenter is a stand-in segmenter: Otsu threshold followed by
// connected component labeling. Useful for bright, well-separated cells and
// for exercising the pipeline without the external model.
type ThresholdSegmenter struct {
	MinArea int // components smaller than this become background
}

// Segment implements Segmenter.
func (s ThresholdSegmenter) Segment(img *image.Gray) (*labels.Image, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty input image", ErrSegmentationFailed)
	}

	gray := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	defer gray.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gray.SetUCharAt(y, x, img.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
		}
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	components := gocv.NewMat()
	defer components.Close()
	gocv.ConnectedComponents(binary, &components)

	mask := labels.NewImage(w, h)
	areas := make(map[int32]int)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := components.GetIntAt(y, x)
			mask.Set(x, y, v)
			if v > 0 {
				areas[v]++
			}
		}
	}

	// Drop speckle components below the area floor.
	if s.MinArea > 0 {
		for i, v := range mask.Pix {
			if v > 0 && areas[v] < s.MinArea {
				mask.Pix[i] = 0
			}
		}
	}

	return mask, nil
}
