// Package video normalizes video and TIFF-stack sources into a canonical
// frame tensor for intensity analysis.
package video

import (
	"errors"
	"fmt"
	"image"

	"gonum.org/v1/gonum/floats"
)

// Channels is fixed at 3: grayscale sources are replicated to RGB and alpha
// channels are dropped during normalization.
const Channels = 3

// Errors reported by source normalization.
var (
	// ErrUnreadableSource means no frames could be read from the input.
	ErrUnreadableSource = errors.New("unreadable source")

	// ErrInconsistentFrameShape means frames in one source differ in size.
	ErrInconsistentFrameShape = errors.New("inconsistent frame shape")
)

// Tensor is an immutable-by-convention (frames, height, width, 3) stack of
// frames. Samples keep the source's native numeric range; only preview
// encoding rescales to 8-bit. Each analysis request owns its own Tensor.
type Tensor struct {
	Frames int
	Height int
	Width  int

	data []float64 // frame-major, row-major, channel-interleaved
}

// NewTensor allocates a zeroed tensor with the given dimensions.
func NewTensor(frames, height, width int) *Tensor {
	return &Tensor{
		Frames: frames,
		Height: height,
		Width:  width,
		data:   make([]float64, frames*height*width*Channels),
	}
}

// At returns the sample at (frame, y, x, channel).
func (t *Tensor) At(frame, y, x, c int) float64 {
	return t.data[((frame*t.Height+y)*t.Width+x)*Channels+c]
}

// Set writes the sample at (frame, y, x, channel).
func (t *Tensor) Set(frame, y, x, c int, v float64) {
	t.data[((frame*t.Height+y)*t.Width+x)*Channels+c] = v
}

// Green returns the middle channel at (frame, y, x). The green channel carries
// the fluorescence reading by convention.
func (t *Tensor) Green(frame, y, x int) float64 {
	return t.At(frame, y, x, 1)
}

// frame returns the sample slice backing one frame.
func (t *Tensor) frame(i int) []float64 {
	size := t.Height * t.Width * Channels
	return t.data[i*size : (i+1)*size]
}

// Preview renders frame i as an 8-bit RGBA image. Samples already within the
// 8-bit range pass through; unit-range data is scaled by 255 and anything
// wider is scaled down by its maximum, mirroring the preview rule used for
// uploaded recordings.
func (t *Tensor) Preview(i int) *image.RGBA {
	if i < 0 || i >= t.Frames {
		return nil
	}

	samples := t.frame(i)
	maxV := floats.Max(samples)

	scale := 1.0
	switch {
	case maxV <= 1:
		scale = 255
	case maxV > 255:
		scale = 255 / maxV
	}

	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			idx := (y*t.Width + x) * Channels
			off := img.PixOffset(x, y)
			img.Pix[off] = clamp8(samples[idx] * scale)
			img.Pix[off+1] = clamp8(samples[idx+1] * scale)
			img.Pix[off+2] = clamp8(samples[idx+2] * scale)
			img.Pix[off+3] = 255
		}
	}
	return img
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// shapeError reports two mismatched frame sizes.
func shapeError(w0, h0, w1, h1 int) error {
	return fmt.Errorf("%w: (%d,%d) vs (%d,%d)", ErrInconsistentFrameShape, h0, w0, h1, w1)
}
