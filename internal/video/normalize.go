package video

import (
	"fmt"

	"gocv.io/x/gocv"

	"calcium-tracer/internal/tiffstack"
)

// Normalize loads a video or TIFF-stack source and produces the canonical
// (N, H, W, 3) tensor. TIFF-family paths are read page by page; everything
// else is handed to the video decoder.
func Normalize(path string) (*Tensor, error) {
	if tiffstack.IsTIFFPath(path) {
		stack, err := tiffstack.Read(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
		}
		return fromStack(stack)
	}
	return fromVideo(path)
}

// fromVideo decodes a video container frame by frame. A read failure stops
// decoding but keeps the frames read so far.
func fromVideo(path string) (*Tensor, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
	}
	defer capture.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	rgb := gocv.NewMat()
	defer rgb.Close()

	var tensor *Tensor
	n := 0
	for capture.Read(&frame) {
		if frame.Empty() {
			break
		}
		gocv.CvtColor(frame, &rgb, gocv.ColorBGRToRGB)

		h, w := rgb.Rows(), rgb.Cols()
		if tensor == nil {
			// Frame count is unknown up front; grow one frame at a time.
			tensor = NewTensor(0, h, w)
		} else if h != tensor.Height || w != tensor.Width {
			return nil, shapeError(tensor.Width, tensor.Height, w, h)
		}

		size := h * w * Channels
		tensor.data = append(tensor.data, make([]float64, size)...)
		dst := tensor.data[n*size:]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				idx := (y*w + x) * Channels
				dst[idx] = float64(rgb.GetUCharAt(y, x*3))
				dst[idx+1] = float64(rgb.GetUCharAt(y, x*3+1))
				dst[idx+2] = float64(rgb.GetUCharAt(y, x*3+2))
			}
		}
		n++
	}

	if tensor == nil || n == 0 {
		return nil, fmt.Errorf("%w: no frames decoded from %s", ErrUnreadableSource, path)
	}
	tensor.Frames = n
	return tensor, nil
}

// fromStack normalizes decoded TIFF pages into the canonical tensor,
// applying the channel expansion rules: 1 channel replicates to 3, 4 channels
// drop alpha, 3 channels pass through.
func fromStack(stack *tiffstack.Stack) (*Tensor, error) {
	if len(stack.Pages) == 0 {
		return nil, fmt.Errorf("%w: empty stack", ErrUnreadableSource)
	}

	first := stack.Pages[0]
	tensor := NewTensor(len(stack.Pages), first.Height, first.Width)

	for i := range stack.Pages {
		page := &stack.Pages[i]
		if page.Width != first.Width || page.Height != first.Height {
			return nil, shapeError(first.Width, first.Height, page.Width, page.Height)
		}

		switch page.Channels {
		case 1, 3, 4:
		default:
			return nil, fmt.Errorf("%w: unsupported channel count %d", ErrUnreadableSource, page.Channels)
		}

		for y := 0; y < page.Height; y++ {
			for x := 0; x < page.Width; x++ {
				switch page.Channels {
				case 1:
					v := page.At(x, y, 0)
					tensor.Set(i, y, x, 0, v)
					tensor.Set(i, y, x, 1, v)
					tensor.Set(i, y, x, 2, v)
				default: // 3 or 4: alpha, if present, is dropped
					tensor.Set(i, y, x, 0, page.At(x, y, 0))
					tensor.Set(i, y, x, 1, page.At(x, y, 1))
					tensor.Set(i, y, x, 2, page.At(x, y, 2))
				}
			}
		}
	}

	return tensor, nil
}
