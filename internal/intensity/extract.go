// Package intensity computes per-cell fluorescence measurements from a frame
// tensor and a canonical label image.
package intensity

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"calcium-tracer/internal/labels"
	"calcium-tracer/internal/video"
)

// Errors reported during extraction and normalization.
var (
	// ErrEmptySelection means a (frame, cell) pair selected zero pixels.
	ErrEmptySelection = errors.New("empty pixel selection")

	// ErrZeroBaseline means a cell's baseline intensity is exactly zero,
	// making normalization undefined.
	ErrZeroBaseline = errors.New("zero baseline")
)

// DimensionMismatchError reports a mask whose size differs from the frames.
type DimensionMismatchError struct {
	MaskWidth   int
	MaskHeight  int
	FrameWidth  int
	FrameHeight int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("mask shape (%d,%d) does not match frame dimensions (%d,%d)",
		e.MaskHeight, e.MaskWidth, e.FrameHeight, e.FrameWidth)
}

// Record is one per-cell, per-frame measurement. Intensity is the arithmetic
// mean of the green channel over the cell's pixels. Normalized, DF and
// TimeSeconds are filled in by downstream steps.
type Record struct {
	Frame       int
	CellID      int
	Intensity   float64
	Normalized  float64
	DF          float64
	TimeSeconds float64
}

// Extract computes the ordered measurement records for every frame and cell.
// Output is grouped by ascending frame, then ascending cell ID; this ordering
// is part of the contract and holds regardless of internal scheduling.
//
// The mask must match the frame dimensions exactly. Non-canonical masks are
// re-canonicalized defensively so callers that skip canonicalization still
// get contiguous cell IDs.
func Extract(frames *video.Tensor, mask *labels.Image) ([]Record, error) {
	if mask.Width != frames.Width || mask.Height != frames.Height {
		return nil, &DimensionMismatchError{
			MaskWidth:   mask.Width,
			MaskHeight:  mask.Height,
			FrameWidth:  frames.Width,
			FrameHeight: frames.Height,
		}
	}

	if !mask.IsCanonical() {
		canonical, _, err := labels.Canonicalize(mask)
		if err != nil {
			return nil, err
		}
		mask = canonical
	}

	cells := mask.Cells()
	if len(cells) == 0 {
		return nil, labels.ErrNoCellsDetected
	}
	n := len(cells)

	// Membership is frame-independent: gather each cell's pixel offsets once.
	members := make([][]int, n)
	for i, v := range mask.Pix {
		if v > 0 {
			members[v-1] = append(members[v-1], i)
		}
	}
	// Invariant check: a canonical mask has member pixels for every ID in
	// 1..N, so this cannot trip after the re-canonicalization above. It
	// guards the mean computation against a division by zero if that ever
	// regresses.
	for id := 1; id <= n; id++ {
		if len(members[id-1]) == 0 {
			return nil, fmt.Errorf("%w: cell %d has no member pixels", ErrEmptySelection, id)
		}
	}

	// Frames are independent, so extraction fans out across workers. Each
	// frame writes into its own slot, keeping the final order canonical.
	means := make([][]float64, frames.Frames)
	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := runtime.NumCPU()
	if workers > frames.Frames {
		workers = frames.Frames
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				means[f] = frameMeans(frames, f, members)
			}
		}()
	}
	for f := 0; f < frames.Frames; f++ {
		jobs <- f
	}
	close(jobs)
	wg.Wait()

	records := make([]Record, 0, frames.Frames*n)
	for f := 0; f < frames.Frames; f++ {
		for id := 1; id <= n; id++ {
			records = append(records, Record{
				Frame:     f,
				CellID:    id,
				Intensity: means[f][id-1],
			})
		}
	}
	return records, nil
}

// frameMeans computes the green-channel mean for every cell in one frame.
func frameMeans(frames *video.Tensor, frame int, members [][]int) []float64 {
	out := make([]float64, len(members))
	for i, offsets := range members {
		sum := 0.0
		for _, off := range offsets {
			y := off / frames.Width
			x := off % frames.Width
			sum += frames.Green(frame, y, x)
		}
		out[i] = sum / float64(len(offsets))
	}
	return out
}
