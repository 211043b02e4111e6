// Package pipeline orchestrates one analysis request: frame normalization,
// mask acquisition, canonicalization, intensity extraction and baseline
// normalization.
//
// Every invocation owns its own tensor, label image and records; there is no
// shared state between requests, so concurrent analyses of the same source
// cannot interfere. Failures are terminal for the request and surface the
// structured error taxonomy of the component packages; no partial results
// are returned.
package pipeline

import (
	"fmt"
	"log"

	"calcium-tracer/internal/intensity"
	"calcium-tracer/internal/labels"
	"calcium-tracer/internal/segment"
	"calcium-tracer/internal/video"
)

// Options configures one analysis invocation. All collaborators are passed
// explicitly; nothing is read from package state.
type Options struct {
	// VideoPath is the recording to analyze (video container or TIFF stack).
	VideoPath string

	// MaskPath optionally names an uploaded label mask. When empty the
	// Segmenter is run on the first frame instead.
	MaskPath string

	// Segmenter is the segmentation collaborator used when no mask is given.
	Segmenter segment.Segmenter

	// Verbose enables progress logging.
	Verbose bool
}

// Result is the complete, internally consistent output of one analysis.
type Result struct {
	Frames    *video.Tensor
	Labels    *labels.Image // canonical
	IDMap     *labels.IDMap
	Records   []intensity.Record // ordered by (frame, cell_id), Normalized filled
	Baselines intensity.BaselineTable
}

// NumCells returns the number of segmented cells.
func (r *Result) NumCells() int {
	return r.IDMap.Len()
}

// Analyze runs the frame-to-measurement pipeline.
func Analyze(opts Options) (*Result, error) {
	logf := func(format string, args ...any) {
		if opts.Verbose {
			log.Printf(format, args...)
		}
	}

	frames, err := video.Normalize(opts.VideoPath)
	if err != nil {
		return nil, err
	}
	logf("loaded %d frames of %dx%d from %s", frames.Frames, frames.Width, frames.Height, opts.VideoPath)

	var raw *labels.Image
	if opts.MaskPath != "" {
		raw, err = labels.ReadFile(opts.MaskPath)
		if err != nil {
			return nil, err
		}
		logf("loaded mask %dx%d from %s", raw.Width, raw.Height, opts.MaskPath)
	} else {
		if opts.Segmenter == nil {
			return nil, fmt.Errorf("no mask provided and no segmenter configured")
		}
		input := segment.Prepare(frames, 0)
		raw, err = opts.Segmenter.Segment(input)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", segment.ErrSegmentationFailed, err)
		}
		logf("segmented first frame")
	}

	canonical, idmap, err := labels.Canonicalize(raw)
	if err != nil {
		return nil, err
	}
	logf("found %d cells", idmap.Len())

	records, err := intensity.Extract(frames, canonical)
	if err != nil {
		return nil, err
	}

	baselines, err := intensity.NormalizeRecords(records)
	if err != nil {
		return nil, err
	}
	logf("extracted %d records", len(records))

	return &Result{
		Frames:    frames,
		Labels:    canonical,
		IDMap:     idmap,
		Records:   records,
		Baselines: baselines,
	}, nil
}
