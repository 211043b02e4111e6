// Package labels canonicalizes cell label images.
//
// Segmentation sources produce label images with arbitrary, possibly sparse
// positive IDs. Canonicalization maps them onto the dense sequential scheme
// 1..N that the rest of the pipeline assumes, while preserving the spatial
// partition exactly.
//
// Axis reduction note: RGB-encoded masks are reduced to a single plane, and
// the two ingestion paths disagree on which one. Recording analysis takes the
// green plane (PlaneGreen); the standalone mask preview takes the red plane
// (PlaneRed). The asymmetry is inherited from the system this replaced and is
// kept pending product-owner confirmation.
package labels

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"

	"calcium-tracer/internal/tiffstack"
)

// ErrNoCellsDetected means a label image contains only background.
var ErrNoCellsDetected = errors.New("no cells detected in label image")

// Image is a 2-D grid of cell labels. 0 is background; positive values are
// cell IDs. After Canonicalize the positive values are exactly 1..N.
type Image struct {
	Width  int
	Height int
	Pix    []int32 // row-major
}

// NewImage allocates a zeroed (all-background) label image.
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]int32, width*height)}
}

// At returns the label at (x, y).
func (m *Image) At(x, y int) int32 {
	return m.Pix[y*m.Width+x]
}

// Set writes the label at (x, y).
func (m *Image) Set(x, y int, v int32) {
	m.Pix[y*m.Width+x] = v
}

// Cells returns the sorted distinct positive labels present.
func (m *Image) Cells() []int32 {
	seen := make(map[int32]bool)
	for _, v := range m.Pix {
		if v > 0 {
			seen[v] = true
		}
	}
	cells := make([]int32, 0, len(seen))
	for v := range seen {
		cells = append(cells, v)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	return cells
}

// IsCanonical reports whether the positive labels are exactly 1..N.
func (m *Image) IsCanonical() bool {
	cells := m.Cells()
	for i, v := range cells {
		if v != int32(i+1) {
			return false
		}
	}
	return true
}

// IDMap records the bijection between original label values and the
// sequential IDs assigned during canonicalization. Sequential IDs follow the
// ascending order of the original values.
type IDMap struct {
	originals []int32         // index i holds the original ID for sequential ID i+1
	forward   map[int32]int32 // original -> sequential
}

// Len returns the number of cells.
func (im *IDMap) Len() int {
	return len(im.originals)
}

// Sequential returns the sequential ID for an original label value.
func (im *IDMap) Sequential(original int32) (int32, bool) {
	seq, ok := im.forward[original]
	return seq, ok
}

// Original returns the original label value for a sequential ID.
func (im *IDMap) Original(sequential int32) (int32, bool) {
	if sequential < 1 || int(sequential) > len(im.originals) {
		return 0, false
	}
	return im.originals[sequential-1], true
}

// Originals returns the original IDs in sequential order.
func (im *IDMap) Originals() []int32 {
	out := make([]int32, len(im.originals))
	copy(out, im.originals)
	return out
}

// Canonicalize rewrites a raw label image so its positive values are exactly
// 1..N, assigned in ascending order of the original values, and returns the
// original-to-sequential map. The input is not modified. Canonicalizing an
// already canonical image yields an equal image and the identity map.
func Canonicalize(raw *Image) (*Image, *IDMap, error) {
	cells := raw.Cells()
	if len(cells) == 0 {
		return nil, nil, ErrNoCellsDetected
	}

	idmap := &IDMap{
		originals: cells,
		forward:   make(map[int32]int32, len(cells)),
	}
	for i, original := range cells {
		idmap.forward[original] = int32(i + 1)
	}

	out := NewImage(raw.Width, raw.Height)
	for i, v := range raw.Pix {
		if v > 0 {
			out.Pix[i] = idmap.forward[v]
		}
	}
	return out, idmap, nil
}

// Plane selects which channel of an RGB-encoded mask carries the labels.
// Single-channel masks pass through regardless of the plane.
type Plane int

const (
	// PlaneGreen is the reduction rule for recording analysis.
	PlaneGreen Plane = 1

	// PlaneRed is the reduction rule for the standalone mask preview.
	PlaneRed Plane = 0
)

// ReduceStack reduces a label volume using the recording-analysis rule.
func ReduceStack(stack *tiffstack.Stack) (*Image, error) {
	return ReduceStackPlane(stack, PlaneGreen)
}

// ReduceStackPlane reduces a possibly higher-dimensional label volume to 2-D:
// a 3-channel page contributes the selected plane, any extra page axis
// contributes slice 0, and single-channel data passes through. Values are
// rounded to the nearest integer label.
func ReduceStackPlane(stack *tiffstack.Stack, plane Plane) (*Image, error) {
	if len(stack.Pages) == 0 {
		return nil, fmt.Errorf("label volume contains no pages")
	}
	page := &stack.Pages[0]

	channel := 0
	if page.Channels == 3 {
		channel = int(plane)
	}
	if channel >= page.Channels {
		return nil, fmt.Errorf("label volume has no channel %d", channel)
	}

	img := NewImage(page.Width, page.Height)
	for y := 0; y < page.Height; y++ {
		for x := 0; x < page.Width; x++ {
			img.Set(x, y, int32(page.At(x, y, channel)+0.5))
		}
	}
	return img, nil
}

// ReadFile loads a mask file as a raw (not yet canonical) label image using
// the recording-analysis reduction rule.
func ReadFile(path string) (*Image, error) {
	return ReadFilePlane(path, PlaneGreen)
}

// ReadFilePlane loads a mask file as a raw (not yet canonical) label image,
// reducing RGB data by the given plane. TIFF-family files may be
// multi-dimensional; PNG and JPEG masks are reduced the same way.
func ReadFilePlane(path string, plane Plane) (*Image, error) {
	if tiffstack.IsTIFFPath(path) {
		stack, err := tiffstack.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read mask %s: %w", path, err)
		}
		return ReduceStackPlane(stack, plane)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mask: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask: %w", err)
	}
	return ReduceStackPlane(&tiffstack.Stack{Pages: []tiffstack.Page{*tiffstack.PageFromImage(img)}}, plane)
}
