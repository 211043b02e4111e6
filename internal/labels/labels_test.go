package labels

import (
	"errors"
	"reflect"
	"testing"

	"calcium-tracer/internal/tiffstack"
)

// scenarioMask is the 4x4 mask with sparse IDs 5 and 7.
func scenarioMask() *Image {
	m := NewImage(4, 4)
	m.Pix = []int32{
		0, 0, 5, 5,
		0, 0, 5, 5,
		7, 7, 0, 0,
		7, 7, 0, 0,
	}
	return m
}

func TestCanonicalizeSparseIDs(t *testing.T) {
	canonical, idmap, err := Canonicalize(scenarioMask())
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	if idmap.Len() != 2 {
		t.Fatalf("expected 2 cells, got %d", idmap.Len())
	}
	if seq, _ := idmap.Sequential(5); seq != 1 {
		t.Fatalf("original 5 should map to 1, got %d", seq)
	}
	if seq, _ := idmap.Sequential(7); seq != 2 {
		t.Fatalf("original 7 should map to 2, got %d", seq)
	}
	if orig, _ := idmap.Original(2); orig != 7 {
		t.Fatalf("sequential 2 should map back to 7, got %d", orig)
	}

	want := []int32{
		0, 0, 1, 1,
		0, 0, 1, 1,
		2, 2, 0, 0,
		2, 2, 0, 0,
	}
	if !reflect.DeepEqual(canonical.Pix, want) {
		t.Fatalf("canonical pixels = %v", canonical.Pix)
	}
	if !canonical.IsCanonical() {
		t.Fatalf("output not canonical")
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	once, _, err := Canonicalize(scenarioMask())
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	twice, idmap, err := Canonicalize(once)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if !reflect.DeepEqual(twice.Pix, once.Pix) {
		t.Fatalf("second canonicalization changed pixels")
	}
	for _, id := range []int32{1, 2} {
		if seq, _ := idmap.Sequential(id); seq != id {
			t.Fatalf("identity map expected, %d -> %d", id, seq)
		}
	}
}

func TestCanonicalizePreservesPartition(t *testing.T) {
	raw := NewImage(3, 3)
	raw.Pix = []int32{9, 9, 2, 2, 0, 40, 40, 2, 9}

	canonical, _, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}

	for i := range raw.Pix {
		for j := range raw.Pix {
			sameBefore := raw.Pix[i] == raw.Pix[j]
			sameAfter := canonical.Pix[i] == canonical.Pix[j]
			if sameBefore != sameAfter {
				t.Fatalf("pixels %d and %d changed cell membership", i, j)
			}
		}
	}
	// Background must stay background.
	if canonical.Pix[4] != 0 {
		t.Fatalf("background pixel relabeled to %d", canonical.Pix[4])
	}
}

func TestCanonicalizeEmptyMask(t *testing.T) {
	_, _, err := Canonicalize(NewImage(8, 8))
	if !errors.Is(err, ErrNoCellsDetected) {
		t.Fatalf("expected ErrNoCellsDetected, got %v", err)
	}
}

func TestCanonicalizeDoesNotMutateInput(t *testing.T) {
	raw := scenarioMask()
	before := append([]int32(nil), raw.Pix...)
	if _, _, err := Canonicalize(raw); err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	if !reflect.DeepEqual(raw.Pix, before) {
		t.Fatalf("input mask was mutated")
	}
}

func TestReduceStackGreenChannel(t *testing.T) {
	// RGB-encoded mask: labels live in the green plane.
	page := tiffstack.Page{Width: 2, Height: 1, Channels: 3, Samples: []float64{
		9, 3, 9, // pixel (0,0): R=9 G=3 B=9
		9, 0, 9, // pixel (1,0)
	}}
	img, err := ReduceStack(&tiffstack.Stack{Pages: []tiffstack.Page{page}})
	if err != nil {
		t.Fatalf("ReduceStack: %v", err)
	}
	if img.At(0, 0) != 3 || img.At(1, 0) != 0 {
		t.Fatalf("green plane not selected: %v", img.Pix)
	}
}

func TestReduceStackRedPlane(t *testing.T) {
	// The standalone mask preview reads the red plane, not the green one.
	page := tiffstack.Page{Width: 1, Height: 1, Channels: 3, Samples: []float64{9, 3, 0}}
	stack := &tiffstack.Stack{Pages: []tiffstack.Page{page}}

	img, err := ReduceStackPlane(stack, PlaneRed)
	if err != nil {
		t.Fatalf("ReduceStackPlane: %v", err)
	}
	if img.At(0, 0) != 9 {
		t.Fatalf("red plane value = %d, want 9", img.At(0, 0))
	}

	// The two reduction rules must stay distinct for RGB masks.
	green, err := ReduceStackPlane(stack, PlaneGreen)
	if err != nil {
		t.Fatalf("ReduceStackPlane: %v", err)
	}
	if green.At(0, 0) != 3 {
		t.Fatalf("green plane value = %d, want 3", green.At(0, 0))
	}
}

func TestReduceStackPlaneIgnoredForGray(t *testing.T) {
	page := tiffstack.Page{Width: 1, Height: 1, Channels: 1, Samples: []float64{6}}
	stack := &tiffstack.Stack{Pages: []tiffstack.Page{page}}

	for _, plane := range []Plane{PlaneGreen, PlaneRed} {
		img, err := ReduceStackPlane(stack, plane)
		if err != nil {
			t.Fatalf("ReduceStackPlane: %v", err)
		}
		if img.At(0, 0) != 6 {
			t.Fatalf("gray value = %d, want 6", img.At(0, 0))
		}
	}
}

func TestReduceStackLeadingAxis(t *testing.T) {
	// Multi-page volume: slice 0 carries the mask.
	p0 := tiffstack.Page{Width: 2, Height: 1, Channels: 1, Samples: []float64{4, 4}}
	p1 := tiffstack.Page{Width: 2, Height: 1, Channels: 1, Samples: []float64{8, 8}}
	img, err := ReduceStack(&tiffstack.Stack{Pages: []tiffstack.Page{p0, p1}})
	if err != nil {
		t.Fatalf("ReduceStack: %v", err)
	}
	if img.At(0, 0) != 4 || img.At(1, 0) != 4 {
		t.Fatalf("slice 0 not selected: %v", img.Pix)
	}
}
