package overlay

import (
	"math"
	"strings"
	"testing"

	"calcium-tracer/internal/labels"
	"calcium-tracer/pkg/colorutil"
)

func checkerMask() *labels.Image {
	m := labels.NewImage(4, 4)
	m.Pix = []int32{
		1, 1, 0, 0,
		1, 1, 0, 0,
		0, 0, 2, 2,
		0, 0, 2, 2,
	}
	return m
}

func TestRenderBaseLayer(t *testing.T) {
	mask := checkerMask()
	palette := colorutil.Palette(2)

	img, err := Render(mask, palette, Options{IncludeIDs: false})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if got := img.Bounds(); got.Dx() != 4 || got.Dy() != 4 {
		t.Fatalf("bounds = %v, want 4x4", got)
	}
	if got := img.RGBAAt(0, 0); got != palette[0] {
		t.Fatalf("cell 1 pixel = %v, want %v", got, palette[0])
	}
	if got := img.RGBAAt(3, 3); got != palette[1] {
		t.Fatalf("cell 2 pixel = %v, want %v", got, palette[1])
	}
	if got := img.RGBAAt(2, 0); got != colorutil.Black {
		t.Fatalf("background pixel = %v, want black", got)
	}
}

func TestRenderPaletteTooSmall(t *testing.T) {
	mask := checkerMask()
	_, err := Render(mask, colorutil.Palette(1), Options{})
	if err == nil || !strings.Contains(err.Error(), "palette") {
		t.Fatalf("expected palette size error, got %v", err)
	}
}

func TestRenderBadWeightMap(t *testing.T) {
	mask := checkerMask()
	_, err := Render(mask, colorutil.Palette(2), Options{Weights: []float64{1, 2, 3}})
	if err == nil || !strings.Contains(err.Error(), "weight") {
		t.Fatalf("expected weight map error, got %v", err)
	}
}

func TestCentroidUnweighted(t *testing.T) {
	mask := checkerMask()
	cx, cy, ok := Centroid(mask, 1, nil)
	if !ok {
		t.Fatalf("centroid not found")
	}
	if cx != 0.5 || cy != 0.5 {
		t.Fatalf("centroid = (%v, %v), want (0.5, 0.5)", cx, cy)
	}
}

func TestCentroidWeighted(t *testing.T) {
	mask := checkerMask()
	// All weight on the pixel at (3, 2).
	weights := make([]float64, 16)
	weights[2*4+3] = 5
	cx, cy, ok := Centroid(mask, 2, weights)
	if !ok {
		t.Fatalf("centroid not found")
	}
	if math.Abs(cx-3) > 1e-12 || math.Abs(cy-2) > 1e-12 {
		t.Fatalf("weighted centroid = (%v, %v), want (3, 2)", cx, cy)
	}
}

func TestCentroidMissingCell(t *testing.T) {
	mask := checkerMask()
	if _, _, ok := Centroid(mask, 9, nil); ok {
		t.Fatalf("centroid reported for absent cell")
	}
}
