package video

import (
	"errors"
	"testing"

	"calcium-tracer/internal/tiffstack"
)

func grayPage(w, h int, value float64) tiffstack.Page {
	p := tiffstack.Page{Width: w, Height: h, Channels: 1, Samples: make([]float64, w*h)}
	for i := range p.Samples {
		p.Samples[i] = value
	}
	return p
}

func TestFromStackReplicatesGray(t *testing.T) {
	stack := &tiffstack.Stack{Pages: []tiffstack.Page{grayPage(3, 2, 77), grayPage(3, 2, 90)}}
	tensor, err := fromStack(stack)
	if err != nil {
		t.Fatalf("fromStack: %v", err)
	}
	if tensor.Frames != 2 || tensor.Height != 2 || tensor.Width != 3 {
		t.Fatalf("tensor shape = (%d,%d,%d)", tensor.Frames, tensor.Height, tensor.Width)
	}
	for c := 0; c < Channels; c++ {
		if got := tensor.At(0, 1, 2, c); got != 77 {
			t.Fatalf("frame 0 channel %d = %v, want 77", c, got)
		}
		if got := tensor.At(1, 0, 0, c); got != 90 {
			t.Fatalf("frame 1 channel %d = %v, want 90", c, got)
		}
	}
}

func TestFromStackDropsAlpha(t *testing.T) {
	page := tiffstack.Page{Width: 1, Height: 1, Channels: 4, Samples: []float64{10, 20, 30, 40}}
	tensor, err := fromStack(&tiffstack.Stack{Pages: []tiffstack.Page{page}})
	if err != nil {
		t.Fatalf("fromStack: %v", err)
	}
	if tensor.At(0, 0, 0, 0) != 10 || tensor.At(0, 0, 0, 1) != 20 || tensor.At(0, 0, 0, 2) != 30 {
		t.Fatalf("RGB channels wrong: %v %v %v",
			tensor.At(0, 0, 0, 0), tensor.At(0, 0, 0, 1), tensor.At(0, 0, 0, 2))
	}
}

func TestFromStackPassesRGBThrough(t *testing.T) {
	page := tiffstack.Page{Width: 1, Height: 1, Channels: 3, Samples: []float64{1, 2, 3}}
	tensor, err := fromStack(&tiffstack.Stack{Pages: []tiffstack.Page{page}})
	if err != nil {
		t.Fatalf("fromStack: %v", err)
	}
	if tensor.Green(0, 0, 0) != 2 {
		t.Fatalf("green channel = %v, want 2", tensor.Green(0, 0, 0))
	}
}

func TestFromStackInconsistentShape(t *testing.T) {
	stack := &tiffstack.Stack{Pages: []tiffstack.Page{grayPage(4, 4, 1), grayPage(5, 4, 1)}}
	_, err := fromStack(stack)
	if !errors.Is(err, ErrInconsistentFrameShape) {
		t.Fatalf("expected ErrInconsistentFrameShape, got %v", err)
	}
}

func TestFromStackUnsupportedChannels(t *testing.T) {
	page := tiffstack.Page{Width: 1, Height: 1, Channels: 2, Samples: []float64{1, 2}}
	_, err := fromStack(&tiffstack.Stack{Pages: []tiffstack.Page{page}})
	if !errors.Is(err, ErrUnreadableSource) {
		t.Fatalf("expected ErrUnreadableSource, got %v", err)
	}
}

func TestFromStackEmpty(t *testing.T) {
	_, err := fromStack(&tiffstack.Stack{})
	if !errors.Is(err, ErrUnreadableSource) {
		t.Fatalf("expected ErrUnreadableSource, got %v", err)
	}
}

func TestPreviewPassesThroughEightBit(t *testing.T) {
	tensor := NewTensor(1, 1, 2)
	tensor.Set(0, 0, 0, 0, 200)
	tensor.Set(0, 0, 1, 1, 100)

	img := tensor.Preview(0)
	if got := img.RGBAAt(0, 0).R; got != 200 {
		t.Fatalf("pixel (0,0) R = %d, want 200", got)
	}
	if got := img.RGBAAt(1, 0).G; got != 100 {
		t.Fatalf("pixel (1,0) G = %d, want 100", got)
	}
	if got := img.RGBAAt(0, 0).A; got != 255 {
		t.Fatalf("alpha = %d, want 255", got)
	}
}

func TestPreviewScalesUnitRange(t *testing.T) {
	tensor := NewTensor(1, 1, 1)
	tensor.Set(0, 0, 0, 1, 1.0)
	img := tensor.Preview(0)
	if got := img.RGBAAt(0, 0).G; got != 255 {
		t.Fatalf("unit-range green = %d, want 255", got)
	}
}

func TestPreviewScalesWideRange(t *testing.T) {
	tensor := NewTensor(1, 1, 2)
	tensor.Set(0, 0, 0, 0, 1000)
	tensor.Set(0, 0, 1, 0, 500)
	img := tensor.Preview(0)
	if got := img.RGBAAt(0, 0).R; got < 254 {
		t.Fatalf("max pixel = %d, want ~255", got)
	}
	if got := img.RGBAAt(1, 0).R; got < 126 || got > 128 {
		t.Fatalf("half-max pixel = %d, want ~127", got)
	}
}
