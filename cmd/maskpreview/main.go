// Command maskpreview renders a label mask as a colored overlay with cell
// IDs, relabeling sparse IDs to the sequential 1..N scheme first.
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"

	"calcium-tracer/internal/labels"
	"calcium-tracer/internal/overlay"
	"calcium-tracer/pkg/colorutil"
)

func main() {
	maskPath := flag.String("mask", "", "Path to label mask (TIFF, PNG, or JPEG)")
	outPath := flag.String("out", "mask_preview.png", "Output PNG path")
	showIDs := flag.Bool("ids", true, "Draw sequential cell IDs at centroids")
	flag.Parse()

	if *maskPath == "" {
		fmt.Println("Usage: maskpreview -mask <path> [-out mask_preview.png] [-ids=false]")
		os.Exit(1)
	}

	// The standalone preview reads RGB masks on the red plane; recording
	// analysis uses the green plane.
	raw, err := labels.ReadFilePlane(*maskPath, labels.PlaneRed)
	if err != nil {
		log.Fatalf("Failed to read mask: %v", err)
	}

	canonical, idmap, err := labels.Canonicalize(raw)
	if err != nil {
		log.Fatalf("Failed to canonicalize mask: %v", err)
	}
	log.Printf("Mask %dx%d, %d cells (original IDs %v)",
		canonical.Width, canonical.Height, idmap.Len(), idmap.Originals())

	opts := overlay.DefaultOptions()
	opts.IncludeIDs = *showIDs
	img, err := overlay.Render(canonical, colorutil.OverlayPalette(idmap.Len()), opts)
	if err != nil {
		log.Fatalf("Failed to render overlay: %v", err)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *outPath, err)
	}
	err = png.Encode(f, img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatalf("Failed to write %s: %v", *outPath, err)
	}
	log.Printf("Wrote %s", *outPath)
}
