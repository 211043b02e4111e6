// Command analyze runs the calcium imaging pipeline on a recording and
// writes the measurement table, mask overlay, and intensity chart.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"calcium-tracer/internal/chart"
	"calcium-tracer/internal/config"
	"calcium-tracer/internal/overlay"
	"calcium-tracer/internal/pipeline"
	"calcium-tracer/internal/results"
	"calcium-tracer/internal/segment"
	"calcium-tracer/pkg/colorutil"
)

func main() {
	videoPath := flag.String("video", "", "Path to recording (video container or TIFF stack)")
	maskPath := flag.String("mask", "", "Optional label mask (TIFF/PNG); omit to segment the first frame")
	outDir := flag.String("out", ".", "Output directory")
	configPath := flag.String("config", "", "Optional TOML config file")
	cellList := flag.String("cells", "", "Comma-separated cell IDs to export/plot (default: all)")
	yAxis := flag.String("y", chart.YIntensity, "Chart y column: intensity, normalized_intensity, or dF")
	xAxis := flag.String("x", chart.XFrame, "Chart x column: frame or time_seconds")
	preview := flag.Bool("preview", false, "Also write per-frame preview PNGs")
	flag.Parse()

	if *videoPath == "" {
		fmt.Println("Usage: analyze -video <path> [-mask <path>] [-out <dir>] [-cells 1,2,3]")
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	result, err := pipeline.Analyze(pipeline.Options{
		VideoPath: *videoPath,
		MaskPath:  *maskPath,
		Segmenter: segment.ThresholdSegmenter{MinArea: cfg.Analysis.MinCellArea},
		Verbose:   true,
	})
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
	log.Printf("Analyzed %d frames, %d cells", result.Frames.Frames, result.NumCells())

	// Select cells for export and plotting.
	rows := result.Records
	if *cellList != "" {
		cells, err := parseCells(*cellList)
		if err != nil {
			log.Fatalf("Bad -cells value: %v", err)
		}
		rows = results.FilterCells(rows, cells)
		if len(rows) == 0 {
			log.Fatalf("No records for cells %s", *cellList)
		}
	}

	rows, err = results.WithDerived(rows, cfg.Analysis.BaselineFrames)
	if err != nil {
		log.Fatalf("Failed to derive dF/F: %v", err)
	}

	csvPath := filepath.Join(*outDir, "intensity_data.csv")
	f, err := os.Create(csvPath)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", csvPath, err)
	}
	err = results.Export(f, rows, results.Columns{Normalized: true, DF: true, Time: true})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Fatalf("Failed to write %s: %v", csvPath, err)
	}
	log.Printf("Wrote %s", csvPath)

	// Mask overlay with cell IDs.
	overlayImg, err := overlay.Render(result.Labels, colorutil.OverlayPalette(result.NumCells()), overlay.DefaultOptions())
	if err != nil {
		log.Fatalf("Failed to render overlay: %v", err)
	}
	overlayPath := filepath.Join(*outDir, "mask_overlay.png")
	if err := writePNG(overlayPath, overlayImg); err != nil {
		log.Fatalf("Failed to write %s: %v", overlayPath, err)
	}
	log.Printf("Wrote %s", overlayPath)

	// Intensity chart.
	chartImg, err := chart.NewLineChart().Render(rows, *xAxis, *yAxis, cfg.Chart)
	if err != nil {
		log.Fatalf("Failed to render chart: %v", err)
	}
	chartPath := filepath.Join(*outDir, "intensity_plot.png")
	if err := writePNG(chartPath, chartImg); err != nil {
		log.Fatalf("Failed to write %s: %v", chartPath, err)
	}
	log.Printf("Wrote %s", chartPath)

	if *preview {
		for i := 0; i < result.Frames.Frames; i++ {
			path := filepath.Join(*outDir, fmt.Sprintf("frame_%04d.png", i))
			if err := writePNG(path, result.Frames.Preview(i)); err != nil {
				log.Fatalf("Failed to write %s: %v", path, err)
			}
		}
		log.Printf("Wrote %d preview frames", result.Frames.Frames)
	}
}

func parseCells(list string) ([]int, error) {
	parts := strings.Split(list, ",")
	cells := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid cell ID %q", p)
		}
		cells = append(cells, id)
	}
	return cells, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = png.Encode(f, img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
