// Package results handles the persisted measurement table.
//
// The column set is the round-trip contract shared with the charting
// collaborator and external tools: frame, cell_id and intensity are required;
// normalized_intensity, dF and time_seconds are optional derived columns.
package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"calcium-tracer/internal/intensity"
)

// FrameRate is the assumed recording rate used to derive time_seconds.
// Fixed by contract; changing it silently alters exported numbers.
const FrameRate = 30.0

// Required column names.
const (
	ColFrame     = "frame"
	ColCellID    = "cell_id"
	ColIntensity = "intensity"
)

// Optional derived column names.
const (
	ColNormalized = "normalized_intensity"
	ColDF         = "dF"
	ColTime       = "time_seconds"
)

// Columns flags which optional columns a table carries.
type Columns struct {
	Normalized bool
	DF         bool
	Time       bool
}

// TimeSeconds converts a frame index to seconds at the fixed frame rate.
func TimeSeconds(frame int) float64 {
	return float64(frame) / FrameRate
}

// FilterCells returns the rows belonging to the given cells, preserving
// order. An empty cell list selects nothing.
func FilterCells(rows []intensity.Record, cells []int) []intensity.Record {
	want := make(map[int]bool, len(cells))
	for _, c := range cells {
		want[c] = true
	}
	out := make([]intensity.Record, 0, len(rows))
	for _, r := range rows {
		if want[r.CellID] {
			out = append(out, r)
		}
	}
	return out
}

// CellIDs returns the sorted distinct cell IDs present in the rows.
func CellIDs(rows []intensity.Record) []int {
	seen := make(map[int]bool)
	for _, r := range rows {
		seen[r.CellID] = true
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// WithDerived returns a copy of the rows with the dF and time_seconds columns
// filled in. ΔF/F is computed per cell over that cell's series in row order,
// so filtered tables normalize against their own leading window.
func WithDerived(rows []intensity.Record, baselineFrames int) ([]intensity.Record, error) {
	out := append([]intensity.Record(nil), rows...)

	perCell := make(map[int][]int) // cell -> row indices in order
	for i, r := range out {
		perCell[r.CellID] = append(perCell[r.CellID], i)
	}

	for id, idxs := range perCell {
		series := make([]float64, len(idxs))
		for i, idx := range idxs {
			series[i] = out[idx].Intensity
		}
		df, err := intensity.DeltaF(series, baselineFrames)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", id, err)
		}
		for i, idx := range idxs {
			out[idx].DF = df[i]
		}
	}

	for i := range out {
		out[i].TimeSeconds = TimeSeconds(out[i].Frame)
	}
	return out, nil
}

// Export writes the rows as CSV with the contract column order.
func Export(w io.Writer, rows []intensity.Record, cols Columns) error {
	cw := csv.NewWriter(w)

	header := []string{ColFrame, ColCellID, ColIntensity}
	if cols.Normalized {
		header = append(header, ColNormalized)
	}
	if cols.DF {
		header = append(header, ColDF)
	}
	if cols.Time {
		header = append(header, ColTime)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range rows {
		row := []string{
			strconv.Itoa(r.Frame),
			strconv.Itoa(r.CellID),
			formatFloat(r.Intensity),
		}
		if cols.Normalized {
			row = append(row, formatFloat(r.Normalized))
		}
		if cols.DF {
			row = append(row, formatFloat(r.DF))
		}
		if cols.Time {
			row = append(row, formatFloat(r.TimeSeconds))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Import reads a CSV table, validating the required columns. When the dF
// column is absent it is back-filled per cell (default baseline window), and
// time_seconds is derived wherever missing.
func Import(r io.Reader) ([]intensity.Record, Columns, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, Columns{}, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{ColFrame, ColCellID, ColIntensity} {
		if _, ok := col[required]; !ok {
			return nil, Columns{}, fmt.Errorf("missing required column: %s", required)
		}
	}

	cols := Columns{}
	_, cols.Normalized = col[ColNormalized]
	_, cols.DF = col[ColDF]
	_, cols.Time = col[ColTime]

	var rows []intensity.Record
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Columns{}, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		row := intensity.Record{}
		if row.Frame, err = strconv.Atoi(record[col[ColFrame]]); err != nil {
			return nil, Columns{}, fmt.Errorf("line %d: bad frame: %w", line, err)
		}
		if row.CellID, err = strconv.Atoi(record[col[ColCellID]]); err != nil {
			return nil, Columns{}, fmt.Errorf("line %d: bad cell_id: %w", line, err)
		}
		if row.Intensity, err = strconv.ParseFloat(record[col[ColIntensity]], 64); err != nil {
			return nil, Columns{}, fmt.Errorf("line %d: bad intensity: %w", line, err)
		}
		if cols.Normalized {
			if row.Normalized, err = strconv.ParseFloat(record[col[ColNormalized]], 64); err != nil {
				return nil, Columns{}, fmt.Errorf("line %d: bad normalized_intensity: %w", line, err)
			}
		}
		if cols.DF {
			if row.DF, err = strconv.ParseFloat(record[col[ColDF]], 64); err != nil {
				return nil, Columns{}, fmt.Errorf("line %d: bad dF: %w", line, err)
			}
		}
		if cols.Time {
			if row.TimeSeconds, err = strconv.ParseFloat(record[col[ColTime]], 64); err != nil {
				return nil, Columns{}, fmt.Errorf("line %d: bad time_seconds: %w", line, err)
			}
		} else {
			row.TimeSeconds = TimeSeconds(row.Frame)
		}
		rows = append(rows, row)
	}

	if !cols.DF {
		rows, err = WithDerived(rows, intensity.DefaultBaselineFrames)
		if err != nil {
			return nil, Columns{}, err
		}
		cols.DF = true
	}
	cols.Time = true

	return rows, cols, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
