package intensity

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// fallbackWindow is the number of smallest intensity values averaged when a
// cell has no frame-0 sample (mask coverage starting mid-sequence).
const fallbackWindow = 10

// DefaultBaselineFrames is the default window length for the ΔF/F baseline.
const DefaultBaselineFrames = 10

// BaselineTable maps cell ID to its baseline intensity.
type BaselineTable map[int]float64

// Baselines derives the per-cell baseline from extracted records. The
// baseline is the cell's frame-0 intensity when present; otherwise the mean
// of its min(10, n) smallest intensities approximates a resting state.
func Baselines(records []Record) BaselineTable {
	perCell := make(map[int][]float64)
	atZero := make(map[int]float64)
	hasZero := make(map[int]bool)

	for _, r := range records {
		perCell[r.CellID] = append(perCell[r.CellID], r.Intensity)
		if r.Frame == 0 {
			atZero[r.CellID] = r.Intensity
			hasZero[r.CellID] = true
		}
	}

	table := make(BaselineTable, len(perCell))
	for id, values := range perCell {
		if hasZero[id] {
			table[id] = atZero[id]
			continue
		}
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		k := fallbackWindow
		if k > len(sorted) {
			k = len(sorted)
		}
		table[id] = stat.Mean(sorted[:k], nil)
	}
	return table
}

// NormalizeRecords fills in the Normalized field of every record as
// intensity / baseline and returns the baseline table. A baseline of exactly
// zero makes the division undefined and fails with ErrZeroBaseline.
func NormalizeRecords(records []Record) (BaselineTable, error) {
	table := Baselines(records)
	for id, b := range table {
		if b == 0 {
			return nil, fmt.Errorf("%w for cell %d", ErrZeroBaseline, id)
		}
	}
	for i := range records {
		records[i].Normalized = records[i].Intensity / table[records[i].CellID]
	}
	return table, nil
}

// DeltaF computes ΔF/F for one cell's intensity series in frame order. The
// baseline is the mean of the first baselineFrames samples of the series
// itself (not the frame-0 table), so filtered exports where frame 0 is absent
// still normalize against their own leading window.
func DeltaF(series []float64, baselineFrames int) ([]float64, error) {
	if len(series) == 0 {
		return nil, nil
	}
	if baselineFrames <= 0 {
		baselineFrames = DefaultBaselineFrames
	}
	if baselineFrames > len(series) {
		baselineFrames = len(series)
	}

	baseline := stat.Mean(series[:baselineFrames], nil)
	if baseline == 0 {
		return nil, fmt.Errorf("%w in leading %d-sample window", ErrZeroBaseline, baselineFrames)
	}

	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = (v - baseline) / baseline
	}
	return out, nil
}
