package results

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"testing"

	"calcium-tracer/internal/intensity"
)

func sampleRows() []intensity.Record {
	return []intensity.Record{
		{Frame: 0, CellID: 1, Intensity: 10, Normalized: 1},
		{Frame: 0, CellID: 2, Intensity: 20, Normalized: 1},
		{Frame: 1, CellID: 1, Intensity: 15, Normalized: 1.5},
		{Frame: 1, CellID: 2, Intensity: 10, Normalized: 0.5},
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	rows, err := WithDerived(sampleRows(), 1)
	if err != nil {
		t.Fatalf("WithDerived: %v", err)
	}

	var buf bytes.Buffer
	cols := Columns{Normalized: true, DF: true, Time: true}
	if err := Export(&buf, rows, cols); err != nil {
		t.Fatalf("Export: %v", err)
	}

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	want := "frame,cell_id,intensity,normalized_intensity,dF,time_seconds"
	if header != want {
		t.Fatalf("header = %q, want %q", header, want)
	}

	got, gotCols, err := Import(&buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if gotCols != cols {
		t.Fatalf("columns = %+v, want %+v", gotCols, cols)
	}
	if !reflect.DeepEqual(got, rows) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, rows)
	}
}

func TestImportBackfillsDF(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, sampleRows(), Columns{}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	got, cols, err := Import(&buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !cols.DF || !cols.Time {
		t.Fatalf("derived columns not filled: %+v", cols)
	}

	// Cell 1's series is [10, 15]; both samples fall inside the default
	// window, so the baseline is 12.5.
	df, err := intensity.DeltaF([]float64{10, 15}, intensity.DefaultBaselineFrames)
	if err != nil {
		t.Fatalf("DeltaF: %v", err)
	}
	if got[0].DF != df[0] || got[2].DF != df[1] {
		t.Fatalf("dF backfill = %v, %v; want %v, %v", got[0].DF, got[2].DF, df[0], df[1])
	}
}

func TestImportDerivesTime(t *testing.T) {
	in := strings.NewReader("frame,cell_id,intensity\n0,1,5\n30,1,6\n")
	got, _, err := Import(in)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got[0].TimeSeconds != 0 {
		t.Fatalf("time at frame 0 = %v, want 0", got[0].TimeSeconds)
	}
	if math.Abs(got[1].TimeSeconds-1.0) > 1e-12 {
		t.Fatalf("time at frame 30 = %v, want 1", got[1].TimeSeconds)
	}
}

func TestImportMissingRequiredColumn(t *testing.T) {
	in := strings.NewReader("frame,intensity\n0,5\n")
	_, _, err := Import(in)
	if err == nil || !strings.Contains(err.Error(), "cell_id") {
		t.Fatalf("expected missing cell_id error, got %v", err)
	}
}

func TestTimeSeconds(t *testing.T) {
	if got := TimeSeconds(15); got != 0.5 {
		t.Fatalf("TimeSeconds(15) = %v, want 0.5", got)
	}
}

func TestFilterCells(t *testing.T) {
	rows := sampleRows()
	got := FilterCells(rows, []int{2})
	if len(got) != 2 || got[0].CellID != 2 || got[1].CellID != 2 {
		t.Fatalf("FilterCells = %+v", got)
	}
	if got := FilterCells(rows, nil); len(got) != 0 {
		t.Fatalf("empty selection should yield no rows, got %d", len(got))
	}
}

func TestCellIDs(t *testing.T) {
	got := CellIDs(sampleRows())
	if !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("CellIDs = %v, want [1 2]", got)
	}
}

func TestWithDerivedRowOrderSeries(t *testing.T) {
	rows := []intensity.Record{
		{Frame: 5, CellID: 3, Intensity: 10},
		{Frame: 6, CellID: 3, Intensity: 20},
		{Frame: 7, CellID: 3, Intensity: 30},
	}
	got, err := WithDerived(rows, 1)
	if err != nil {
		t.Fatalf("WithDerived: %v", err)
	}
	// Baseline window of 1 uses the first row's intensity.
	if got[0].DF != 0 || got[1].DF != 1 || got[2].DF != 2 {
		t.Fatalf("dF = [%v %v %v], want [0 1 2]", got[0].DF, got[1].DF, got[2].DF)
	}
	if rows[0].TimeSeconds != 0 {
		t.Fatalf("input rows were mutated: %+v", rows[0])
	}
}
