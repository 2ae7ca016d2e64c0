package export

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/piwi3910/CoilCut/internal/model"
)

// buildTestReport creates a two-stock report with mixed layouts.
func buildTestReport() model.SolutionReport {
	return model.SolutionReport{
		RunID:              "run-0001",
		Status:             model.StatusOptimal,
		ProvenOptimal:      true,
		NumRolls:           3,
		NumDistinctSetups:  2,
		NumLogicalPatterns: 2,
		TotalWasteMM:       260,
		TotalKg:            4100,
		TotalAllocatedKg:   3720,
		IsFullyValid:       false,
		SolveTimeS:         1.25,
		Coverage: map[string]model.OrderCoverage{
			"A": model.NewOrderCoverage("A", 2100, 2000),
			"B": model.NewOrderCoverage("B", 1200, 1100),
			"C": model.NewOrderCoverage("C", 420, 900),
		},
		StockUsage: []model.StockUsage{
			{StockID: "S01", Stock: "1000×1.00 (3003-H14)", AvailableKg: 5000, UsedKg: 2730, UsedMeters: 1000, RemainderKg: 2270, RemainderM: 831.5},
			{StockID: "S02", Stock: "1250×1.00 (3003-H14)", AvailableKg: 3000, UsedKg: 1370, UsedMeters: 401.5, RemainderKg: 1630, RemainderM: 477.7},
		},
		Rolls: []model.RollInstance{
			{
				ID: "R001", StockID: "S01", Stock: "1000×1.00 (3003-H14)", StockWidthMM: 1000,
				LinearMeters: 500, GrossKg: 1365, UsedWidthMM: 900, WasteWidthMM: 100,
				Allocations: []model.Allocation{
					{OrderID: "A", Cuts: 2, CutWidthMM: 300, AllocatedKg: 819},
					{OrderID: "B", Cuts: 1, CutWidthMM: 300, AllocatedKg: 409.5},
				},
			},
			{
				ID: "R002", StockID: "S01", Stock: "1000×1.00 (3003-H14)", StockWidthMM: 1000,
				LinearMeters: 500, GrossKg: 1365, UsedWidthMM: 900, WasteWidthMM: 100,
				Allocations: []model.Allocation{
					{OrderID: "A", Cuts: 2, CutWidthMM: 300, AllocatedKg: 819},
					{OrderID: "B", Cuts: 1, CutWidthMM: 300, AllocatedKg: 409.5},
				},
			},
			{
				ID: "R003", StockID: "S02", Stock: "1250×1.00 (3003-H14)", StockWidthMM: 1250,
				LinearMeters: 401.5, GrossKg: 1370, UsedWidthMM: 1190, WasteWidthMM: 60,
				Allocations: []model.Allocation{
					{OrderID: "C", Cuts: 1, CutWidthMM: 380, AllocatedKg: 416.5},
					{OrderID: "A", Cuts: 3, CutWidthMM: 270, AllocatedKg: 887.9},
				},
			},
		},
	}
}

func assertFileWritten(t *testing.T, path string, minSize int64) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file was not created: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("file is empty")
	}
	if info.Size() < minSize {
		t.Errorf("file seems too small: %d bytes", info.Size())
	}
}

func TestExportPDF_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.pdf")

	if err := ExportPDF(path, buildTestReport(), model.DefaultParams()); err != nil {
		t.Fatalf("ExportPDF returned error: %v", err)
	}
	assertFileWritten(t, path, 1000)
}

func TestExportPDF_EmptyReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pdf")

	err := ExportPDF(path, model.SolutionReport{}, model.DefaultParams())
	if err == nil {
		t.Fatal("expected error for report without rolls, got nil")
	}
	if _, statErr := os.Stat(path); statErr == nil {
		t.Error("no file should be written for an empty report")
	}
}

func TestExportPDF_FeasibleWithRemainderRule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feasible.pdf")

	report := buildTestReport()
	report.Status = model.StatusFeasible
	report.ProvenOptimal = false
	params := model.DefaultParams()
	params.MinRemainderM = 300
	params.Objective = model.ObjectiveLexicographic

	if err := ExportPDF(path, report, params); err != nil {
		t.Fatalf("ExportPDF returned error: %v", err)
	}
	assertFileWritten(t, path, 1000)
}

func TestExportPDF_ManyRolls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "many.pdf")

	// 40 rolls on one stock do not fit one page; 60 orders overflow the
	// coverage table.
	report := buildTestReport()
	report.Rolls = nil
	report.Coverage = map[string]model.OrderCoverage{}
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("ORD-%03d", i+1)
		report.Coverage[id] = model.NewOrderCoverage(id, 100, 100)
	}
	for i := 0; i < 40; i++ {
		report.Rolls = append(report.Rolls, model.RollInstance{
			ID: fmt.Sprintf("R%03d", i+1), StockID: "S01", Stock: "1000×1.00 (3003-H14)",
			StockWidthMM: 1000, LinearMeters: 50, GrossKg: 136.5, UsedWidthMM: 960, WasteWidthMM: 40,
			Allocations: []model.Allocation{
				{OrderID: fmt.Sprintf("ORD-%03d", i+1), Cuts: 8, CutWidthMM: 120, AllocatedKg: 131},
			},
		})
	}
	report.NumRolls = len(report.Rolls)

	if err := ExportPDF(path, report, model.DefaultParams()); err != nil {
		t.Fatalf("ExportPDF returned error: %v", err)
	}
	assertFileWritten(t, path, 2000)
}

func TestRollsByStock(t *testing.T) {
	report := buildTestReport()
	// A roll whose stock is missing from the usage table still gets a page.
	report.Rolls = append(report.Rolls, model.RollInstance{ID: "R004", StockID: "S09", StockWidthMM: 800})
	report.StockUsage = append([]model.StockUsage{{StockID: "S02"}}, report.StockUsage...)

	order, groups := rollsByStock(report)

	want := []string{"S02", "S01", "S09"}
	if len(order) != len(want) {
		t.Fatalf("got stock order %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("stock %d: got %s, want %s", i, order[i], want[i])
		}
	}
	if len(groups["S01"]) != 2 {
		t.Errorf("expected 2 rolls on S01, got %d", len(groups["S01"]))
	}
}

func TestColorIndex_StableBySortedID(t *testing.T) {
	idx := colorIndex(buildTestReport())
	if idx["A"] != 0 || idx["B"] != 1 || idx["C"] != 2 {
		t.Errorf("unexpected palette slots: %v", idx)
	}
}

func TestLabelFontSize(t *testing.T) {
	tests := []struct {
		w    float64
		want float64
	}{
		{100, 8},
		{30, 7},
		{10, 6},
	}
	for _, tt := range tests {
		if got := labelFontSize(tt.w); got != tt.want {
			t.Errorf("labelFontSize(%.0f) = %.0f, want %.0f", tt.w, got, tt.want)
		}
	}
}

func TestRemainderText(t *testing.T) {
	if got := remainderText(0); got != "off" {
		t.Errorf("got %q, want off", got)
	}
	if got := remainderText(600); got != "600 m" {
		t.Errorf("got %q, want 600 m", got)
	}
}
