package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/piwi3910/CoilCut/internal/model"
)

func testJob() Job {
	job := NewJob("week 42")
	job.Stocks = []model.StockRoll{
		{ID: "S01", Label: "1000×1.00 (3003-H14)", WidthMM: 1000, ThicknessMM: 1, Alloy: "3003", Temper: "H14", AvailableKg: 5000},
	}
	job.Orders = []model.Order{
		model.NewOrder("A", 400, 1, "3003", "H14", 1000),
		model.NewOrder("B", 250, 1, "3003", "H14", 600),
	}
	job.Params.MinRemainderM = 300
	return job
}

func TestSaveAndLoadJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs", "week42.json")
	job := testJob()

	if err := SaveJob(path, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	loaded, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob failed: %v", err)
	}

	if loaded.Name != "week 42" {
		t.Errorf("expected name 'week 42', got %q", loaded.Name)
	}
	if len(loaded.Stocks) != 1 || loaded.Stocks[0].AvailableKg != 5000 {
		t.Errorf("stocks not restored: %+v", loaded.Stocks)
	}
	if len(loaded.Orders) != 2 || loaded.Orders[1].ID != "B" {
		t.Errorf("orders not restored: %+v", loaded.Orders)
	}
	if loaded.Params != job.Params {
		t.Errorf("params not restored: got %+v, want %+v", loaded.Params, job.Params)
	}
}

func TestLoadJob_PartialParamsKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	content := `{"name":"partial","params":{"edge_waste_max_mm":60}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	job, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob failed: %v", err)
	}

	want := model.DefaultParams()
	want.EdgeWasteMaxMM = 60
	if job.Params != want {
		t.Errorf("got params %+v, want %+v", job.Params, want)
	}
	if job.Stocks == nil || job.Orders == nil {
		t.Error("missing lists should load as empty slices")
	}
}

func TestLoadJob_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadJob(filepath.Join(dir, "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json}"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadJob(bad); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestJobMerge(t *testing.T) {
	job := testJob()
	other := Job{
		Stocks: []model.StockRoll{
			{ID: "S01", WidthMM: 1250},
			{ID: "S02", WidthMM: 1250},
		},
		Orders: []model.Order{
			model.NewOrder("B", 300, 1, "3003", "H14", 100),
			model.NewOrder("C", 300, 1, "3003", "H14", 100),
		},
	}

	skipped := job.Merge(other)

	if len(job.Stocks) != 2 || job.Stocks[1].ID != "S02" {
		t.Errorf("expected S02 appended, got %+v", job.Stocks)
	}
	if len(job.Orders) != 3 || job.Orders[2].ID != "C" {
		t.Errorf("expected C appended, got %+v", job.Orders)
	}
	if job.Orders[1].WidthMM != 250 {
		t.Error("existing order B must not be overwritten")
	}
	if len(skipped) != 2 || skipped[0] != "stock S01" || skipped[1] != "order B" {
		t.Errorf("unexpected skipped list: %v", skipped)
	}
}

func TestJobValidate(t *testing.T) {
	if err := testJob().Validate(); err != nil {
		t.Errorf("expected valid job, got %v", err)
	}

	empty := NewJob("empty")
	if err := empty.Validate(); err == nil {
		t.Error("expected error for job without stocks and orders")
	}

	bad := testJob()
	bad.Params.CoverageMargin = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for inconsistent parameters")
	}
}
