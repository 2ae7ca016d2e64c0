package project

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/piwi3910/CoilCut/internal/model"
)

func TestSaveAndLoadArchive(t *testing.T) {
	dir := t.TempDir()
	job := testJob()
	report := model.SolutionReport{
		RunID:    "abc123",
		Status:   model.StatusOptimal,
		NumRolls: 1,
		Coverage: map[string]model.OrderCoverage{"A": model.NewOrderCoverage("A", 1000, 1000)},
		Rolls: []model.RollInstance{{
			ID: "R001", StockID: "S01", LinearMeters: 420,
			Allocations: []model.Allocation{{OrderID: "A", Cuts: 2, CutWidthMM: 400, AllocatedKg: 917.28}},
		}},
	}

	archive := NewArchive(job.Params, job.Stocks, job.Orders, []model.SolutionReport{report}, nil)
	path := ArchivePath(dir, report.RunID)
	if !strings.HasSuffix(path, filepath.Join("runs", "run-abc123.json")) {
		t.Errorf("unexpected archive path %s", path)
	}

	if err := SaveArchive(path, archive); err != nil {
		t.Fatalf("SaveArchive failed: %v", err)
	}

	loaded, err := LoadArchive(path)
	if err != nil {
		t.Fatalf("LoadArchive failed: %v", err)
	}
	if loaded.Version != ArchiveVersion {
		t.Errorf("expected version %s, got %s", ArchiveVersion, loaded.Version)
	}
	if loaded.CreatedAt == "" {
		t.Error("expected non-empty CreatedAt")
	}
	if loaded.Error != "" {
		t.Errorf("unexpected error field %q", loaded.Error)
	}
	if loaded.Params != job.Params {
		t.Error("params not restored")
	}
	if len(loaded.Reports) != 1 || loaded.Reports[0].Rolls[0].Allocations[0].AllocatedKg != 917.28 {
		t.Errorf("report not restored: %+v", loaded.Reports)
	}
	if !loaded.Reports[0].Coverage["A"].Covered {
		t.Error("coverage not restored")
	}
}

func TestNewArchive_FailedRun(t *testing.T) {
	job := testJob()
	archive := NewArchive(job.Params, job.Stocks, job.Orders, nil, errors.New("no assignment satisfies all constraints"))

	if archive.Reports == nil || len(archive.Reports) != 0 {
		t.Errorf("failed runs should archive an empty report list, got %v", archive.Reports)
	}
	if archive.Error == "" {
		t.Error("expected the run error to be recorded")
	}
}

func TestLoadArchive_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadArchive(filepath.Join(dir, "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json}"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadArchive(bad); err == nil {
		t.Error("expected error for invalid JSON")
	}

	noVersion := filepath.Join(dir, "noversion.json")
	if err := os.WriteFile(noVersion, []byte(`{"created_at":"2026-01-01T00:00:00Z"}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadArchive(noVersion); err == nil {
		t.Error("expected error for missing version")
	}
}
