package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/piwi3910/CoilCut/internal/model"
)

// ArchiveVersion is written into every run archive.
const ArchiveVersion = "1.0.0"

// RunArchive records everything needed to reproduce and audit one run.
type RunArchive struct {
	Version   string                 `json:"version"`
	CreatedAt string                 `json:"created_at"`
	Params    model.Params           `json:"params"`
	Stocks    []model.StockRoll      `json:"stocks"`
	Orders    []model.Order          `json:"orders"`
	Reports   []model.SolutionReport `json:"reports"`
	Error     string                 `json:"error,omitempty"`
}

// NewArchive stamps a run with the current time. runErr is the engine
// error of a failed run, if any.
func NewArchive(params model.Params, stocks []model.StockRoll, orders []model.Order, reports []model.SolutionReport, runErr error) RunArchive {
	a := RunArchive{
		Version:   ArchiveVersion,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Params:    params,
		Stocks:    stocks,
		Orders:    orders,
		Reports:   reports,
	}
	if a.Reports == nil {
		a.Reports = []model.SolutionReport{}
	}
	if runErr != nil {
		a.Error = runErr.Error()
	}
	return a
}

// ArchivePath returns the file an archive of runID is stored at in dir.
func ArchivePath(dir, runID string) string {
	return filepath.Join(dir, "runs", "run-"+runID+".json")
}

// SaveArchive writes the archive as JSON at the specified path.
func SaveArchive(path string, archive RunArchive) error {
	return writeJSON(path, archive)
}

// LoadArchive reads a run archive and checks its version field.
func LoadArchive(path string) (RunArchive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunArchive{}, fmt.Errorf("failed to read archive: %w", err)
	}
	var archive RunArchive
	if err := json.Unmarshal(data, &archive); err != nil {
		return RunArchive{}, fmt.Errorf("failed to parse archive: %w", err)
	}
	if archive.Version == "" {
		return RunArchive{}, fmt.Errorf("invalid archive file: missing version field")
	}
	if archive.Reports == nil {
		archive.Reports = []model.SolutionReport{}
	}
	return archive, nil
}
