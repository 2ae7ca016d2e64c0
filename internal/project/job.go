// Package project persists planning jobs, parameter presets and run
// archives under ~/.coilcut.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/piwi3910/CoilCut/internal/model"
)

// DefaultDir returns the per-user data directory, ~/.coilcut.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".coilcut")
}

// Job is one planning problem: the stock on hand, the orders to cut and the
// parameters to solve it with.
type Job struct {
	Name   string            `json:"name"`
	Stocks []model.StockRoll `json:"stocks"`
	Orders []model.Order     `json:"orders"`
	Params model.Params      `json:"params"`
}

// NewJob returns an empty job with default parameters.
func NewJob(name string) Job {
	return Job{
		Name:   name,
		Stocks: []model.StockRoll{},
		Orders: []model.Order{},
		Params: model.DefaultParams(),
	}
}

// SaveJob writes the job to the specified JSON file.
// It creates parent directories if they do not exist.
func SaveJob(path string, job Job) error {
	return writeJSON(path, job)
}

// LoadJob reads a job from a JSON file. Parameters missing from the file
// keep their defaults.
func LoadJob(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("failed to read job file: %w", err)
	}
	job := NewJob("")
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("failed to parse job file: %w", err)
	}
	if job.Stocks == nil {
		job.Stocks = []model.StockRoll{}
	}
	if job.Orders == nil {
		job.Orders = []model.Order{}
	}
	return job, nil
}

// Merge adds the stocks and orders of other that are not in the job yet.
// Duplicate IDs are skipped and reported.
func (j *Job) Merge(other Job) (skipped []string) {
	stockIDs := make(map[string]bool, len(j.Stocks))
	for _, s := range j.Stocks {
		stockIDs[s.ID] = true
	}
	orderIDs := make(map[string]bool, len(j.Orders))
	for _, o := range j.Orders {
		orderIDs[o.ID] = true
	}

	for _, s := range other.Stocks {
		if stockIDs[s.ID] {
			skipped = append(skipped, "stock "+s.ID)
			continue
		}
		j.Stocks = append(j.Stocks, s)
		stockIDs[s.ID] = true
	}
	for _, o := range other.Orders {
		if orderIDs[o.ID] {
			skipped = append(skipped, "order "+o.ID)
			continue
		}
		j.Orders = append(j.Orders, o)
		orderIDs[o.ID] = true
	}
	return skipped
}

// Validate reports jobs that cannot be handed to the engine.
func (j Job) Validate() error {
	var errs []error
	if len(j.Stocks) == 0 {
		errs = append(errs, errors.New("job has no stock rolls"))
	}
	if len(j.Orders) == 0 {
		errs = append(errs, errors.New("job has no orders"))
	}
	if err := j.Params.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
