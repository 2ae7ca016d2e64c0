package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/piwi3910/CoilCut/internal/engine"
	"github.com/piwi3910/CoilCut/internal/export"
	"github.com/piwi3910/CoilCut/internal/model"
	"github.com/piwi3910/CoilCut/internal/project"
	"github.com/spf13/cobra"
)

func newSolveCommand(a *app) *cobra.Command {
	var (
		saveJob        string
		saveRemainders string
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Compute a slitting plan",
		Long:  "Solve assigns the orders to the stock rolls, prints the plan and writes the configured reports.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.loadJob(cmd)
			if err != nil {
				return err
			}
			if saveJob != "" {
				if err := project.SaveJob(saveJob, job); err != nil {
					return err
				}
				a.log.Info("saved job", "path", saveJob)
			}

			opt := engine.New(job.Params, a.engineOptions()...)
			reports, runErr := opt.Optimize(cmd.Context(), job.Stocks, job.Orders)

			if a.cfg.Output.Archive {
				if err := a.archive(job, reports, runErr); err != nil {
					a.log.Error(err, "failed to archive run")
				}
			}
			if runErr != nil {
				return runErr
			}

			report := reports[0]
			printReport(cmd.OutOrStdout(), report)
			if saveRemainders != "" {
				if err := a.saveRemainders(saveRemainders, job, report); err != nil {
					return err
				}
			}
			return a.writeReports(report, job.Params)
		},
	}

	a.addInputFlags(cmd)
	cmd.Flags().StringVar(&saveJob, "save-job", "", "save the assembled job to this file")
	cmd.Flags().StringVar(&saveRemainders, "save-remainders", "", "save the leftover stock as a job file for the next run")
	return cmd
}

// saveRemainders writes what is left of the stock after report as a job
// with no orders, ready to be merged into the next run.
func (a *app) saveRemainders(path string, job project.Job, report model.SolutionReport) error {
	remainders := model.DetectRemainders(job.Stocks, report, model.MinRemainderKg)
	next := project.NewJob("remainders of " + job.Name)
	next.Params = job.Params
	for _, r := range remainders {
		next.Stocks = append(next.Stocks, r.ToStockRoll())
	}
	if err := project.SaveJob(path, next); err != nil {
		return err
	}
	a.log.Info("saved remainders", "path", path, "rolls", len(remainders), "kg", model.Round2(model.TotalRemainderKg(remainders)))
	return nil
}

func (a *app) archive(job project.Job, reports []model.SolutionReport, runErr error) error {
	archive := project.NewArchive(job.Params, job.Stocks, job.Orders, reports, runErr)
	id := "failed-" + uuid.New().String()
	if len(reports) > 0 {
		id = reports[0].RunID
	}
	path := project.ArchivePath(project.DefaultDir(), id)
	if err := project.SaveArchive(path, archive); err != nil {
		return err
	}
	a.log.Info("archived run", "path", path)
	return nil
}

// writeReports writes every enabled report into the output directory.
func (a *app) writeReports(report model.SolutionReport, params model.Params) error {
	out := a.cfg.Output
	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	base := filepath.Join(out.Dir, "plan-"+shortID(report.RunID))

	writers := []struct {
		enabled bool
		path    string
		write   func(string) error
	}{
		{out.PDF, base + ".pdf", func(p string) error { return export.ExportPDF(p, report, params) }},
		{out.Labels, base + "-labels.pdf", func(p string) error { return export.ExportLabels(p, report) }},
		{out.XLSX, base + ".xlsx", func(p string) error { return export.ExportExcel(p, report, params) }},
		{out.CSV, base + ".csv", func(p string) error { return export.ExportCSV(p, report) }},
	}
	for _, w := range writers {
		if !w.enabled {
			continue
		}
		if err := w.write(w.path); err != nil {
			return fmt.Errorf("failed to write %s: %w", w.path, err)
		}
		a.log.Info("wrote report", "path", w.path)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// printReport writes a plain-text summary of the plan.
func printReport(w io.Writer, report model.SolutionReport) {
	status := string(report.Status)
	if !report.ProvenOptimal {
		status += " (not proven optimal)"
	}
	fmt.Fprintf(w, "Run %s: %s in %.1fs\n", report.RunID, status, report.SolveTimeS)
	fmt.Fprintf(w, "Rolls %d, setups %d, patterns %d, edge waste %.0f mm, %.1f kg gross, %.1f kg to orders\n\n",
		report.NumRolls, report.NumDistinctSetups, report.NumLogicalPatterns,
		report.TotalWasteMM, report.TotalKg, report.TotalAllocatedKg)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLL\tSTOCK\tLAYOUT\tMETERS\tGROSS KG\tWASTE MM")
	for _, r := range report.Rolls {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%.1f\t%.0f\n", r.ID, r.Stock, r.Layout(), r.LinearMeters, r.GrossKg, r.WasteWidthMM)
	}
	tw.Flush()

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tREQUESTED KG\tALLOCATED KG\tCOVERAGE\t")
	for _, id := range report.OrderIDs() {
		c := report.Coverage[id]
		flag := ""
		if !c.Covered {
			flag = "short"
		}
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%.1f%%\t%s\n", id, c.RequestedKg, c.AllocatedKg, c.Percent, flag)
	}
	tw.Flush()
}
