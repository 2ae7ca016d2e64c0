package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/piwi3910/CoilCut/internal/model"
	"github.com/piwi3910/CoilCut/internal/project"
	"github.com/piwi3910/CoilCut/internal/tuning"
	"github.com/spf13/cobra"
)

func newCompareCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Solve the job under a set of parameter variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.loadJob(cmd)
			if err != nil {
				return err
			}
			scenarios := tuning.BuildDefaultScenarios(job.Params)
			a.log.Info("comparing scenarios", "count", len(scenarios))

			results := tuning.CompareScenarios(cmd.Context(), scenarios, job.Stocks, job.Orders, a.engineOptions()...)
			printComparison(cmd.OutOrStdout(), results)
			return cmd.Context().Err()
		},
	}
	a.addInputFlags(cmd)
	return cmd
}

func printComparison(w io.Writer, results []tuning.ComparisonResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tOUTCOME\tROLLS\tSETUPS\tWASTE MM\tMIN COVERAGE")
	for _, r := range results {
		if !r.Feasible() {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\n", r.Scenario.Name, r.Outcome())
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.0f\t%.1f%%\n",
			r.Scenario.Name, r.Outcome(), r.Rolls, r.Setups, r.WasteMM, r.MinCoverage)
	}
	tw.Flush()
}

func newSearchCommand(a *app) *cobra.Command {
	var (
		mode    string
		workers int
		preset  string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Grid-search parameters for the fewest rolls",
		Long:  "Search solves the job over a grid of waste windows, margins and penalties and reports the best valid combinations.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.loadJob(cmd)
			if err != nil {
				return err
			}

			s := tuning.NewSearcher(a.log.WithName("search"))
			s.Base = job.Params
			s.Workers = workers
			s.EngineOptions = a.engineOptions()
			s.Progress = func(done, total int) {
				if done%25 == 0 || done == total {
					a.log.Info("search progress", "done", done, "total", total)
				}
			}

			res, err := s.Search(cmd.Context(), job.Stocks, job.Orders, tuning.Mode(mode))
			if res != nil {
				printSearch(cmd.OutOrStdout(), res)
			}
			if err != nil {
				return err
			}
			if res.Best == nil {
				return fmt.Errorf("no combination reached %.0f%% coverage", tuning.ValidCoveragePercent)
			}

			if preset != "" {
				return a.savePreset(preset, "best of "+mode+" search", res.Best.Params)
			}
			return nil
		},
	}
	a.addInputFlags(cmd)
	cmd.Flags().StringVar(&mode, "mode", string(tuning.ModeQuick), "grid size: quick, full or exhaustive")
	cmd.Flags().IntVar(&workers, "workers", 1, "concurrent engine runs")
	cmd.Flags().StringVar(&preset, "save-preset", "", "save the best parameters as a preset")
	return cmd
}

func printSearch(w io.Writer, res *tuning.SearchResult) {
	fmt.Fprintf(w, "Tried %d combinations (%d skipped, %d without a plan)\n\n", res.Tried, res.Skipped, res.Failed)
	if len(res.Top) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSCORE\tROLLS\tWASTE MM\tMIN COV\tWASTE WINDOW\tEXCESS\tREMAINDER\tCOVERAGE\tPENALTY")
	for i, t := range res.Top {
		p := t.Params
		fmt.Fprintf(tw, "%d\t%.0f\t%d\t%.0f\t%.1f%%\t%.0f-%.0f\t%.2f\t%.0f\t%.2f\t%.3f\n",
			i+1, t.Score, t.Rolls, t.WasteMM, t.MinCoverage,
			p.EdgeWasteMinMM, p.EdgeWasteMaxMM, p.ExcessMarginFactor, p.MinRemainderM, p.CoverageMargin, p.WastePenaltyFactor)
	}
	tw.Flush()
}

func newSuggestCommand(a *app) *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest starting parameters from the data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.loadJob(cmd)
			if err != nil {
				return err
			}
			sug, err := tuning.SuggestParams(job.Stocks, job.Orders, job.Params)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			s := sug.Summary
			fmt.Fprintf(w, "%d stock rolls %.0f-%.0f mm, %.0f kg available\n", s.Stocks, s.MinStockWidthMM, s.MaxStockWidthMM, s.TotalAvailableKg)
			fmt.Fprintf(w, "%d orders %.0f-%.0f mm, %.0f kg requested (demand ratio %.2f)\n\n", s.Orders, s.MinOrderWidthMM, s.MaxOrderWidthMM, s.TotalRequestedKg, s.DemandRatio)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			for _, r := range sug.Reasons {
				fmt.Fprintf(tw, "%s\t%s\n", r.Param, r.Why)
			}
			tw.Flush()

			if preset != "" {
				return a.savePreset(preset, "suggested from data", sug.Params)
			}
			return nil
		},
	}
	a.addInputFlags(cmd)
	cmd.Flags().StringVar(&preset, "save-preset", "", "save the suggestion as a preset")
	return cmd
}

func newPresetsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List parameter presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			presets, err := project.AllPresets(project.DefaultPresetsPath())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSOURCE\tWASTE WINDOW\tCOVERAGE\tEXCESS\tOBJECTIVE\tDESCRIPTION")
			for _, p := range presets {
				source := "custom"
				if p.BuiltIn {
					source = "built-in"
				}
				fmt.Fprintf(tw, "%s\t%s\t%.0f-%.0f\t%.2f\t%.2f\t%s\t%s\n", p.Name, source,
					p.Params.EdgeWasteMinMM, p.Params.EdgeWasteMaxMM, p.Params.CoverageMargin,
					p.Params.ExcessMarginFactor, p.Params.Objective, p.Description)
			}
			return tw.Flush()
		},
	}
}

// savePreset adds or replaces a custom preset in the presets file.
func (a *app) savePreset(name, description string, params model.Params) error {
	path := project.DefaultPresetsPath()
	presets, err := project.LoadPresets(path)
	if err != nil {
		return err
	}
	replaced := false
	for i := range presets {
		if presets[i].Name == name {
			presets[i].Description = description
			presets[i].Params = params
			replaced = true
		}
	}
	if !replaced {
		presets = append(presets, project.Preset{Name: name, Description: description, Params: params})
	}
	if err := project.SavePresets(path, presets); err != nil {
		return err
	}
	a.log.Info("saved preset", "name", name, "path", path)
	return nil
}
