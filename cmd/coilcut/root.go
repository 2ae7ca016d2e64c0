package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/piwi3910/CoilCut/internal/config"
	"github.com/piwi3910/CoilCut/internal/engine"
	"github.com/piwi3910/CoilCut/internal/importer"
	"github.com/piwi3910/CoilCut/internal/logging"
	"github.com/piwi3910/CoilCut/internal/metrics"
	"github.com/piwi3910/CoilCut/internal/project"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the configuration is loaded.
type app struct {
	loader  *config.Loader
	cfg     config.Config
	log     logr.Logger
	metrics *metrics.Recorder

	configPath string
	presetName string

	// input flags
	stockPath  string
	ordersPath string
	jobPath    string
}

func newRootCommand() *cobra.Command {
	a := &app{loader: config.NewLoader(), log: logr.Discard()}

	root := &cobra.Command{
		Use:           "coilcut",
		Short:         "Coil slitting planner",
		Long:          "CoilCut assigns customer orders to master coils, choosing slitting patterns and roll lengths that minimise rolls, knife setups and edge waste.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.flushMetrics()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.coilcut/config.yaml)")
	flags.StringVar(&a.presetName, "preset", "", "start from a named parameter preset")
	config.RegisterFlags(flags)

	root.AddCommand(
		newSolveCommand(a),
		newCompareCommand(a),
		newSearchCommand(a),
		newSuggestCommand(a),
		newPresetsCommand(a),
	)
	return root
}

// addInputFlags registers the stock, order and job file flags.
func (a *app) addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.stockPath, "stock", "", "stock roll file (CSV or Excel)")
	cmd.Flags().StringVar(&a.ordersPath, "orders", "", "order file (CSV or Excel)")
	cmd.Flags().StringVar(&a.jobPath, "job", "", "job file with stocks, orders and parameters")
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := a.loader.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	if a.presetName != "" {
		presets, err := project.AllPresets(project.DefaultPresetsPath())
		if err != nil {
			return err
		}
		preset, ok := project.FindPreset(presets, a.presetName)
		if !ok {
			return fmt.Errorf("unknown preset %q", a.presetName)
		}
		a.loader.SetParamsDefaults(preset.Params)
	}

	cfg, err := a.loader.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log.WithName("coilcut")
	if used := a.loader.ConfigFileUsed(); used != "" {
		a.log.V(1).Info("loaded config", "path", used)
	}
	if cfg.Output.MetricsFile != "" {
		a.metrics = metrics.NewRecorder()
	}
	return nil
}

func (a *app) engineOptions() []engine.Option {
	return []engine.Option{
		engine.WithLogger(a.log.WithName("engine")),
		engine.WithMetrics(a.metrics),
	}
}

func (a *app) flushMetrics() error {
	if a.metrics == nil {
		return nil
	}
	if err := a.metrics.WriteTextfile(a.cfg.Output.MetricsFile); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	a.log.V(1).Info("wrote metrics", "path", a.cfg.Output.MetricsFile)
	return nil
}

// loadJob assembles the job from the --job file and the --stock and
// --orders imports. A job file supplies the parameters unless a parameter
// flag, a config file or a preset was given.
func (a *app) loadJob(cmd *cobra.Command) (project.Job, error) {
	job := project.NewJob("")
	job.Params = a.cfg.Params

	if a.jobPath != "" {
		loaded, err := project.LoadJob(a.jobPath)
		if err != nil {
			return project.Job{}, err
		}
		job.Name = loaded.Name
		job.Stocks = loaded.Stocks
		job.Orders = loaded.Orders
		if !config.ParamsChanged(cmd.Flags()) && a.configPath == "" && a.presetName == "" {
			job.Params = loaded.Params
		}
	}

	if a.stockPath != "" {
		res := importer.Import(a.stockPath, importer.KindStock)
		if err := a.importOutcome(a.stockPath, res); err != nil {
			return project.Job{}, err
		}
		a.logSkipped(job.Merge(project.Job{Stocks: res.Stocks}))
	}
	if a.ordersPath != "" {
		res := importer.Import(a.ordersPath, importer.KindOrders)
		if err := a.importOutcome(a.ordersPath, res); err != nil {
			return project.Job{}, err
		}
		a.logSkipped(job.Merge(project.Job{Orders: res.Orders}))
	}

	if len(job.Stocks) == 0 || len(job.Orders) == 0 {
		return project.Job{}, errors.New("need stock rolls and orders: pass --job, or --stock and --orders")
	}
	a.log.Info("loaded job", "stocks", len(job.Stocks), "orders", len(job.Orders))
	return job, nil
}

func (a *app) importOutcome(path string, res importer.ImportResult) error {
	for _, w := range res.Warnings {
		a.log.Info("import warning", "file", path, "warning", w)
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("failed to import %s: %s", path, strings.Join(res.Errors, "; "))
	}
	return nil
}

func (a *app) logSkipped(skipped []string) {
	if len(skipped) > 0 {
		a.log.Info("skipped duplicate records", "records", skipped)
	}
}
