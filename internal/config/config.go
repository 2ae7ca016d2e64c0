// Package config assembles the runtime configuration from, in increasing
// precedence, built-in defaults, a YAML file, COILCUT_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/piwi3910/CoilCut/internal/logging"
	"github.com/piwi3910/CoilCut/internal/model"
	"github.com/piwi3910/CoilCut/internal/project"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// COILCUT_PARAMS_EDGE_WASTE_MAX_MM or COILCUT_LOG_LEVEL.
const EnvPrefix = "COILCUT"

// LogConfig selects the logger built by internal/logging.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// OutputConfig controls which artefacts a solve writes.
type OutputConfig struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	PDF         bool   `mapstructure:"pdf" yaml:"pdf"`
	Labels      bool   `mapstructure:"labels" yaml:"labels"`
	XLSX        bool   `mapstructure:"xlsx" yaml:"xlsx"`
	CSV         bool   `mapstructure:"csv" yaml:"csv"`
	Archive     bool   `mapstructure:"archive" yaml:"archive"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// Config is the complete runtime configuration.
type Config struct {
	Params model.Params `mapstructure:"params" yaml:"params"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Output OutputConfig `mapstructure:"output" yaml:"output"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Params: model.DefaultParams(),
		Log:    LogConfig{Level: "info"},
		Output: OutputConfig{Dir: ".", PDF: true, CSV: true},
	}
}

// DefaultPath returns ~/.coilcut/config.yaml.
func DefaultPath() string {
	return filepath.Join(project.DefaultDir(), "config.yaml")
}

// Validate checks the parameters against the operator ranges and the
// logging and output settings.
func (c Config) Validate() error {
	var errs []error
	if err := c.Params.CheckRanges(); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		errs = append(errs, errors.New("output.dir must not be empty"))
	}
	return errors.Join(errs...)
}

// flagSpec ties a command-line flag to its configuration key.
type flagSpec struct {
	name  string
	key   string
	usage string
}

var paramFlags = []flagSpec{
	{"waste-min", "params.edge_waste_min_mm", "minimum edge waste per roll (mm)"},
	{"waste-max", "params.edge_waste_max_mm", "maximum edge waste per roll (mm)"},
	{"kg-max", "params.roll_weight_max_kg", "maximum roll weight (kg)"},
	{"kg-min", "params.roll_weight_min_kg", "minimum roll weight (kg)"},
	{"max-cuts", "params.max_cuts_per_order", "maximum strips of one order in a pattern"},
	{"coverage", "params.coverage_margin", "minimum fraction of each order to deliver"},
	{"excess", "params.excess_margin_factor", "maximum multiple of each order to deliver"},
	{"min-run-relaxation", "params.min_run_relaxation_pct", "percent tolerance on minimum run lengths"},
	{"min-remainder", "params.min_remainder_m", "forbid coil remainders shorter than this (m, 0 disables)"},
	{"time-limit", "params.solve_time_limit_s", "solver time budget (s)"},
	{"max-orders-per-pattern", "params.max_orders_per_pattern", "maximum distinct orders in a pattern"},
	{"waste-penalty", "params.waste_penalty_factor", "objective weight of edge waste"},
	{"max-instances", "params.max_instances", "maximum rolls per pattern"},
	{"threads", "params.threads", "solver workers (0 = all CPUs)"},
	{"generation-workers", "params.generation_workers", "pattern generation workers (0 = all CPUs)"},
	{"objective", "params.objective", "objective mode: weighted or lexicographic"},
	{"verbose", "params.verbose", "log solver progress"},
	{"log-level", "log.level", "log level: debug, info, warn, error or a V level"},
	{"log-dev", "log.development", "human readable development logging"},
	{"out", "output.dir", "directory for generated files"},
	{"pdf", "output.pdf", "write the PDF production plan"},
	{"labels", "output.labels", "write QR roll labels"},
	{"xlsx", "output.xlsx", "write the Excel workbook"},
	{"csv", "output.csv", "write the flat CSV roll listing"},
	{"archive", "output.archive", "archive the run under ~/.coilcut/runs"},
	{"metrics-file", "output.metrics_file", "write Prometheus metrics to this textfile"},
}

// RegisterFlags adds the configuration flags to flags with the defaults as
// their default values.
func RegisterFlags(flags *pflag.FlagSet) {
	for _, f := range paramFlags {
		switch v := defaultValue(f.key).(type) {
		case float64:
			flags.Float64(f.name, v, f.usage)
		case int:
			flags.Int(f.name, v, f.usage)
		case bool:
			flags.Bool(f.name, v, f.usage)
		case string:
			flags.String(f.name, v, f.usage)
		case model.ObjectiveMode:
			flags.String(f.name, string(v), f.usage)
		}
	}
}

// ParamsChanged reports whether a parameter flag was set explicitly.
func ParamsChanged(flags *pflag.FlagSet) bool {
	for _, f := range paramFlags {
		if strings.HasPrefix(f.key, "params.") && flags.Changed(f.name) {
			return true
		}
	}
	return false
}

// Loader reads configuration through one viper instance.
type Loader struct {
	v    *viper.Viper
	used string
}

// NewLoader returns a loader with defaults and environment binding set up.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaultMap() {
		v.SetDefault(key, value)
	}
	return &Loader{v: v}
}

// BindFlags makes changed flags override file and environment values.
// Flags not registered by RegisterFlags are ignored.
func (l *Loader) BindFlags(flags *pflag.FlagSet) error {
	for _, f := range paramFlags {
		flag := flags.Lookup(f.name)
		if flag == nil {
			continue
		}
		if err := l.v.BindPFlag(f.key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", f.name, err)
		}
	}
	return nil
}

// Load reads the file at path, or the default config file when path is
// empty, and decodes the merged configuration. A missing default file is
// not an error; a missing explicit file is.
func (l *Loader) Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	l.v.SetConfigFile(path)
	l.used = ""
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if explicit || !missing {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		l.used = path
	}

	cfg := Default()
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the file the last Load read, or "" when none was.
func (l *Loader) ConfigFileUsed() string {
	return l.used
}

// SetParamsDefaults replaces the default parameters, e.g. with a preset.
// File, environment and flag values still override them.
func (l *Loader) SetParamsDefaults(p model.Params) {
	for key, value := range paramsMap(p) {
		l.v.SetDefault(key, value)
	}
}

// defaultMap flattens Default into viper keys.
func defaultMap() map[string]interface{} {
	d := Default()
	m := paramsMap(d.Params)
	m["log.level"] = d.Log.Level
	m["log.development"] = d.Log.Development
	m["output.dir"] = d.Output.Dir
	m["output.pdf"] = d.Output.PDF
	m["output.labels"] = d.Output.Labels
	m["output.xlsx"] = d.Output.XLSX
	m["output.csv"] = d.Output.CSV
	m["output.archive"] = d.Output.Archive
	m["output.metrics_file"] = d.Output.MetricsFile
	return m
}

func paramsMap(p model.Params) map[string]interface{} {
	return map[string]interface{}{
		"params.edge_waste_min_mm":      p.EdgeWasteMinMM,
		"params.edge_waste_max_mm":      p.EdgeWasteMaxMM,
		"params.roll_weight_max_kg":     p.RollWeightMaxKg,
		"params.roll_weight_min_kg":     p.RollWeightMinKg,
		"params.max_cuts_per_order":     p.MaxCutsPerOrder,
		"params.coverage_margin":        p.CoverageMargin,
		"params.excess_margin_factor":   p.ExcessMarginFactor,
		"params.min_run_relaxation_pct": p.MinRunRelaxationPct,
		"params.min_remainder_m":        p.MinRemainderM,
		"params.solve_time_limit_s":     p.SolveTimeLimitS,
		"params.max_orders_per_pattern": p.MaxOrdersPerPattern,
		"params.waste_penalty_factor":   p.WastePenaltyFactor,
		"params.max_instances":          p.MaxInstances,
		"params.threads":                p.Threads,
		"params.generation_workers":     p.GenerationWorkers,
		"params.objective":              p.Objective,
		"params.verbose":                p.Verbose,
	}
}

func defaultValue(key string) interface{} {
	return defaultMap()[key]
}
