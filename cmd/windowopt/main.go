package main

import (
	"fmt"
	"os"

	"windowopt/internal/config"
	"windowopt/internal/logging"
	"windowopt/internal/solver"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// skipConfigAnnotation marks commands that must run without a loadable
// configuration, such as writing a fresh one over a broken file.
const skipConfigAnnotation = "windowopt/skip-config"

// options collects the flags of one invocation.
type options struct {
	configPath    string
	windows       int
	maxTimeout    string
	solverOpts    []string
	boundFragment string
	verbose       bool
	metrics       bool

	cfg   *config.Config
	runID string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "windowopt [flags] <file>...",
		Short: "Windowed incremental schedule optimization",
		Long: `windowopt splits a scheduling problem into consecutive time windows and
optimizes each one under a share of the total time budget. The schedule of
every window is handed to the next one as startTime facts.

Input files are Mangle programs. Lines of the form
  #program name(param, ...).
start a named fragment; text before the first header belongs to "base".
Window i grounds subproblem(i); windows after the first also ground the
previous window's schedule as solutionTimeWindow<i>.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, args)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.DefaultPath, "Configuration file (YAML)")
	flags.IntVar(&opts.windows, "windows", 0, "Number of time windows (overrides config)")
	flags.StringVar(&opts.maxTimeout, "max-timeout", "", "Total time budget, e.g. 1000s or 1000 (overrides config)")
	flags.StringArrayVar(&opts.solverOpts, "solver-opt", nil, fmt.Sprintf("Solver option key=value, repeatable (keys: %v)", solver.OptionKeys()))
	flags.StringVar(&opts.boundFragment, "bound-fragment", "", "Fragment grounded with bound-1 before each tightening step")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.BoolVar(&opts.metrics, "metrics", false, "Print Prometheus metrics to stderr after the run")

	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

// setup loads the configuration, applies flag overrides and installs the logger.
func (o *options) setup(cmd *cobra.Command) error {
	if _, skip := cmd.Annotations[skipConfigAnnotation]; skip {
		return nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("windows") {
		cfg.Windows = o.windows
	}
	if flags.Changed("max-timeout") {
		cfg.MaxTimeout = o.maxTimeout
	}
	if flags.Changed("bound-fragment") {
		cfg.Optimizer.BoundFragment = o.boundFragment
	}
	for _, raw := range o.solverOpts {
		key, value, err := solver.ParseOption(raw)
		if err != nil {
			return err
		}
		cfg.Solver.Set(key, value)
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
		return err
	}
	o.runID = uuid.NewString()
	logging.With(zap.String("run_id", o.runID))
	logging.Boot("configuration loaded",
		zap.String("config", o.configPath),
		zap.Int("windows", cfg.Windows),
		zap.Duration("max_timeout", cfg.GetMaxTimeout()),
		zap.Any("solver_options", cfg.Solver.Options))

	o.cfg = cfg
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
