package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"windowopt/internal/logging"
	"windowopt/internal/mangle"
	"windowopt/internal/metrics"
	"windowopt/internal/optimize"
	"windowopt/internal/solver"
	"windowopt/internal/window"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxParallelReads bounds concurrent input file reads.
const maxParallelReads = 4

func (o *options) run(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	frags, err := loadPrograms(ctx, args)
	if err != nil {
		return err
	}

	engine := solver.NewEngine(o.cfg.Mangle.ToMangle())
	if err := engine.Configure(o.cfg.Solver.Options); err != nil {
		return fmt.Errorf("configure solver: %w", err)
	}
	for _, f := range frags {
		if err := engine.AddNamedFragment(f.Name, f.Params, f.Text); err != nil {
			return fmt.Errorf("register fragment %s: %w", f.Name, err)
		}
	}
	optCfg := o.cfg.OptimizeConfig()
	if optCfg.BoundFragment != "" && !engine.HasFragment(optCfg.BoundFragment) {
		return fmt.Errorf("optimizer.bound_fragment: %w: %s", solver.ErrUnknownFragment, optCfg.BoundFragment)
	}

	var rec optimize.Recorder
	if o.metrics {
		m := metrics.New()
		rec = m
		defer func() {
			m.SetSolverStats(engine.Stats())
			if werr := m.WriteText(cmd.ErrOrStderr()); werr != nil && err == nil {
				err = werr
			}
		}()
	}

	report, err := window.New(engine, o.cfg.WindowConfig(), optCfg, rec).Run(ctx)
	if m, ok := rec.(*metrics.Metrics); ok && report != nil {
		for _, w := range report.Windows {
			m.SetWindowBound(w.Window, w.Bound)
		}
	}
	if err != nil {
		return err
	}

	st := engine.Stats()
	logging.Solver("run statistics",
		zap.Int("groundings", st.Groundings),
		zap.Int("solves", st.Solves),
		zap.Int("models", st.Models),
		zap.Int64("nodes", st.Nodes),
		zap.Int("solve_attempts", report.SolveAttempts),
		zap.Int("improving", report.Improving),
		zap.Int("budget_stops", report.BudgetStops))

	return report.Render(cmd.OutOrStdout())
}

// loadPrograms reads and splits the input files concurrently and merges their
// fragments in argument order.
func loadPrograms(ctx context.Context, paths []string) ([]mangle.Fragment, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "load inputs")
	defer timer.Stop()

	sets := make([][]mangle.Fragment, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			frags, err := mangle.SplitProgram(string(data))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			sets[i] = frags
			logging.Boot("input loaded", zap.String("path", path), zap.Int("fragments", len(frags)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mangle.MergeFragments(sets...)
}
