package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/paramspec/config"
	"github.com/c360studio/paramspec/eval"
	"github.com/c360studio/paramspec/export"
	"github.com/c360studio/paramspec/graph"
	"github.com/c360studio/paramspec/metrics"
	"github.com/c360studio/paramspec/propagate"
	"github.com/c360studio/paramspec/registry"
	"github.com/c360studio/paramspec/report"
	"github.com/c360studio/paramspec/scan"
	"github.com/c360studio/paramspec/snapshot"
)

const (
	// snapshotFile is the snapshot artifact name inside the export directory.
	snapshotFile = "snapshot.json"
	// reportJSONFile and reportMarkdownFile are the audit report artifacts.
	reportJSONFile     = "report.json"
	reportMarkdownFile = "report.md"
)

// app bundles the loaded configuration and logger shared by all commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newApp(configPath, logLevel string) (*app, error) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	loader := config.NewLoader(logger)
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = loader.LoadFrom(configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return &app{cfg: cfg, logger: logger}, nil
}

// buildResult is the outcome of one pipeline run.
type buildResult struct {
	reg      *registry.Registry
	snap     *snapshot.Snapshot
	prop     *propagate.Result
	warnings []string
}

// runPipeline executes load -> graph -> evaluate -> propagate -> snapshot.
// Any returned error is structural and makes downstream data unsound.
func (a *app) runPipeline(ctx context.Context, analyticOnly bool) (*buildResult, error) {
	start := time.Now()

	reg, err := registry.Load(a.cfg.Spec.Path)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Loaded parameter spec",
		"path", a.cfg.Spec.Path,
		"parameters", reg.Len())

	g, err := graph.Build(reg)
	if err != nil {
		return nil, err
	}

	funcs := eval.NewRegistry()
	if err := eval.RegisterBuiltins(funcs, reg); err != nil {
		return nil, err
	}

	if err := eval.New(g, reg, funcs, a.logger).Evaluate(); err != nil {
		return nil, err
	}

	prop, err := a.propagateUncertainty(ctx, g, reg, funcs, analyticOnly)
	if err != nil {
		return nil, err
	}

	snap, err := snapshot.Build(reg, prop)
	if err != nil {
		return nil, err
	}

	warnings := make([]string, 0, len(prop.Warnings))
	for _, w := range prop.Warnings {
		warnings = append(warnings, w.String())
	}

	metrics.BuildDuration.Observe(time.Since(start).Seconds())
	a.logger.Info("Pipeline complete",
		"content_hash", snap.ContentHash,
		"duration", time.Since(start).Round(time.Millisecond))

	return &buildResult{reg: reg, snap: snap, prop: prop, warnings: warnings}, nil
}

// propagateUncertainty runs Monte Carlo within the configured budget and
// degrades to the analytic propagator on timeout.
func (a *app) propagateUncertainty(ctx context.Context, g *graph.Graph, reg *registry.Registry, funcs *eval.Registry, analyticOnly bool) (*propagate.Result, error) {
	p := propagate.New(g, reg, funcs, a.logger)

	if analyticOnly {
		start := time.Now()
		res, err := p.Analytic()
		if err != nil {
			return nil, err
		}
		metrics.PropagationDuration.WithLabelValues(string(res.Mode)).Observe(time.Since(start).Seconds())
		return res, nil
	}

	timeout, err := a.cfg.PropagationTimeout()
	if err != nil {
		return nil, err
	}
	mcCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := p.MonteCarlo(mcCtx, propagate.MCConfig{
		Samples: a.cfg.Propagation.Samples,
		Seed:    a.cfg.Propagation.Seed,
		Workers: a.cfg.Propagation.Workers,
	})
	if err != nil {
		if !errors.Is(err, propagate.ErrTimeout) {
			return nil, err
		}
		a.logger.Warn("Monte Carlo exceeded budget, falling back to analytic propagation",
			"budget", timeout)
		res, err = p.Analytic()
		if err != nil {
			return nil, err
		}
	} else {
		metrics.SamplesDrawn.Add(float64(res.Samples))
	}
	metrics.PropagationDuration.WithLabelValues(string(res.Mode)).Observe(time.Since(start).Seconds())

	return res, nil
}

// export writes all artifacts (snapshot, datasets, constants, manifest) and
// verifies the generated constants module.
func (a *app) export(res *buildResult) error {
	if err := os.MkdirAll(a.cfg.Export.Dir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := export.New(res.reg, res.snap, a.logger).Export(a.cfg.Export.Dir); err != nil {
		return err
	}
	return res.snap.Save(filepath.Join(a.cfg.Export.Dir, snapshotFile))
}

// scanCorpus scans the document corpus against a snapshot and builds the
// audit report. The scan always completes; issues never abort it.
func (a *app) scanCorpus(snap *snapshot.Snapshot, warnings []string) (*report.Report, error) {
	scanner, err := scan.New(snap, a.scanOptions())
	if err != nil {
		return nil, err
	}
	res, err := scanner.Run()
	if err != nil {
		return nil, err
	}

	rep := report.Build(snap, res, warnings)

	metrics.DocumentsScanned.Set(float64(res.Documents))
	for kind, n := range rep.ByKind {
		metrics.IssuesFound.WithLabelValues(string(kind)).Set(float64(n))
	}

	return rep, nil
}

func (a *app) scanOptions() scan.Options {
	tolerances := make(map[string]scan.ToleranceSpec, len(a.cfg.Scan.Tolerances))
	for cat, t := range a.cfg.Scan.Tolerances {
		tolerances[cat] = scan.ToleranceSpec{Absolute: t.Absolute, Relative: t.Relative}
	}
	var defaultTol scan.ToleranceSpec
	if t := a.cfg.Scan.DefaultTolerance; t != nil {
		defaultTol = scan.ToleranceSpec{Absolute: t.Absolute, Relative: t.Relative}
	}
	return scan.Options{
		Root:             a.cfg.Scan.Root,
		Globs:            a.cfg.Scan.Globs,
		ExcludeDirs:      a.cfg.Scan.ExcludeDirs,
		Tolerances:       tolerances,
		DefaultTolerance: defaultTol,
		NumberingPattern: a.cfg.Scan.NumberingPattern,
		Workers:          a.cfg.Scan.Workers,
		Logger:           a.logger,
	}
}

// writeReport persists the audit report next to the other artifacts.
func (a *app) writeReport(rep *report.Report) error {
	if err := os.MkdirAll(a.cfg.Export.Dir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	data, err := rep.JSON()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(a.cfg.Export.Dir, reportJSONFile), data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(a.cfg.Export.Dir, reportMarkdownFile), []byte(rep.Markdown()), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func buildCmd(configPath, logLevel *string) *cobra.Command {
	var analyticOnly bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Load the spec, derive all parameters, and export artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *logLevel)
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}

			res, err := a.runPipeline(cmd.Context(), analyticOnly)
			if err != nil {
				metrics.BuildsTotal.WithLabelValues("fatal").Inc()
				return &exitError{code: exitStructural, err: err}
			}
			if err := a.export(res); err != nil {
				metrics.BuildsTotal.WithLabelValues("fatal").Inc()
				return &exitError{code: exitStructural, err: err}
			}

			fmt.Printf("Build %s (%s) exported to %s\n",
				res.snap.BuildID, res.snap.ContentHash[:12], a.cfg.Export.Dir)

			if len(res.warnings) > 0 {
				for _, w := range res.warnings {
					fmt.Printf("warning: %s\n", w)
				}
				metrics.BuildsTotal.WithLabelValues("issues").Inc()
				return &exitError{code: exitIssues}
			}
			metrics.BuildsTotal.WithLabelValues("ok").Inc()
			return nil
		},
	}

	cmd.Flags().BoolVar(&analyticOnly, "analytic", false, "Skip Monte Carlo, use analytic propagation only")
	return cmd
}

func validateCmd(configPath, logLevel *string) *cobra.Command {
	var snapshotPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Scan the document corpus against an exported snapshot",
		Long: `Validate scans every document in the corpus against the frozen snapshot
and accumulates every issue into one exhaustive report; it never stops at
the first finding. The exit code is 1 if any issue was found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *logLevel)
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}

			path := snapshotPath
			if path == "" {
				path = filepath.Join(a.cfg.Export.Dir, snapshotFile)
			}
			snap, err := snapshot.Load(path)
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}

			rep, err := a.scanCorpus(snap, nil)
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}
			if err := a.writeReport(rep); err != nil {
				return &exitError{code: exitStructural, err: err}
			}

			fmt.Print(rep.Markdown())

			if rep.HasIssues() {
				return &exitError{code: exitIssues}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Snapshot file (default: <export dir>/snapshot.json)")
	return cmd
}

func propagateCmd(configPath, logLevel *string) *cobra.Command {
	var (
		samples      int
		seed         uint64
		analyticOnly bool
	)

	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Run uncertainty propagation and print a summary table",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, *logLevel)
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}
			if samples > 0 {
				a.cfg.Propagation.Samples = samples
			}
			if seed != 0 {
				a.cfg.Propagation.Seed = seed
			}

			res, err := a.runPipeline(cmd.Context(), analyticOnly)
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}

			printPropagation(res.prop)
			for _, w := range res.warnings {
				fmt.Printf("warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&samples, "samples", 0, "Monte Carlo sample count (default from config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Monte Carlo seed (default from config)")
	cmd.Flags().BoolVar(&analyticOnly, "analytic", false, "Skip Monte Carlo, use analytic propagation only")
	return cmd
}

func printPropagation(res *propagate.Result) {
	fmt.Printf("Propagation: %s", res.Mode)
	if res.Mode == propagate.ModeMonteCarlo {
		fmt.Printf(" (samples=%d seed=%d failed=%d)", res.Samples, res.Seed, res.FailedSamples)
	}
	fmt.Println()

	ids := make([]string, 0, len(res.Stats))
	for id := range res.Stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PARAMETER\tMEAN\tSTD\tP2.5\tP50\tP97.5")
	for _, id := range ids {
		s := res.Stats[id]
		if res.Underspecified[id] {
			fmt.Fprintf(w, "%s\t%g\tunknown\t-\t-\t-\n", id, s.Mean)
			continue
		}
		fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%g\t%g\n",
			id, s.Mean, s.Std, s.Percentiles.P025, s.Percentiles.P50, s.Percentiles.P975)
	}
	w.Flush()
}

func diffCmd(logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <snapshotA> <snapshotB>",
		Short: "Compare two snapshot artifacts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapA, err := snapshot.Load(args[0])
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}
			snapB, err := snapshot.Load(args[1])
			if err != nil {
				return &exitError{code: exitStructural, err: err}
			}

			d := snapshot.Compare(snapA, snapB)
			fmt.Print(d.Render())
			if !d.Empty() {
				return &exitError{code: exitIssues}
			}
			return nil
		},
	}
}
