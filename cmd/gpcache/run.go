package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/on-the-ground/effect_ive_gpcache/effects/binding"
	"github.com/on-the-ground/effect_ive_gpcache/effects/concurrency"
	"github.com/on-the-ground/effect_ive_gpcache/effects/gpcache"
	"github.com/on-the-ground/effect_ive_gpcache/effects/log"
	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/model"
	"github.com/on-the-ground/effect_ive_gpcache/memo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	configPath string
	threshold  float64
	points     int
	contexts   []string
	cost       time.Duration
	verbose    bool
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a synthetic expensive function through the cache",
		Long: `Evaluates a synthetic expensive function over a grid of points, once per
context, and reports how many calls the cache answered from its model.

Examples:
  gpcache run
  gpcache run --threshold 0.01 --points 200
  gpcache run --config gpcache.yaml --contexts slow,fast,noisy`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("threshold") {
				opts.threshold = math.NaN()
			}
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML file of binding keys")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", memo.DefaultVarianceThreshold, "variance above which the function is called")
	cmd.Flags().IntVar(&opts.points, "points", 50, "grid points per context")
	cmd.Flags().StringSliceVar(&opts.contexts, "contexts", []string{"A", "B"}, "context names, one cache instance each")
	cmd.Flags().DurationVar(&opts.cost, "cost", time.Millisecond, "simulated cost of one function call")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log every prediction")
	return cmd
}

// contextSummary is the outcome for one context.
type contextSummary struct {
	Name  string
	Calls int64
	Stats memo.Stats
	Err   error
}

func run(ctx context.Context, opts runOptions, out io.Writer) error {
	summaries, elapsed, err := execute(ctx, opts)
	if summaries != nil {
		printSummary(out, summaries, elapsed)
	}
	return err
}

// execute installs the effect handlers, evaluates every context concurrently
// and reports per-context statistics.
func execute(ctx context.Context, opts runOptions) ([]contextSummary, time.Duration, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.points <= 0 {
		return nil, 0, fmt.Errorf("--points must be positive, got %d", opts.points)
	}
	if len(opts.contexts) == 0 {
		return nil, 0, fmt.Errorf("--contexts must name at least one context")
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		return nil, 0, err
	}
	defer zap.ReplaceGlobals(logger)()

	bindings, err := loadBindings(opts.configPath)
	if err != nil {
		return nil, 0, err
	}

	ctx, endOfLog := log.WithZapEffectHandler(ctx, 64, logger)
	defer endOfLog()

	ctx, endOfBinding := binding.WithEffectHandler(ctx, effectmodel.NewEffectScopeConfig(1, 1), bindings)
	defer endOfBinding()

	cfg, err := gpcache.ConfigFromBindings(ctx)
	if err != nil {
		return nil, 0, err
	}
	if !math.IsNaN(opts.threshold) {
		cfg.VarianceThreshold = opts.threshold
	}
	if cfg.Scope.NumWorkers < len(opts.contexts) {
		cfg.Scope.NumWorkers = len(opts.contexts)
	}

	fn, calls := syntheticFunc(opts.cost)
	ctx, endOfCache := gpcache.WithEffectHandler(ctx, cfg.Scope, fn, cfg.Options()...)
	defer endOfCache()

	ctx, endOfConcurrency := concurrency.WithEffectHandler(ctx, len(opts.contexts))
	defer endOfConcurrency()

	log.LogEff(ctx, log.LogInfo, "starting run", map[string]interface{}{
		"contexts":           opts.contexts,
		"points":             opts.points,
		"variance_threshold": cfg.VarianceThreshold,
		"workers":            cfg.Scope.NumWorkers,
	})

	summaries := make([]contextSummary, len(opts.contexts))
	children := make([]func(context.Context), len(opts.contexts))
	for i, name := range opts.contexts {
		children[i] = func(ctx context.Context) {
			summaries[i] = evaluateGrid(ctx, name, opts.points)
		}
	}
	start := time.Now()
	if err := concurrency.Go(ctx, children...); err != nil {
		return nil, 0, err
	}
	elapsed := time.Since(start)

	var firstErr error
	for i := range summaries {
		s := &summaries[i]
		s.Calls = calls(s.Name)
		if s.Err != nil && firstErr == nil {
			firstErr = s.Err
		}
		log.LogEff(ctx, log.LogInfo, "context finished", map[string]interface{}{
			"context":       s.Name,
			"training_size": s.Stats.TrainingSize,
			"hits":          s.Stats.Hits,
			"misses":        s.Stats.Misses,
			"failures":      s.Stats.Failures,
			"last_compute":  s.Stats.LastCompute.Duration().String(),
		})
	}

	return summaries, elapsed, firstErr
}

func evaluateGrid(ctx context.Context, name string, points int) contextSummary {
	summary := contextSummary{Name: name}
	for i := 0; i < points; i++ {
		x := []float64{gridPoint(i, points)}
		if _, err := gpcache.Effect(ctx, x, name); err != nil {
			summary.Err = fmt.Errorf("context %s at x=%v: %w", name, x[0], err)
			break
		}
	}
	st, _, err := gpcache.StatsEffect(ctx, name)
	if err != nil && summary.Err == nil {
		summary.Err = err
	}
	summary.Stats = st
	return summary
}

// gridPoint walks [-2, 2] twice. The first half is a coarse pass; the second
// half alternates between revisiting coarse points and probing midpoints.
func gridPoint(i, n int) float64 {
	half := (n + 1) / 2
	step := 4 / float64(max(half-1, 1))
	if i < half {
		return -2 + step*float64(i)
	}
	j := i - half
	if j%2 == 0 {
		return -2 + step*float64(j/2)
	}
	return -2 + step*(float64(j/2)+0.5)
}

// syntheticFunc returns the expensive function and a per-context call
// counter. The context name selects the frequency of a sine.
func syntheticFunc(cost time.Duration) (memo.KeyedFunc, func(name string) int64) {
	var mu sync.Mutex
	counts := map[string]int64{}

	fn := func(ctx context.Context, x []float64, contextArgs ...any) (float64, error) {
		name, _ := contextArgs[0].(string)
		mu.Lock()
		counts[name]++
		mu.Unlock()

		if cost > 0 {
			select {
			case <-time.After(cost):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		freq := 1 + float64(len(name)%3)
		return math.Sin(freq * x[0]), nil
	}
	calls := func(name string) int64 {
		mu.Lock()
		defer mu.Unlock()
		return counts[name]
	}
	return fn, calls
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func printSummary(out io.Writer, summaries []contextSummary, elapsed time.Duration) {
	sorted := append([]contextSummary(nil), summaries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	fmt.Fprintf(out, "%-12s %8s %8s %8s %8s\n", "context", "calls", "hits", "misses", "trained")
	for _, s := range sorted {
		fmt.Fprintf(out, "%-12s %8d %8d %8d %8d\n", s.Name, s.Calls, s.Stats.Hits, s.Stats.Misses, s.Stats.TrainingSize)
	}
	fmt.Fprintf(out, "elapsed %s\n", elapsed.Round(time.Millisecond))
}
