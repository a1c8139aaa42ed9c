// Package memo caches expensive real-valued functions of real vectors by
// substituting Gaussian Process predictions for calls whose predictive
// variance is low enough.
//
// Adaptive wraps a single function. Keyed partitions a family of functions by
// their non-numeric arguments and lazily creates one Adaptive per distinct
// context.
//
// Example:
//
//	cache := memo.NewAdaptive(func(ctx context.Context, x []float64) (float64, error) {
//	    return simulate(ctx, x)
//	}, memo.WithVarianceThreshold(0.5))
//
//	y, err := cache.Evaluate(ctx, []float64{0.3, 1.2})
package memo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/on-the-ground/effect_ive_gpcache/regression"
	"github.com/rickb777/date/v2/timespan"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrTimeout is returned when the expensive function outlives WithTimeout.
	ErrTimeout = fmt.Errorf("expensive function timed out")

	// ErrExternalPanic wraps a panic raised by the expensive function while
	// running under a timeout.
	ErrExternalPanic = fmt.Errorf("expensive function panicked")

	ErrNumerical         = regression.ErrNumerical
	ErrDimensionMismatch = regression.ErrDimensionMismatch
)

// Func is the expensive function being cached.
type Func func(ctx context.Context, x []float64) (float64, error)

type State int

const (
	StateEmpty State = iota
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateTrained:
		return "trained"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats is a snapshot of an Adaptive's counters.
type Stats struct {
	State        State
	TrainingSize int
	Hits         int
	Misses       int
	Failures     int

	// LastCompute spans the most recent call to the expensive function,
	// successful or not. Zero before the first miss.
	LastCompute timespan.TimeSpan
}

// Adaptive memoizes one Func with a Gaussian Process.
//
// Calls on one instance are serialized: a call waits for any in-flight miss
// to finish (or for its ctx to end) before predicting.
type Adaptive struct {
	fn     Func
	cfg    config
	logger *zap.Logger
	gate   *semaphore.Weighted

	// guarded by gate
	engine *regression.Engine
	args   [][]float64
	labels []float64

	size     atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
	failures atomic.Int64

	lastCompute atomic.Pointer[timespan.TimeSpan]
}

func NewAdaptive(fn Func, opts ...Option) *Adaptive {
	return newAdaptive(fn, applyOptions(opts), nil)
}

func newAdaptive(fn Func, cfg config, logger *zap.Logger) *Adaptive {
	if logger == nil {
		logger = cfg.logger
	}
	return &Adaptive{
		fn:     fn,
		cfg:    cfg,
		logger: logger,
		gate:   semaphore.NewWeighted(1),
		engine: regression.New(cfg.newKernel()),
	}
}

// Evaluate returns a predicted or computed value for x.
//
// Errors from the expensive function are returned unchanged. Neither they nor
// a failed retrain change the trained model.
func (a *Adaptive) Evaluate(ctx context.Context, x []float64) (float64, error) {
	if err := a.gate.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer a.gate.Release(1)
	return a.evaluate(ctx, x)
}

// Perform starts Evaluate and returns a channel that receives exactly one
// Result and is then closed.
func (a *Adaptive) Perform(ctx context.Context, x []float64) <-chan Result {
	return perform(func() (float64, error) { return a.Evaluate(ctx, x) })
}

// Call evaluates x and resumes k exactly once, on the calling goroutine.
func (a *Adaptive) Call(ctx context.Context, k Continuation, x []float64) {
	k(a.Evaluate(ctx, x))
}

// Predict returns the current posterior at x without calling the expensive
// function. ok is false while the cache is empty.
func (a *Adaptive) Predict(ctx context.Context, x []float64) (pred regression.Prediction, ok bool, err error) {
	if err = a.gate.Acquire(ctx, 1); err != nil {
		return
	}
	defer a.gate.Release(1)
	return a.predict(x)
}

func (a *Adaptive) Stats() Stats {
	st := Stats{
		TrainingSize: int(a.size.Load()),
		Hits:         int(a.hits.Load()),
		Misses:       int(a.misses.Load()),
		Failures:     int(a.failures.Load()),
	}
	if st.TrainingSize > 0 {
		st.State = StateTrained
	}
	if span := a.lastCompute.Load(); span != nil {
		st.LastCompute = *span
	}
	return st
}

func (a *Adaptive) predict(x []float64) (regression.Prediction, bool, error) {
	if len(a.args) == 0 {
		return regression.Prediction{}, false, nil
	}
	if dim := a.engine.Dim(); len(x) != dim {
		return regression.Prediction{}, false, fmt.Errorf("%w: argument has dimension %d, want %d", ErrDimensionMismatch, len(x), dim)
	}
	preds, err := a.engine.Evaluate([][]float64{x})
	if err != nil {
		return regression.Prediction{}, false, err
	}
	return preds[0], true, nil
}

func (a *Adaptive) evaluate(ctx context.Context, x []float64) (float64, error) {
	pred, ok, err := a.predict(x)
	if err != nil {
		a.failures.Add(1)
		return 0, err
	}
	if ok {
		a.logger.Debug("prediction",
			zap.Float64s("args", x),
			zap.Float64("mean", pred.Mean),
			zap.Float64("variance", pred.Variance),
		)
		if pred.Variance <= a.cfg.varianceThreshold {
			a.hits.Add(1)
			a.logger.Debug("using prediction", zap.Float64s("args", x), zap.Float64("value", pred.Mean))
			return pred.Mean, nil
		}
	}

	a.misses.Add(1)
	a.logger.Debug("computing new value", zap.Float64s("args", x))
	arg := append([]float64(nil), x...)
	start := time.Now()
	v, err := a.compute(ctx, arg)
	span := timespan.BetweenTimes(start, time.Now())
	a.lastCompute.Store(&span)
	if err != nil {
		a.failures.Add(1)
		a.logger.Debug("expensive function failed", zap.Float64s("args", x), zap.Error(err))
		return 0, err
	}

	args := make([][]float64, len(a.args), len(a.args)+1)
	copy(args, a.args)
	args = append(args, arg)
	labels := make([]float64, len(a.labels), len(a.labels)+1)
	copy(labels, a.labels)
	labels = append(labels, v)

	a.logger.Debug("re-training", zap.Int("training_size", len(args)))
	if err := a.engine.Train(args, labels); err != nil {
		a.failures.Add(1)
		a.logger.Warn("re-training failed, keeping previous model",
			zap.Int("training_size", len(a.args)),
			zap.Error(err),
		)
		return 0, err
	}
	a.args, a.labels = args, labels
	a.size.Store(int64(len(args)))
	return v, nil
}

func (a *Adaptive) compute(ctx context.Context, x []float64) (float64, error) {
	if a.cfg.timeout <= 0 {
		return a.fn(ctx, x)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- ResultFrom(0, fmt.Errorf("%w: %v", ErrExternalPanic, r))
			}
		}()
		done <- ResultFrom(a.fn(ctx, x))
	}()

	select {
	case res := <-done:
		if res.Err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w after %s: %w", ErrTimeout, a.cfg.timeout, ctx.Err())
		}
		return res.Value, res.Err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w after %s: %w", ErrTimeout, a.cfg.timeout, ctx.Err())
		}
		return 0, ctx.Err()
	}
}
