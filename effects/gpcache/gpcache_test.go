package gpcache_test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/on-the-ground/effect_ive_gpcache/effects/binding"
	"github.com/on-the-ground/effect_ive_gpcache/effects/configkeys"
	"github.com/on-the-ground/effect_ive_gpcache/effects/gpcache"
	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/model"
	"github.com/on-the-ground/effect_ive_gpcache/memo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offset(calls *atomic.Int64) memo.KeyedFunc {
	return func(_ context.Context, x []float64, contextArgs ...any) (float64, error) {
		calls.Add(1)
		switch contextArgs[0] {
		case "A":
			return 1 + x[0], nil
		default:
			return 10 + x[0], nil
		}
	}
}

func TestEffect_ContextsAreIndependent(t *testing.T) {
	var calls atomic.Int64
	ctx, end := gpcache.WithEffectHandler(
		context.Background(),
		effectmodel.NewEffectScopeConfig(4, 2),
		offset(&calls),
	)
	defer end()

	v, err := gpcache.Effect(ctx, []float64{0.5}, "A")
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	v, err = gpcache.Effect(ctx, []float64{0.5}, "B")
	require.NoError(t, err)
	assert.Equal(t, 10.5, v)

	v, err = gpcache.Effect(ctx, []float64{0.5}, "A")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, v, 1e-9)
	assert.EqualValues(t, 2, calls.Load())

	st, ok, err := gpcache.StatsEffect(ctx, "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, st.TrainingSize)
	assert.Equal(t, 1, st.Hits)

	_, ok, err = gpcache.StatsEffect(ctx, "C")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEffect_ConcurrentCallersShareOneInstancePerKey(t *testing.T) {
	var calls atomic.Int64
	ctx, end := gpcache.WithEffectHandler(
		context.Background(),
		effectmodel.NewEffectScopeConfig(8, 4),
		offset(&calls),
		memo.WithVarianceThreshold(math.Inf(1)),
	)
	defer end()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "A"
			if i%2 == 1 {
				name = "B"
			}
			_, err := gpcache.Effect(ctx, []float64{float64(i)}, name)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// +Inf threshold: only the first call per key reaches the function
	assert.EqualValues(t, 2, calls.Load())
}

func TestPerformEffect_ResumesOnce(t *testing.T) {
	var calls atomic.Int64
	ctx, end := gpcache.WithEffectHandler(context.Background(), effectmodel.NewEffectScopeConfig(1, 1), offset(&calls))
	defer end()

	ch, err := gpcache.PerformEffect(ctx, []float64{2}, "B")
	require.NoError(t, err)

	res, ok := <-ch
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, 12.0, res.Value.Value)

	_, ok = <-ch
	assert.False(t, ok)
}

func TestPerformEffect_CallerMutationDoesNotReroute(t *testing.T) {
	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	var first sync.Once
	inner := offset(&calls)
	ctx, end := gpcache.WithEffectHandler(
		context.Background(),
		effectmodel.NewEffectScopeConfig(4, 1),
		func(ctx context.Context, x []float64, contextArgs ...any) (float64, error) {
			first.Do(func() {
				close(started)
				<-release
			})
			return inner(ctx, x, contextArgs...)
		},
	)
	defer end()

	blocked, err := gpcache.PerformEffect(ctx, []float64{0}, "A")
	require.NoError(t, err)
	<-started

	args := []any{"A"}
	queued, err := gpcache.PerformEffect(ctx, []float64{2}, args...)
	require.NoError(t, err)
	args[0] = "B"
	close(release)

	require.NoError(t, (<-blocked).Err)
	res := <-queued
	require.NoError(t, res.Err)
	assert.Equal(t, 3.0, res.Value.Value)

	st, ok, err := gpcache.StatsEffect(ctx, "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, st.TrainingSize)

	_, ok, err = gpcache.StatsEffect(ctx, "B")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEffect_UnserializableContext(t *testing.T) {
	ctx, end := gpcache.WithEffectHandler(context.Background(), effectmodel.NewEffectScopeConfig(1, 1),
		func(context.Context, []float64, ...any) (float64, error) { return 0, nil })
	defer end()

	_, err := gpcache.Effect(ctx, []float64{1}, make(chan int))
	assert.ErrorIs(t, err, memo.ErrContextKey)
}

func TestEffect_CancelledCallerStopsWaiting(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	ctx, end := gpcache.WithEffectHandler(context.Background(), effectmodel.NewEffectScopeConfig(1, 1),
		func(context.Context, []float64, ...any) (float64, error) {
			<-release
			return 0, nil
		})
	defer end()

	callCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := gpcache.Effect(callCtx, []float64{1}, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEffect_PanicsWithoutHandler(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = gpcache.Effect(context.Background(), []float64{1}, "A")
	})
}

func TestConfigFromBindings(t *testing.T) {
	t.Run("defaults without any binding handler", func(t *testing.T) {
		cfg, err := gpcache.ConfigFromBindings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, effectmodel.NewEffectScopeConfig(1, 1), cfg.Scope)
		assert.Equal(t, memo.DefaultVarianceThreshold, cfg.VarianceThreshold)
		assert.Zero(t, cfg.Timeout)
		assert.Zero(t, cfg.MaxContexts)
	})

	t.Run("bound values", func(t *testing.T) {
		ctx, end := binding.WithEffectHandler(context.Background(), effectmodel.NewEffectScopeConfig(1, 1), map[string]any{
			configkeys.ConfigEffectGPCacheHandlerBufferSize: 32,
			configkeys.ConfigEffectGPCacheHandlerNumWorkers: 4.0,
			configkeys.ConfigEffectGPCacheVarianceThreshold: 0.05,
			configkeys.ConfigEffectGPCacheTimeout:           "250ms",
			configkeys.ConfigEffectGPCacheMaxContexts:       100,
		})
		defer end()

		cfg, err := gpcache.ConfigFromBindings(ctx)
		require.NoError(t, err)
		assert.Equal(t, effectmodel.NewEffectScopeConfig(32, 4), cfg.Scope)
		assert.Equal(t, 0.05, cfg.VarianceThreshold)
		assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
		assert.Equal(t, 100, cfg.MaxContexts)
		assert.Len(t, cfg.Options(), 3)
	})

	t.Run("numeric timeout is seconds", func(t *testing.T) {
		ctx, end := binding.WithEffectHandler(context.Background(), effectmodel.NewEffectScopeConfig(1, 1), map[string]any{
			configkeys.ConfigEffectGPCacheTimeout: 2,
		})
		defer end()

		cfg, err := gpcache.ConfigFromBindings(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, cfg.Timeout)
	})

	t.Run("malformed value", func(t *testing.T) {
		ctx, end := binding.WithEffectHandler(context.Background(), effectmodel.NewEffectScopeConfig(1, 1), map[string]any{
			configkeys.ConfigEffectGPCacheVarianceThreshold: "low",
		})
		defer end()

		_, err := gpcache.ConfigFromBindings(ctx)
		assert.Error(t, err)
	})
}
