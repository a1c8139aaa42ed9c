package effects_test

import (
	"context"
	"testing"
	"time"

	"github.com/on-the-ground/effect_ive_gpcache/effects"
	effectmodel "github.com/on-the-ground/effect_ive_gpcache/effects/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEnum = "effect_ive_gpcache_effect_enum_test"

type square float64

func (s square) PartitionKey() string { return "square" }

func TestAwaitResumableEffect_ReturnsHandlerValue(t *testing.T) {
	ctx, end := effects.WithResumablePartitionableEffectHandler(
		context.Background(),
		effectmodel.NewEffectScopeConfig(1, 2),
		testEnum,
		func(_ context.Context, s square) (float64, error) { return float64(s * s), nil },
	)
	defer end()

	v, err := effects.AwaitResumableEffect[square, float64](ctx, testEnum, 3)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)
}

func TestAwaitResumableEffect_HonoursCallerContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, end := effects.WithResumableEffectHandler(
		context.Background(),
		1,
		testEnum,
		func(context.Context, int) (int, error) {
			<-release
			return 0, nil
		},
	)
	defer end()

	callCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := effects.AwaitResumableEffect[int, int](callCtx, testEnum, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitResumableEffect_ClosedHandler(t *testing.T) {
	ctx, end := effects.WithResumableEffectHandler(
		context.Background(),
		1,
		testEnum,
		func(_ context.Context, x int) (int, error) { return x, nil },
	)
	end()
	time.Sleep(50 * time.Millisecond)

	_, err := effects.AwaitResumableEffect[int, int](ctx, testEnum, 1)
	assert.ErrorIs(t, err, effectmodel.ErrEffectScopeClosed)
}

func TestAwaitResumableEffect_QueuedCallerResumedOnEnd(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	ctx, end := effects.WithResumableEffectHandler(
		context.Background(),
		4,
		testEnum,
		func(_ context.Context, x int) (int, error) {
			if x == 1 {
				close(entered)
				<-release
			}
			return x, nil
		},
	)

	first := make(chan error, 1)
	go func() {
		_, err := effects.AwaitResumableEffect[int, int](ctx, testEnum, 1)
		first <- err
	}()
	<-entered

	second := effects.PerformResumableEffect[int, int](ctx, testEnum, 2)
	end()
	close(release)

	require.NoError(t, <-first)
	select {
	case res := <-second:
		assert.ErrorIs(t, res.Err, effectmodel.ErrEffectScopeClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("queued caller never resumed after end")
	}
}

func TestPerformResumableEffect_PanicsWithoutHandler(t *testing.T) {
	assert.Panics(t, func() {
		effects.PerformResumableEffect[int, int](context.Background(), testEnum, 1)
	})
}

func TestEndReturnsParentContextAndRunsTeardown(t *testing.T) {
	parent := context.Background()
	tornDown := make(chan struct{})

	ctx, end := effects.WithFireAndForgetEffectHandler(
		parent,
		1,
		testEnum,
		func(context.Context, string) {},
		func() { close(tornDown) },
	)
	assert.NotNil(t, ctx.Value(effectmodel.EffectEnum(testEnum)))

	restored := end()
	assert.Equal(t, parent, restored)
	select {
	case <-tornDown:
	case <-time.After(time.Second):
		t.Fatal("teardown did not run")
	}
}

func TestNormalizeTeardown_RejectsMany(t *testing.T) {
	assert.Panics(t, func() {
		effects.WithFireAndForgetEffectHandler(
			context.Background(), 1, testEnum,
			func(context.Context, string) {},
			func() {}, func() {},
		)
	})
}
