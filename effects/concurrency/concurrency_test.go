package concurrency_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/on-the-ground/effect_ive_gpcache/effects/concurrency"
	"github.com/on-the-ground/effect_ive_gpcache/effects/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrencyEffect_AllChildrenRun(t *testing.T) {
	ctx, endOfLogHandler := log.WithTestEffectHandler(context.Background())
	defer endOfLogHandler()

	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(ctx, 10)
	defer endOfConcurrencyHandler()

	var mu sync.Mutex
	var ran []int
	f := func(i int) func(context.Context) {
		return func(context.Context) {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
		}
	}

	require.NoError(t, concurrency.Go(ctx, f(1), f(2), f(3)))

	mu.Lock()
	defer mu.Unlock()
	sort.Ints(ran)
	assert.Equal(t, []int{1, 2, 3}, ran)
}

func TestConcurrencyEffect_ParentCancelReachesChildren(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(ctx, 10)
	defer endOfConcurrencyHandler()

	blocked := make(chan struct{})
	unblocked := make(chan struct{})
	concurrency.Effect(ctx, func(ctx context.Context) {
		close(blocked)
		<-ctx.Done()
		close(unblocked)
	})

	<-blocked
	cancel()

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("expected child to unblock on context cancel")
	}
}

func TestConcurrencyEffect_PanickingChildIsLogged(t *testing.T) {
	ctx, endOfLogHandler, logs := log.WithObservedEffectHandler(context.Background())
	defer endOfLogHandler()

	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(ctx, 10)
	defer endOfConcurrencyHandler()

	var survived atomic.Bool
	require.NoError(t, concurrency.Go(ctx,
		func(context.Context) { panic("child boom") },
		func(context.Context) { survived.Store(true) },
	))

	assert.True(t, survived.Load())
	require.Eventually(t, func() bool {
		return logs.FilterMessage("panic in child routine").Len() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrencyEffect_EndWaitsForChildren(t *testing.T) {
	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(context.Background(), 10)

	var finished atomic.Int64
	accepted := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		concurrency.Effect(ctx, func(context.Context) {
			accepted <- struct{}{}
			time.Sleep(20 * time.Millisecond)
			finished.Add(1)
		})
	}
	for i := 0; i < 5; i++ {
		<-accepted
	}

	endOfConcurrencyHandler()
	assert.EqualValues(t, 5, finished.Load())
}

func TestConcurrencyEffect_ChildrenSeeOuterHandlers(t *testing.T) {
	ctx, endOfLogHandler, logs := log.WithObservedEffectHandler(context.Background())
	defer endOfLogHandler()

	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(ctx, 1)
	defer endOfConcurrencyHandler()

	require.NoError(t, concurrency.Go(ctx, func(ctx context.Context) {
		log.LogEff(ctx, log.LogInfo, "from child", nil)
	}))
	require.Eventually(t, func() bool {
		return logs.FilterMessage("from child").Len() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrencyEffect_GoOnClosedHandlerReturns(t *testing.T) {
	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(context.Background(), 1)
	endOfConcurrencyHandler()

	var ran atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- concurrency.Go(ctx, func(context.Context) { ran.Store(true) })
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, concurrency.ErrNotAccepted)
	case <-time.After(time.Second):
		t.Fatal("Go blocked on a closed handler")
	}
	assert.False(t, ran.Load())
}

func TestConcurrencyEffect_EndRunsQueuedRoutines(t *testing.T) {
	ctx, endOfConcurrencyHandler := concurrency.WithEffectHandler(context.Background(), 8)

	var finished atomic.Int64
	for i := 0; i < 8; i++ {
		require.True(t, concurrency.Effect(ctx, func(context.Context) {
			finished.Add(1)
		}))
	}

	endOfConcurrencyHandler()
	assert.EqualValues(t, 8, finished.Load())
}
